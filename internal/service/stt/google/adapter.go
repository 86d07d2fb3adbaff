// Package google provides a Google Cloud Speech-to-Text adapter.
package google

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"

	"ai-voice-command-service/internal/observability"
	"ai-voice-command-service/internal/observability/metrics"
	"ai-voice-command-service/internal/service/stt"
)

const providerName = "google"

// closeTimeout bounds how long Close waits for the server to flush results.
const closeTimeout = 5 * time.Second

// Config tunes the streaming recognition request.
type Config struct {
	Endpoint       string
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string
}

// DefaultConfig returns the recognition settings used for spoken commands.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "pt-BR",
		SampleRateHz:   16000,
		InterimResults: false,
		AudioEncoding:  "LINEAR16",
	}
}

// Adapter implements stt.Adapter using Google Cloud Speech-to-Text.
type Adapter struct {
	client  *speech.Client
	cfg     Config
	metrics *metrics.Metrics

	sendMu sync.Mutex
	stream speechpb.Speech_StreamingRecognizeClient
	cb     stt.Callback
	done   chan struct{}

	closeOnce sync.Once
}

// New creates a new Google STT adapter.
// Credentials come from GOOGLE_APPLICATION_CREDENTIALS; cfg.Endpoint overrides the API endpoint.
func New(ctx context.Context, cfg Config, m *metrics.Metrics) (*Adapter, error) {
	opts := []option.ClientOption{
		option.WithGRPCDialOption(grpc.WithChainUnaryInterceptor(observability.UnaryClientInterceptor(m))),
		option.WithGRPCDialOption(grpc.WithChainStreamInterceptor(observability.StreamClientInterceptor(m))),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		client:  c,
		cfg:     cfg,
		metrics: m,
		done:    make(chan struct{}),
	}, nil
}

// Name returns the provider name.
func (a *Adapter) Name() string {
	return providerName
}

// Start opens the recognition stream, sends the streaming config and starts
// delivering results to cb.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	stream, err := a.client.StreamingRecognize(ctx)
	if err != nil {
		return err
	}

	req := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: streamingConfig(a.cfg),
		},
	}
	log.Debug().
		Str("sttProvider", providerName).
		Str("config", protojson.Format(req)).
		Msg("Opening streaming recognition")

	a.sendMu.Lock()
	a.stream = stream
	a.cb = cb
	err = stream.Send(req)
	a.sendMu.Unlock()
	if err != nil {
		return err
	}

	go a.listen()
	return nil
}

// SendAudio sends audio bytes to Google Speech-to-Text.
func (a *Adapter) SendAudio(_ context.Context, audio []byte) error {
	a.sendMu.Lock()
	defer a.sendMu.Unlock()
	if a.stream == nil {
		return errors.New("google stt: stream not started")
	}
	return a.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Done is closed once the stream has delivered its last result.
func (a *Adapter) Done() <-chan struct{} {
	return a.done
}

// Close half-closes the stream, waits briefly for pending results and
// releases the client.
func (a *Adapter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.sendMu.Lock()
		stream := a.stream
		if stream != nil {
			err = stream.CloseSend()
		}
		a.sendMu.Unlock()

		if stream != nil {
			select {
			case <-a.done:
			case <-time.After(closeTimeout):
				log.Warn().Str("sttProvider", providerName).Msg("Timed out waiting for recognition stream to drain")
			}
		} else {
			close(a.done)
		}

		if cerr := a.client.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}

// listen receives transcript responses from Google and invokes callbacks
// until the stream ends.
func (a *Adapter) listen() {
	defer close(a.done)

	for {
		resp, err := a.stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			a.metrics.RecordSTTError(providerName, status.Code(err).String())
			a.cb.OnError(err)
			return
		}
		if resp.Error != nil {
			log.Warn().
				Int32("code", resp.Error.Code).
				Str("message", resp.Error.Message).
				Msg("Recognition response carried an error status")
		}
		dispatch(resp.Results, a.cb)
	}
}

// dispatch routes recognition results to the callback. A final result closes
// the utterance.
func dispatch(results []*speechpb.StreamingRecognitionResult, cb stt.Callback) {
	for _, r := range results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		if r.IsFinal {
			cb.OnFinal(alt.Transcript, float64(alt.Confidence))
			cb.OnEndOfUtterance()
		} else {
			cb.OnPartial(alt.Transcript)
		}
	}
}

func streamingConfig(cfg Config) *speechpb.StreamingRecognitionConfig {
	return &speechpb.StreamingRecognitionConfig{
		Config: &speechpb.RecognitionConfig{
			Encoding:        parseAudioEncoding(cfg.AudioEncoding),
			SampleRateHertz: int32(cfg.SampleRateHz),
			LanguageCode:    cfg.LanguageCode,
		},
		InterimResults: cfg.InterimResults,
	}
}

// parseAudioEncoding maps an encoding name to the API enum, LINEAR16 when unknown.
func parseAudioEncoding(name string) speechpb.RecognitionConfig_AudioEncoding {
	switch name {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
