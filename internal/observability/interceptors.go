// Package observability provides gRPC client interceptors and the ops HTTP server.
package observability

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"ai-voice-command-service/internal/observability/metrics"
)

// UnaryClientInterceptor returns a gRPC unary client interceptor for metrics and logging.
func UnaryClientInterceptor(m *metrics.Metrics) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		start := time.Now()

		err := invoker(ctx, method, req, reply, cc, opts...)

		duration := time.Since(start)
		code := status.Code(err).String()
		m.STTRPCLatency.WithLabelValues(method, code).Observe(duration.Seconds())

		log.Debug().
			Str("method", method).
			Str("code", code).
			Dur("duration", duration).
			Msg("gRPC unary call")

		return err
	}
}

// StreamClientInterceptor returns a gRPC stream client interceptor that tracks
// open recognizer streams and logs how each one ended.
func StreamClientInterceptor(m *metrics.Metrics) grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		start := time.Now()

		cs, err := streamer(ctx, desc, cc, method, opts...)
		if err != nil {
			m.STTRPCLatency.WithLabelValues(method, status.Code(err).String()).Observe(time.Since(start).Seconds())
			log.Error().Err(err).Str("method", method).Msg("gRPC stream open failed")
			return nil, err
		}

		m.STTStreamsActive.Inc()
		log.Info().Str("method", method).Msg("gRPC stream opened")

		return &observedStream{ClientStream: cs, method: method, start: start, metrics: m}, nil
	}
}

// observedStream reports the stream end exactly once, on the first RecvMsg error.
type observedStream struct {
	grpc.ClientStream
	method  string
	start   time.Time
	metrics *metrics.Metrics
	once    sync.Once
}

func (s *observedStream) RecvMsg(msg any) error {
	err := s.ClientStream.RecvMsg(msg)
	if err != nil {
		s.finish(err)
	}
	return err
}

func (s *observedStream) finish(err error) {
	s.once.Do(func() {
		duration := time.Since(s.start)
		success := errors.Is(err, io.EOF)
		code := "OK"
		if !success {
			code = status.Code(err).String()
		}

		s.metrics.STTStreamsActive.Dec()
		s.metrics.STTRPCLatency.WithLabelValues(s.method, code).Observe(duration.Seconds())

		log.Info().
			Str("method", s.method).
			Str("code", code).
			Dur("duration", duration).
			Bool("success", success).
			Msg("gRPC stream completed")
	})
}
