// testclient posts sample voice commands to the ops transcript endpoint.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var sampleCommands = []string{
	"analisar dados",
	"consultar histórico de vendas",
	"gerar relatório mensal",
	"atualizar dados do cliente",
	"abrir a janela",
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "Ops HTTP base URL")
	text := flag.String("text", "", "Single command to send (default: all sample commands)")
	delay := flag.Duration("delay", 500*time.Millisecond, "Delay between commands")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	commands := sampleCommands
	if *text != "" {
		commands = []string{*text}
	}

	client := &http.Client{Timeout: 10 * time.Second}
	for i, c := range commands {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		eventID, err := submit(ctx, client, *addr, c)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("text", c).Msg("Failed to submit command")
		}
		log.Info().Str("text", c).Str("eventId", eventID).Msg("Command accepted")

		if i < len(commands)-1 {
			time.Sleep(*delay)
		}
	}
}

func submit(ctx context.Context, client *http.Client, addr, text string) (string, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr+"/v1/transcripts", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var out struct {
		EventID string `json:"eventId"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.EventID, nil
}
