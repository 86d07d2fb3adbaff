package main

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestDecodeRecord(t *testing.T) {
	rec, err := decodeRecord([]byte(`{"eventId":"e1","command":"analisar dados","response":"Análise de dados executada","host":"local","outcome":"Success","intent":"analyze_data","recordedAt":"2026-01-02T03:04:05Z"}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if rec.Command != "analisar dados" || rec.Outcome != "Success" {
		t.Errorf("unexpected record: %+v", rec)
	}

	if _, err := decodeRecord([]byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("relatório", 20); got != "relatório" {
		t.Errorf("short string changed: %q", got)
	}
	if got := truncate("consultar histórico", 11); got != "consultar h..." {
		t.Errorf("unexpected truncation: %q", got)
	}
}

func TestHub_BroadcastsToWebSocket(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := newHub()
	go hub.run(ctx)

	srv := httptest.NewServer(newMux(hub))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.broadcast <- CommandRecord{EventID: "e1", Command: "gerar relatório", Outcome: "Success"}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var got CommandRecord
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got.EventID != "e1" || got.Command != "gerar relatório" {
		t.Errorf("unexpected record: %+v", got)
	}
}
