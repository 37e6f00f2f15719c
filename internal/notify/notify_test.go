package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestLocalize(t *testing.T) {
	tests := []struct {
		name   string
		ev     Event
		detail string
		want   string
	}{
		{name: "success en", ev: Event{Kind: "bg_remove", Code: CodeSuccess, Locale: "en"}, want: "Background removal finished"},
		{name: "failed id", ev: Event{Kind: "gen_fill", Code: CodeFailed, Locale: "id-ID"}, detail: "bad input", want: "Isi generatif gagal: bad input"},
		{name: "timeout", ev: Event{Kind: "smart_crop", Code: CodeTimeout}, want: "Smart crop timed out, please try again"},
		{name: "cancelled id", ev: Event{Kind: "transcribe", Code: CodeCancelled, Locale: "id"}, want: "Transkripsi dibatalkan"},
		{name: "busy", ev: Event{Kind: "bg_replace", Code: CodeBusy, Locale: "en"}, want: "Background replacement is already running on this layer"},
		{name: "warning id", ev: Event{Kind: "upload", Code: CodeWarning, Locale: "id"}, detail: "The new layer was saved but could not be recorded", want: "Layer baru tersimpan tetapi gagal dicatat"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Localize(tc.ev, tc.detail)
			if got.Message != tc.want {
				t.Fatalf("message = %q, want %q", got.Message, tc.want)
			}
			if got.At.IsZero() {
				t.Fatalf("expected timestamp to be set")
			}
		})
	}
}

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherKeysBySession(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{writer: w}
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	ev := Event{SessionID: "s1", LayerID: "l1", Kind: "bg_remove", Code: CodeSuccess, Message: "ok", Locale: "en", At: at}

	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "s1" || !msg.Time.Equal(at) {
		t.Fatalf("unexpected key/time: %q %v", msg.Key, msg.Time)
	}
	var decoded Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.LayerID != "l1" || decoded.Code != CodeSuccess {
		t.Fatalf("decoded = %#v", decoded)
	}
	if err := p.Close(); err != nil || !w.closed {
		t.Fatalf("Close: %v closed=%v", err, w.closed)
	}
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	boom := errors.New("leader not available")
	p := &KafkaPublisher{writer: &recordingWriter{err: boom}}
	if err := p.Publish(context.Background(), Event{SessionID: "s1"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestNewKafkaPublisherValidates(t *testing.T) {
	if _, err := NewKafkaPublisher(nil, "topic"); err == nil {
		t.Fatalf("expected error without brokers")
	}
	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "studio.events")
	if err != nil {
		t.Fatalf("NewKafkaPublisher: %v", err)
	}
	_ = p.Close()
}

func TestLogPublisherNeverFails(t *testing.T) {
	p := NewLogPublisher(nil)
	if err := p.Publish(context.Background(), Event{Code: CodeFailed}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}
