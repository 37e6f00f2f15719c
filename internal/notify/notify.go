// Package notify publishes operation outcome events for the UI and other
// consumers.
package notify

import (
	"context"
	"time"

	"studio/internal/infra"
	"studio/internal/locale"
)

// Code classifies an event. It matches the error codes of the service
// result, plus "success" and "warning".
type Code string

const (
	CodeSuccess   Code = "success"
	CodeWarning   Code = "warning"
	CodeFailed    Code = "failed"
	CodeTimeout   Code = "timeout"
	CodeCancelled Code = "cancelled"
	CodeBusy      Code = "busy"
	CodeInvalid   Code = "invalid"
)

// Event is one published notification.
type Event struct {
	SessionID string    `json:"session_id"`
	LayerID   string    `json:"layer_id,omitempty"`
	Kind      string    `json:"kind"`
	Code      Code      `json:"code"`
	Message   string    `json:"message"`
	Locale    string    `json:"locale"`
	At        time.Time `json:"at"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Localize fills ev.Message for ev.Code in ev.Locale. detail is the upstream
// reason for failed and invalid events.
func Localize(ev Event, detail string) Event {
	ev.Locale = locale.Normalize(ev.Locale)
	p := locale.Printer(ev.Locale)
	op := locale.OperationName(p, ev.Kind)
	switch ev.Code {
	case CodeSuccess:
		ev.Message = p.Sprintf(locale.MsgSucceeded, op)
	case CodeFailed:
		ev.Message = p.Sprintf(locale.MsgFailed, op, detail)
	case CodeTimeout:
		ev.Message = p.Sprintf(locale.MsgTimedOut, op)
	case CodeCancelled:
		ev.Message = p.Sprintf(locale.MsgCancelled, op)
	case CodeBusy:
		ev.Message = p.Sprintf(locale.MsgBusy, op)
	case CodeInvalid:
		ev.Message = p.Sprintf(locale.MsgInvalid, op, detail)
	case CodeWarning:
		ev.Message = p.Sprintf(detail)
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	return ev
}

// LogPublisher writes events to the structured log. It is used when no
// broker is configured.
type LogPublisher struct {
	logger *infra.Logger
}

func NewLogPublisher(logger *infra.Logger) *LogPublisher {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, ev Event) error {
	p.logger.Info().
		Str("session_id", ev.SessionID).
		Str("layer_id", ev.LayerID).
		Str("kind", ev.Kind).
		Str("code", string(ev.Code)).
		Str("locale", ev.Locale).
		Msg(ev.Message)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

var _ Publisher = (*LogPublisher)(nil)
