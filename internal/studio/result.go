package studio

import (
	"errors"

	"studio/internal/domain"
	"studio/internal/transform"
)

// ErrInvalidSource is returned when the source layer cannot feed the
// requested operation.
var ErrInvalidSource = errors.New("studio: invalid source layer")

// Code classifies an error result.
type Code string

const (
	CodeFailed    Code = "failed"
	CodeTimeout   Code = "timeout"
	CodeCancelled Code = "cancelled"
	CodeBusy      Code = "busy"
	CodeInvalid   Code = "invalid"
)

// InvokeRequest asks for one operation. LayerID selects the source layer;
// empty means the active layer.
type InvokeRequest struct {
	Kind    transform.Kind
	LayerID string
	Params  transform.Params
	Locale  string
}

// Result is either a success carrying the new layer, possibly with a
// warning, or an error with its code.
type Result struct {
	Success *domain.Layer `json:"success,omitempty"`
	Warning string        `json:"warning,omitempty"`
	Error   string        `json:"error,omitempty"`
	Code    Code          `json:"code,omitempty"`
	Version uint64        `json:"version,omitempty"`
}

// OK reports whether r is a success.
func (r Result) OK() bool { return r.Success != nil }

func errorResult(code Code, msg string) Result {
	return Result{Error: msg, Code: code}
}
