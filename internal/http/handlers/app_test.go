package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"studio/internal/domain"
	"studio/internal/layers"
	"studio/internal/session"
	"studio/internal/studio"
)

func TestResultStatus(t *testing.T) {
	tests := []struct {
		res  studio.Result
		want int
	}{
		{res: studio.Result{Success: &domain.Layer{ID: "a"}}, want: http.StatusOK},
		{res: studio.Result{Success: &domain.Layer{ID: "a"}, Warning: "not saved"}, want: http.StatusOK},
		{res: studio.Result{Error: "x", Code: studio.CodeInvalid}, want: http.StatusUnprocessableEntity},
		{res: studio.Result{Error: "x", Code: studio.CodeBusy}, want: http.StatusConflict},
		{res: studio.Result{Error: "x", Code: studio.CodeCancelled}, want: http.StatusConflict},
		{res: studio.Result{Error: "x", Code: studio.CodeTimeout}, want: http.StatusGatewayTimeout},
		{res: studio.Result{Error: "x", Code: studio.CodeFailed}, want: http.StatusBadGateway},
	}
	for _, tc := range tests {
		if got := resultStatus(tc.res); got != tc.want {
			t.Fatalf("resultStatus(%+v) = %d, want %d", tc.res, got, tc.want)
		}
	}
}

func TestFailMapsErrors(t *testing.T) {
	app := NewApp(nil, nil)
	tests := []struct {
		err  error
		want int
		code string
	}{
		{err: session.ErrInvalidID, want: http.StatusBadRequest, code: "invalid_session"},
		{err: session.ErrNotFound, want: http.StatusNotFound, code: "not_found"},
		{err: fmt.Errorf("studio: save session: %w", session.ErrStale), want: http.StatusConflict, code: "session_dropped"},
		{err: fmt.Errorf("%w: x", layers.ErrLayerNotFound), want: http.StatusNotFound, code: "not_found"},
		{err: layers.ErrNotComparable, want: http.StatusUnprocessableEntity, code: "not_comparable"},
		{err: layers.ErrNotPlaceholder, want: http.StatusConflict, code: "not_placeholder"},
		{err: domain.ErrLayerBusy, want: http.StatusConflict, code: "busy"},
		{err: errors.New("disk on fire"), want: http.StatusInternalServerError, code: "internal"},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		app.fail(rec, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
		if rec.Code != tc.want {
			t.Fatalf("fail(%v) status = %d, want %d", tc.err, rec.Code, tc.want)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["error"] != tc.code {
			t.Fatalf("fail(%v) error = %q, want %q", tc.err, body["error"], tc.code)
		}
	}
}

func TestDecodeValidates(t *testing.T) {
	app := NewApp(nil, nil)
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{name: "valid", body: `{"width":800,"height":600}`, ok: true},
		{name: "bad json", body: `{`, ok: false},
		{name: "unknown field", body: `{"colour":"red"}`, ok: false},
		{name: "negative width", body: `{"width":-1}`, ok: false},
		{name: "bad resource type", body: `{"resource_type":"audio"}`, ok: false},
		{name: "bad url", body: `{"url":"not a url"}`, ok: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dst invokeRequest
			if got := app.decode(rec, req, &dst); got != tc.ok {
				t.Fatalf("decode ok = %v, want %v (body %s)", got, tc.ok, rec.Body.String())
			}
			if !tc.ok && rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}
