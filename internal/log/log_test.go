package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kobo/internal/core"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestJSONLoggerCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: FormatJSON, Component: ComponentGateway, Output: &buf})
	l.Info("hello", NewFields().WithAccount("acct").WithError(errors.New("boom")).ToSlice()...)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("not JSON: %v (%s)", err, buf.String())
	}
	if line[FieldComponent] != ComponentGateway || line[FieldAccountID] != "acct" || line[FieldError] != "boom" {
		t.Errorf("unexpected line %v", line)
	}
}

func TestFieldsWithTransaction(t *testing.T) {
	f := NewFields().WithTransaction(core.Transaction{ID: "tx", AccountID: "a", Category: "Food", Amount: core.Money{Cents: 150}})
	if f[FieldAmount] != "1.50" || f[FieldTransactionID] != "tx" {
		t.Errorf("unexpected fields %v", f)
	}
	if len(NewFields().WithError(nil)) != 0 {
		t.Error("nil error should add nothing")
	}
}

func TestMiddlewareAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: FormatText, Output: &buf})

	h := Middleware(base, func(context.Context) string { return "req_1" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), "request_id=req_1") {
		t.Errorf("request id missing from %q", buf.String())
	}
}

func TestFromContextFallback(t *testing.T) {
	if FromContext(context.Background()).Component() != "unknown" {
		t.Error("expected fallback logger")
	}
}
