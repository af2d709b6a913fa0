package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"expensedash/internal/core"
	"expensedash/internal/dashboard"
)

// statusFor maps an error kind to the HTTP status reported to clients.
func statusFor(err error) int {
	// A timed-out refill may also carry a connection kind; the deadline wins.
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch core.KindOf(err) {
	case core.KindValidation:
		return http.StatusUnprocessableEntity
	case core.KindWrite:
		return http.StatusBadGateway
	case core.KindConnection:
		return http.StatusServiceUnavailable
	case core.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// userMessage is the text shown to users for err. Internal details stay in logs.
func userMessage(err error) string {
	switch core.KindOf(err) {
	case core.KindValidation:
		var verr *dashboard.ValidationError
		if errors.As(err, &verr) {
			return verr.Error()
		}
		return err.Error()
	case core.KindWrite:
		return "The expense could not be saved. Nothing was changed; please try again."
	case core.KindConnection:
		return "The data store is unreachable right now."
	}
	return "Something went wrong."
}

type errorBody struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "component", "http", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logHandlerError(r, err, status)

	body := errorBody{Error: userMessage(err), Kind: string(core.KindOf(err))}
	var verr *dashboard.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}
	writeJSON(w, status, body)
}

func logHandlerError(r *http.Request, err error, status int) {
	level := slog.LevelWarn
	if status >= 500 {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "Request failed",
		"component", "http",
		"path", r.URL.Path,
		"status", status,
		"error_kind", string(core.KindOf(err)),
		"error", err)
}

// sanitizeInput removes control characters except tab and newlines and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}
