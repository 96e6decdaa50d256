package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"searchfetch/internal/search"
)

type envelope struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

type errorBody struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	ErrorType  string `json:"error_type"`
	Code       int    `json:"code,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeSuccess(w http.ResponseWriter, payload any) {
	writeJSON(w, http.StatusOK, envelope{Status: "success", Data: payload})
}

func writeError(w http.ResponseWriter, status int, msg, errorType string) {
	writeJSON(w, status, errorBody{Status: "error", Message: msg, ErrorType: errorType})
}

// writeAppError maps typed operation failures onto HTTP statuses: bad input
// is the caller's fault, upstream timeouts surface as gateway timeouts, and
// upstream HTTP failures as bad gateway.
func writeAppError(w http.ResponseWriter, err error) {
	e := search.AsError(err)
	status := http.StatusInternalServerError
	switch e.Kind {
	case search.ErrInvalidInput:
		status = http.StatusBadRequest
	case search.ErrTimeout:
		status = http.StatusGatewayTimeout
	case search.ErrHTTP:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorBody{
		Status:     "error",
		Message:    e.Message,
		ErrorType:  string(e.Kind),
		Code:       e.Code,
		Suggestion: e.Hint,
	})
}
