package api

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes, one per status the API returns.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeInternal    = "internal_error"
	ErrCodeUnavailable = "unavailable"
	ErrCodeTimeout     = "timeout"
)

var statusCodes = map[int]string{
	http.StatusBadRequest:          ErrCodeBadRequest,
	http.StatusServiceUnavailable:  ErrCodeUnavailable,
	http.StatusGatewayTimeout:      ErrCodeTimeout,
	http.StatusInternalServerError: ErrCodeInternal,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v) // client may be gone
}

// writeError replies with an ErrorResponse whose code follows from status.
func writeError(w http.ResponseWriter, status int, message string) {
	code, ok := statusCodes[status]
	if !ok {
		code = ErrCodeInternal
	}
	writeJSON(w, status, ErrorResponse{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, message)
}
