package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Response is the standard envelope around every API payload.
type Response struct {
	Status    string    `json:"status"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
}

// APIError is the error half of the envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	codeValidation = "VALIDATION_ERROR"
	codeNotFound   = "NOT_FOUND"
	codeStopped    = "SCHEDULER_STOPPED"
	codeTooMany    = "TOO_MANY_PENDING"
)

// requestID generates a unique request identifier.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

// respondOK writes a success response with the standard envelope.
func respondOK(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusOK, reqID, data, nil)
}

// respondAccepted writes a 202 response with the standard envelope.
func respondAccepted(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusAccepted, reqID, data, nil)
}

// respondError writes an error response with the standard envelope.
func respondError(w http.ResponseWriter, reqID string, status int, code, msg string) {
	respondJSON(w, status, reqID, nil, &APIError{Code: code, Message: msg})
}

func respondJSON(w http.ResponseWriter, status int, reqID string, data any, apiErr *APIError) {
	resp := Response{
		RequestID: reqID,
		Timestamp: time.Now().UTC(),
		Data:      data,
		Error:     apiErr,
	}
	if apiErr != nil {
		resp.Status = "error"
	} else {
		resp.Status = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
