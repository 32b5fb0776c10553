package http

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Success bool              `json:"success"`          // Always false
	Error   string            `json:"error"`            // Human-readable message
	Code    string            `json:"code"`             // Machine-readable error code
	Fields  map[string]string `json:"fields,omitempty"` // Field-level validation messages
}

// WriteJSON writes v as a JSON body with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteErrorWithFields(w, statusCode, errorCode, message, nil)
}

// WriteErrorWithFields writes a JSON error response carrying per-field messages
func WriteErrorWithFields(w http.ResponseWriter, statusCode int, errorCode, message string, fields map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Success: false,
		Error:   message,
		Code:    errorCode,
		Fields:  fields,
	})
}

func WriteValidationError(w http.ResponseWriter, fields map[string]string) {
	WriteErrorWithFields(w, http.StatusBadRequest, "validation_failed", "Validation failed", fields)
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "conflict", message)
}

func WriteLocked(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusLocked, "account_locked", message)
}

func WriteRequestTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, "request_too_large", message)
}

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}
