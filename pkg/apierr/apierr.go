// pkg/apierr/apierr.go
package apierr

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform error body every handler returns:
// {"success":false,"code":"...","name":"...","message":"..."}.
type Envelope struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message,omitempty"`
}

// Write emits the envelope with the given HTTP status.
func Write(w http.ResponseWriter, status int, code, name, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Code: code, Name: name, Message: message})
}

// JSON writes an arbitrary success payload.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
