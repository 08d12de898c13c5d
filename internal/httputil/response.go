package httputil

import (
	"encoding/json"
	"net/http"
	"time"
)

// Envelope is the uniform response body: every endpoint wraps its
// payload in {success, data} and failures in {success, error}.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody carries the machine-readable failure details.
type ErrorBody struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
}

// RespondJSON writes a success envelope with the given status code.
// It marshals first so an encoding failure cannot produce a partial
// response after headers are sent.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	payload, err := json.Marshal(Envelope{Success: true, Data: data})
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to encode response", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

// RespondError writes a failure envelope with the given status code.
func RespondError(w http.ResponseWriter, status int, code, message, path string) {
	payload, err := json.Marshal(Envelope{
		Success: false,
		Error: &ErrorBody{
			Code:      code,
			Message:   message,
			Timestamp: time.Now().UTC(),
			Path:      path,
		},
	})
	if err != nil {
		// Fallback to plain text if JSON encoding fails
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}
