/*
Package resp provides helpers for sending standardized HTTP JSON responses.

The WebSocket protocol carries its own error envelopes; this package only
serves the plain HTTP surface (health checks and upgrade rejections).
*/
package resp

import (
	"encoding/json"
	"net/http"

	"mediamatch/internal/pkg/logx"
)

// JSONResponse is the body shape for every plain HTTP reply.
type JSONResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// RespondJSON sets headers and writes the payload as JSON.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	body, err := json.Marshal(payload)
	if err != nil {
		logx.Error(err, "Error encoding JSON response", "http_status", httpStatus)
		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(httpStatus)
	w.Write(body)
}

// RespondSuccess sends an HTTP 200 reply with optional data.
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusOK, JSONResponse{
		Status: "ok",
		Data:   data,
	})
}

// RespondError sends an error reply with the given HTTP status and message.
func RespondError(w http.ResponseWriter, r *http.Request, httpStatus int, message string) {
	RespondJSON(w, r, httpStatus, JSONResponse{
		Status:  "error",
		Message: message,
	})
}
