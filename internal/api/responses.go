package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	app_errors "flow-stream/backend/internal/errors"
	"flow-stream/backend/internal/model"
)

// ErrorResponse defines the standard JSON structure for error messages.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is returned by endpoints that have no resource to return.
type StatusResponse struct {
	Status string `json:"status"`
}

// UpdateTitleRequest is the DTO for the manual thread title update endpoint.
type UpdateTitleRequest struct {
	Title string `json:"title" validate:"required,min=1,max=100" example:"My Custom Thread Title"`
}

// BranchRequest names the last message copied into a new thread.
type BranchRequest struct {
	MessageID string `json:"messageId" validate:"required" example:"b3c1f1a2-6a43-4c1e-9d8e-2f7f3b7c9a10"`
}

// TruncateResponse reports how many messages a truncation removed.
type TruncateResponse struct {
	Deleted int64 `json:"deleted"`
}

// errorStatus maps a sentinel to its HTTP status. An empty message means the
// wrapped error text is safe to show.
var errorStatus = []struct {
	target  error
	status  int
	message string
}{
	{app_errors.ErrNotFound, http.StatusNotFound, "The requested resource was not found."},
	{app_errors.ErrValidation, http.StatusBadRequest, ""},
	{app_errors.ErrConflict, http.StatusConflict, ""},
	{app_errors.ErrPermission, http.StatusForbidden, "You do not have permission to perform this action."},
	{app_errors.ErrRateLimited, http.StatusTooManyRequests, "Too many requests, slow down."},
	{app_errors.ErrProvider, http.StatusBadGateway, "The model provider failed."},
}

// respondWithError maps err to a status code and writes a JSON error body.
// Unknown errors become a 500 with a generic message.
func respondWithError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	message := "An unexpected internal server error occurred."
	for _, e := range errorStatus {
		if errors.Is(err, e.target) {
			statusCode, message = e.status, e.message
			if message == "" {
				message = err.Error()
			}
			break
		}
	}

	slog.Warn("Responding with error", "status_code", statusCode, "client_message", message, "internal_error", err)
	respondWithJSON(w, statusCode, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

// sendStreamError ends an SSE stream with an error frame when the stream
// closed without a terminal event of its own. The `event: error` line lets
// EventSource clients listen for it separately.
func sendStreamError(w http.ResponseWriter, message string) {
	slog.Warn("Sending stream error to client", "message", message)
	if err := writeFrame(w, "error", model.StreamEvent{Type: model.EventError, Error: message}); err != nil {
		slog.Warn("Failed to write stream error, client might have disconnected", "error", err)
	}
}

// writeStreamEvent writes one frame. An error means the client is gone.
func writeStreamEvent(w http.ResponseWriter, event model.StreamEvent) error {
	return writeFrame(w, "", event)
}

func writeFrame(w http.ResponseWriter, name string, event model.StreamEvent) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		// Bad data, not a broken connection: skip the frame.
		slog.Error("Failed to marshal stream event", "type", event.Type, "error", err)
		return nil
	}

	var prefix string
	if event.Seq > 0 {
		prefix = fmt.Sprintf("id: %d\n", event.Seq)
	}
	if name != "" {
		prefix += "event: " + name + "\n"
	}
	if _, err := fmt.Fprintf(w, "%sdata: %s\n\n", prefix, jsonData); err != nil {
		return fmt.Errorf("failed to write data to stream: %w", err)
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}
