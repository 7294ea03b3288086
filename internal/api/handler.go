package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	app_errors "flow-stream/backend/internal/errors"
	"flow-stream/backend/internal/interfaces"
	"flow-stream/backend/internal/model"
	"flow-stream/backend/internal/service"
)

const (
	userHeader  = "X-User-ID"
	defaultUser = "default-user"
)

// ChatHandler holds dependencies for chat and thread related HTTP handlers.
type ChatHandler struct {
	service interfaces.ChatService
}

func NewChatHandler(svc interfaces.ChatService) *ChatHandler {
	return &ChatHandler{service: svc}
}

func userID(r *http.Request) string {
	if id := r.Header.Get(userHeader); id != "" {
		return id
	}
	return defaultUser
}

// --- Threads ---

// GetThreads godoc
// @Summary      List threads
// @Description  Gets a list of all threads for the current user, newest first.
// @Tags         Threads
// @Produce      json
// @Param        X-User-ID  header    string  false  "User id"
// @Success      200        {array}   model.Thread
// @Failure      500        {object}  ErrorResponse
// @Router       /v1/threads [get]
func (h *ChatHandler) GetThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := h.service.ListThreads(r.Context(), userID(r))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, threads)
}

// GetThread godoc
// @Summary      Get a thread
// @Description  Retrieves a thread with its full message history.
// @Tags         Threads
// @Produce      json
// @Param        threadID   path      string  true  "Thread ID"
// @Success      200        {object}  model.FullThread
// @Failure      403        {object}  ErrorResponse
// @Failure      404        {object}  ErrorResponse
// @Router       /v1/threads/{threadID} [get]
func (h *ChatHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	thread, err := h.service.GetThread(r.Context(), threadID, userID(r))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, thread)
}

// GetThreadMessages godoc
// @Summary      List thread messages
// @Description  Returns the persisted messages of a thread in creation order.
// @Tags         Threads
// @Produce      json
// @Param        threadID   path      string  true  "Thread ID"
// @Success      200        {array}   model.Message
// @Failure      404        {object}  ErrorResponse
// @Router       /v1/threads/{threadID}/messages [get]
func (h *ChatHandler) GetThreadMessages(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	messages, err := h.service.GetMessages(r.Context(), threadID, userID(r))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, messages)
}

// UpdateThreadTitle godoc
// @Summary      Rename a thread
// @Tags         Threads
// @Accept       json
// @Produce      json
// @Param        threadID   path      string              true  "Thread ID"
// @Param        title      body      UpdateTitleRequest  true  "New title"
// @Success      200        {object}  StatusResponse
// @Failure      400        {object}  ErrorResponse
// @Failure      404        {object}  ErrorResponse
// @Router       /v1/threads/{threadID}/title [put]
func (h *ChatHandler) UpdateThreadTitle(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	var req UpdateTitleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.service.UpdateThreadTitle(r.Context(), threadID, userID(r), req.Title); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// DeleteThread godoc
// @Summary      Delete a thread
// @Description  Stops any running generation, then deletes the thread and its messages.
// @Tags         Threads
// @Produce      json
// @Param        threadID   path      string  true  "Thread ID"
// @Success      200        {object}  StatusResponse
// @Failure      404        {object}  ErrorResponse
// @Router       /v1/threads/{threadID} [delete]
func (h *ChatHandler) DeleteThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	if err := h.service.DeleteThread(r.Context(), threadID, userID(r)); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// TruncateThread godoc
// @Summary      Truncate a thread
// @Description  Deletes messages from the given one onwards. Messages created after preserveAfter survive.
// @Tags         Threads
// @Accept       json
// @Produce      json
// @Param        threadID   path      string                   true  "Thread ID"
// @Param        request    body      service.TruncateRequest  true  "Truncation target"
// @Success      200        {object}  TruncateResponse
// @Failure      400        {object}  ErrorResponse
// @Failure      404        {object}  ErrorResponse
// @Router       /v1/threads/{threadID}/truncate [post]
func (h *ChatHandler) TruncateThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	var req service.TruncateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	deleted, err := h.service.Truncate(r.Context(), threadID, userID(r), &req)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, TruncateResponse{Deleted: deleted})
}

// BranchThread godoc
// @Summary      Branch a thread
// @Description  Copies the thread up to and including the given message into a new thread.
// @Tags         Threads
// @Accept       json
// @Produce      json
// @Param        threadID   path      string         true  "Thread ID"
// @Param        request    body      BranchRequest  true  "Branch point"
// @Success      201        {object}  model.Thread
// @Failure      400        {object}  ErrorResponse
// @Failure      404        {object}  ErrorResponse
// @Router       /v1/threads/{threadID}/branch [post]
func (h *ChatHandler) BranchThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	var req BranchRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	thread, err := h.service.Branch(r.Context(), threadID, userID(r), req.MessageID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, thread)
}

// --- Generation ---

// HandleChat godoc
// @Summary      Send a message
// @Description  Persists the user message, starts a generation and streams it as SSE frames. The generation keeps running if the client disconnects.
// @Tags         Chat
// @Accept       json
// @Produce      text/event-stream
// @Param        request    body      service.ChatRequest  true  "User message"
// @Success      200        {object}  model.StreamEvent    "Stream of frames"
// @Failure      400        {object}  ErrorResponse
// @Failure      409        {object}  ErrorResponse
// @Failure      429        {object}  ErrorResponse
// @Router       /v1/chat [post]
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req service.ChatRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	req.UserID = userID(r)

	session, err := h.service.StartChat(r.Context(), &req)
	if err != nil {
		respondWithError(w, err)
		return
	}

	startStream(w)
	if session.IsNewThread {
		created := model.StreamEvent{Type: model.EventThreadCreated, ID: session.Thread.ID}
		if err := writeStreamEvent(w, created); err != nil {
			slog.Info("Client disconnected before the first frame", "thread_id", session.Thread.ID, "stream_id", session.StreamID)
			return
		}
	}
	streamSession(w, r, session)
}

// HandleResume godoc
// @Summary      Resume a generation
// @Description  Re-attaches to the thread's streaming message and replays every frame from the start.
// @Tags         Chat
// @Produce      text/event-stream
// @Param        threadId   query     string  true  "Thread ID"
// @Success      200        {object}  model.StreamEvent  "Stream of frames"
// @Failure      400        {object}  ErrorResponse
// @Failure      404        {object}  ErrorResponse
// @Router       /v1/chat [get]
func (h *ChatHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	threadID := r.URL.Query().Get("threadId")
	if threadID == "" {
		respondWithError(w, fmt.Errorf("%w: threadId query parameter is required", app_errors.ErrValidation))
		return
	}

	session, err := h.service.Resume(r.Context(), threadID, userID(r))
	if err != nil {
		respondWithError(w, err)
		return
	}

	startStream(w)
	streamSession(w, r, session)
}

// HandleStop godoc
// @Summary      Stop a generation
// @Description  Persists the content the client had rendered and stops the generation.
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        request    body      service.StopRequest  true  "Stream to stop"
// @Success      200        {object}  StatusResponse
// @Failure      400        {object}  ErrorResponse
// @Failure      404        {object}  ErrorResponse
// @Router       /v1/chat/stop [post]
func (h *ChatHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	var req service.StopRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.service.Stop(r.Context(), userID(r), &req); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// --- Helpers ---

func decodeAndValidate(w http.ResponseWriter, r *http.Request, payload interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(payload); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid request payload", app_errors.ErrValidation))
		return false
	}
	if err := validateRequest(payload); err != nil {
		respondWithError(w, err)
		return false
	}
	return true
}

func startStream(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
}

// streamSession forwards frames until the stream ends or the client leaves.
// Leaving only detaches this subscriber; the generation goes on.
func streamSession(w http.ResponseWriter, r *http.Request, session *service.ChatSession) {
	log := slog.With("stream_id", session.StreamID)
	terminal := false
	for event := range session.Events {
		if event.Type == model.EventStart {
			event.StreamID = session.StreamID
		}
		if err := writeStreamEvent(w, event); err != nil {
			log.Info("Client disconnected, generation continues", "error", err)
			return
		}
		if event.Type.IsTerminal() {
			terminal = true
		}
	}

	if r.Context().Err() != nil {
		log.Info("Client disconnected, generation continues")
		return
	}
	if !terminal {
		sendStreamError(w, "stream ended unexpectedly")
	}
}
