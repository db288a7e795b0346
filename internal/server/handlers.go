package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"cakestudio/internal/events"
	"cakestudio/internal/session"
)

// MaxReferenceImageBytes caps uploaded reference photos.
const MaxReferenceImageBytes = 7 * 1024 * 1024

// Handler exposes the session state machine over HTTP.
type Handler struct {
	Sessions *session.Service
	Events   *events.Broker
	Logger   *zap.Logger
}

// Catalog handles GET /api/catalog.
func (h Handler) Catalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.Sessions.Catalog())
}

// CreateSession handles POST /api/sessions.
func (h Handler) CreateSession(w http.ResponseWriter, _ *http.Request) {
	snapshot := h.Sessions.Create()
	h.Logger.Info("session created", zap.String("session_id", snapshot.ID))
	writeJSON(w, snapshot)
}

// GetSession handles GET /api/sessions/{id}.
func (h Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, snapshot)
}

// Intake handles POST /api/sessions/{id}/intake.
func (h Handler) Intake(w http.ResponseWriter, r *http.Request) {
	var input session.IntakeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	snapshot, err := h.Sessions.Intake(chi.URLParam(r, "id"), input)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, snapshot)
}

// Chat handles POST /api/sessions/{id}/chat. The response already carries
// the user's turn and the processing placeholder; the real reply replaces
// the placeholder once the deferred job completes.
func (h Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	snapshot, err := h.Sessions.Chat(chi.URLParam(r, "id"), req.Message)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(snapshot)
}

// AttachReference handles PUT /api/sessions/{id}/reference-image.
func (h Handler) AttachReference(w http.ResponseWriter, r *http.Request) {
	data, err := readImageUpload(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	snapshot, err := h.Sessions.AttachReference(chi.URLParam(r, "id"), data)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, snapshot)
}

// DetachReference handles DELETE /api/sessions/{id}/reference-image.
func (h Handler) DetachReference(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.Sessions.DetachReference(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, snapshot)
}

// DesignImage handles GET /api/sessions/{id}/design-image.
func (h Handler) DesignImage(w http.ResponseWriter, r *http.Request) {
	img, err := h.Sessions.GeneratedImage(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(img) == 0 {
		http.Error(w, "no design image generated yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(img)
}

// AutoDesign handles PUT /api/sessions/{id}/auto-design.
func (h Handler) AutoDesign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	snapshot, err := h.Sessions.SetAutoDesign(chi.URLParam(r, "id"), req.Enabled)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, snapshot)
}

// Confirm handles POST /api/sessions/{id}/confirm.
func (h Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	quote, err := h.Sessions.Confirm(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, quote)
}

// Reset handles POST /api/sessions/{id}/reset.
func (h Handler) Reset(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.Sessions.Reset(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, snapshot)
}

// StreamEvents handles GET /api/sessions/{id}/events as an SSE stream of
// session updates, filtered to the requested session.
func (h Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	sessionID := chi.URLParam(r, "id")
	if _, err := h.Sessions.Get(sessionID); err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.Events.Subscribe()
	defer h.Events.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-ch:
			if evt.SessionID != sessionID {
				continue
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func readImageUpload(r *http.Request) ([]byte, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(MaxReferenceImageBytes + (1 << 20)); err != nil {
			return nil, fmt.Errorf("could not parse form: %w", err)
		}
		file, _, err := r.FormFile("image_file")
		if err != nil {
			return nil, fmt.Errorf("image_file is required")
		}
		defer file.Close()
		return readCapped(file)
	}
	return readCapped(r.Body)
}

func readCapped(src io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(src, MaxReferenceImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("could not read image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image upload")
	}
	if len(data) > MaxReferenceImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", MaxReferenceImageBytes)
	}
	return data, nil
}

func (h Handler) writeError(w http.ResponseWriter, err error) {
	var validation *session.ValidationError
	switch {
	case errors.Is(err, session.ErrNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	case errors.As(err, &validation):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": validation.Message})
	case errors.Is(err, session.ErrBusy):
		http.Error(w, "previous turn still processing", http.StatusConflict)
	case errors.Is(err, session.ErrWrongPhase):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.Logger.Error("request failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
