package voice

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dilumka1020/pravy-voice-bot-v2/internal/claude"
)

// maxAPIBody caps JSON request bodies.
const maxAPIBody = 64 << 10

// VoiceRequest is the body of POST /api/voice.
type VoiceRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Text           string `json:"text"`
}

// VoiceResponse is the reply of POST /api/voice.
type VoiceResponse struct {
	Success        bool   `json:"success"`
	Response       string `json:"response,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ResetRequest is the body of POST /api/reset.
type ResetRequest struct {
	ConversationID string `json:"conversation_id"`
}

// PromptRequest is the body of POST /api/update-prompt.
type PromptRequest struct {
	Prompt string `json:"prompt"`
}

// handleAPIVoice processes already transcribed text for clients that do
// their own speech handling.
func (h *Handler) handleAPIVoice(w http.ResponseWriter, r *http.Request) {
	var req VoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, VoiceResponse{Message: "No transcribed text provided"})
		return
	}

	id := strings.TrimSpace(req.ConversationID)
	if id == "" {
		id = uuid.NewString()
	}

	reply, err := h.conversation.ProcessMessage(r.Context(), id, req.Text)
	switch {
	case errors.Is(err, claude.ErrEmptyInput):
		writeJSON(w, http.StatusOK, VoiceResponse{Response: PhraseNoInput, ConversationID: id})
	case err != nil:
		h.logger.Error("failed to process voice input", "conversation", id, "error", err)
		writeJSON(w, http.StatusOK, VoiceResponse{Response: PhraseFallback, ConversationID: id, Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, VoiceResponse{Success: true, Response: reply, ConversationID: id})
	}
}

func (h *Handler) handleAPIReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		writeJSON(w, http.StatusBadRequest, VoiceResponse{Message: "No conversation_id provided"})
		return
	}

	h.conversation.ClearConversation(req.ConversationID)
	writeJSON(w, http.StatusOK, VoiceResponse{Success: true, Message: "Conversation has been reset."})
}

func (h *Handler) handleAPIUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.conversation.SetSystemPrompt(req.Prompt); err != nil {
		writeJSON(w, http.StatusBadRequest, VoiceResponse{Message: "No prompt provided"})
		return
	}

	h.logger.Info("system prompt updated", "chars", len(req.Prompt))
	writeJSON(w, http.StatusOK, VoiceResponse{Success: true, Message: "System prompt updated successfully."})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.store.Len(),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxAPIBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, VoiceResponse{Message: "Invalid JSON body", Error: err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
