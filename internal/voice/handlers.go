// Package voice provides the Twilio webhook handlers for the bot.
package voice

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"
	"unicode"

	twilioclient "github.com/twilio/twilio-go/client"

	"github.com/dilumka1020/pravy-voice-bot-v2/internal/claude"
	"github.com/dilumka1020/pravy-voice-bot-v2/internal/config"
	"github.com/dilumka1020/pravy-voice-bot-v2/internal/slack"
	"github.com/dilumka1020/pravy-voice-bot-v2/internal/storage"
)

// Phrases spoken by the assistant outside of model replies.
const (
	PhraseNoInput  = "I didn't receive any input. Please try speaking again."
	PhraseFallback = "Sorry, I'm having trouble understanding you. Please try again later."
	PhraseGoodbye  = "Thanks for calling. Goodbye!"
	PhraseNoSpeech = "I didn't hear anything, so I'll end the call now. Goodbye!"
)

const (
	rejectReason = "rejected"

	pathIncoming = "/voice/incoming"
	pathRespond  = "/voice/respond"
	pathStatus   = "/voice/status"
)

// terminalStatuses are Twilio call statuses after which the call is gone.
var terminalStatuses = map[string]bool{
	"completed": true,
	"failed":    true,
	"busy":      true,
	"no-answer": true,
	"canceled":  true,
}

// CallEndNotifier is told about every call that ends with a transcript.
type CallEndNotifier interface {
	NotifyCallEnded(summary slack.CallSummary)
}

// Handler handles Twilio voice webhooks and coordinates with Claude.
type Handler struct {
	conversation *claude.ConversationManager
	store        storage.ConversationStore
	notifier     CallEndNotifier
	callers      *CallerFilter
	validator    *twilioclient.RequestValidator
	publicURL    string

	voice          string
	language       string
	greeting       string
	speechTimeout  string
	goodbyePhrases []string
	replyTimeout   time.Duration

	logger *slog.Logger
	now    func() time.Time
}

// NewHandler creates a new webhook handler.
func NewHandler(
	cfg *config.Config,
	conversation *claude.ConversationManager,
	store storage.ConversationStore,
	notifier CallEndNotifier,
	logger *slog.Logger,
) (*Handler, error) {
	callers, err := NewCallerFilter(cfg.AllowedCallers)
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = slack.NopNotifier{}
	}

	h := &Handler{
		conversation:   conversation,
		store:          store,
		notifier:       notifier,
		callers:        callers,
		publicURL:      strings.TrimRight(cfg.PublicURL, "/"),
		voice:          cfg.Voice,
		language:       cfg.Language,
		greeting:       cfg.Greeting,
		speechTimeout:  cfg.SpeechTimeout,
		goodbyePhrases: normalizePhrases(cfg.GoodbyePhrases),
		replyTimeout:   cfg.ReplyTimeout,
		logger:         logger,
		now:            time.Now,
	}

	if cfg.TwilioAuthToken != "" {
		validator := twilioclient.NewRequestValidator(cfg.TwilioAuthToken)
		h.validator = &validator
	}

	return h, nil
}

// Routes returns the HTTP handler serving all webhook and API endpoints.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST "+pathIncoming, h.twilioOnly(h.handleIncoming))
	mux.Handle("POST "+pathRespond, h.twilioOnly(h.handleRespond))
	mux.Handle("POST "+pathStatus, h.twilioOnly(h.handleStatus))

	mux.HandleFunc("POST /api/voice", h.handleAPIVoice)
	mux.HandleFunc("POST /api/reset", h.handleAPIReset)
	mux.HandleFunc("POST /api/update-prompt", h.handleAPIUpdatePrompt)
	mux.HandleFunc("GET /healthz", h.handleHealth)

	return mux
}

// handleIncoming answers a new call with a greeting and starts listening.
func (h *Handler) handleIncoming(w http.ResponseWriter, r *http.Request) {
	callSID := r.PostFormValue("CallSid")
	from := r.PostFormValue("From")

	if !h.callers.Allowed(from) {
		h.logger.Info("rejecting caller", "call_sid", callSID, "from", from)
		writeTwiML(w, NewResponse(&Reject{Reason: rejectReason}))
		return
	}

	h.logger.Info("incoming call", "call_sid", callSID, "from", from)
	writeTwiML(w, NewResponse(h.listen(h.greeting, true)))
}

// handleRespond turns the caller's transcribed speech into a spoken reply.
func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	callSID := r.PostFormValue("CallSid")
	speech := strings.TrimSpace(r.PostFormValue("SpeechResult"))

	if callSID == "" {
		http.Error(w, "missing CallSid", http.StatusBadRequest)
		return
	}

	if speech == "" {
		// One reprompt; a second silence falls through to the goodbye.
		writeTwiML(w, NewResponse(
			h.listen(PhraseNoInput, false),
			h.say(PhraseNoSpeech),
			&Hangup{},
		))
		return
	}

	if h.isGoodbye(speech) {
		h.logger.Info("caller said goodbye", "call_sid", callSID)
		if err := h.store.Append(callSID, storage.RoleUser, speech); err != nil {
			h.logger.Warn("failed to record goodbye", "call_sid", callSID, "error", err)
		}
		writeTwiML(w, NewResponse(h.say(PhraseGoodbye), &Hangup{}))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.replyTimeout)
	defer cancel()

	reply, err := h.conversation.ProcessMessage(ctx, callSID, speech)
	if err != nil {
		h.logger.Error("failed to process speech", "call_sid", callSID, "error", err)
		reply = PhraseFallback
		if errors.Is(err, claude.ErrEmptyInput) {
			reply = PhraseNoInput
		}
	}

	writeTwiML(w, NewResponse(h.listen(reply, true)))
}

// handleStatus receives call status callbacks and drops finished calls.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	callSID := r.PostFormValue("CallSid")
	status := r.PostFormValue("CallStatus")

	if callSID != "" && terminalStatuses[status] {
		h.endCall(callSID, r.PostFormValue("From"), status)
	}

	w.WriteHeader(http.StatusNoContent)
}

// endCall hands the transcript to the notifier and clears the conversation.
func (h *Handler) endCall(callSID, from, status string) {
	transcript := h.conversation.Transcript(callSID)
	h.conversation.ClearConversation(callSID)

	h.logger.Info("call ended", "call_sid", callSID, "status", status, "turns", len(transcript))
	h.notifier.NotifyCallEnded(slack.CallSummary{
		CallSID:    callSID,
		From:       from,
		Status:     status,
		EndedAt:    h.now(),
		Transcript: transcript,
	})
}

func (h *Handler) say(text string) *Say {
	return &Say{Voice: h.voice, Language: h.language, Text: text}
}

// listen speaks text and gathers the caller's next utterance.
func (h *Handler) listen(text string, actionOnEmpty bool) *Gather {
	return &Gather{
		Input:               "speech",
		Action:              pathRespond,
		Method:              http.MethodPost,
		Language:            h.language,
		SpeechTimeout:       h.speechTimeout,
		ActionOnEmptyResult: actionOnEmpty,
		Say:                 h.say(text),
	}
}

// closingFiller are words a caller may say around a goodbye phrase.
var closingFiller = map[string]bool{
	"ok": true, "okay": true, "alright": true, "well": true, "so": true,
	"then": true, "now": true, "thanks": true, "thank": true, "you": true,
	"very": true, "much": true, "great": true, "cool": true, "perfect": true,
	"yes": true, "yeah": true, "please": true,
}

// isGoodbye reports whether the utterance is made of goodbye phrases and
// closing filler words only, with at least one goodbye phrase.
func (h *Handler) isGoodbye(speech string) bool {
	words := strings.Fields(normalizeSpeech(speech))
	said := false
	for len(words) > 0 {
		if n := h.goodbyeAt(words); n > 0 {
			words, said = words[n:], true
			continue
		}
		if !closingFiller[words[0]] {
			return false
		}
		words = words[1:]
	}
	return said
}

// goodbyeAt returns the word count of the goodbye phrase that opens words, or 0.
func (h *Handler) goodbyeAt(words []string) int {
	for _, phrase := range h.goodbyePhrases {
		parts := strings.Fields(phrase)
		if len(parts) <= len(words) && slices.Equal(parts, words[:len(parts)]) {
			return len(parts)
		}
	}
	return 0
}

// normalizeSpeech lowercases text and strips punctuation other than apostrophes.
func normalizeSpeech(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(cleaned), " ")
}

func normalizePhrases(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if n := normalizeSpeech(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}
