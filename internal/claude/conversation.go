// Package claude provides conversation management for Claude interactions.
package claude

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dilumka1020/pravy-voice-bot-v2/internal/storage"
)

var (
	// ErrEmptyInput is returned when the caller said nothing usable.
	ErrEmptyInput = errors.New("no input received")
	// ErrEmptyReply is returned when the model answered without any text.
	ErrEmptyReply = errors.New("model returned an empty reply")
)

// Replier produces the assistant's next message for a conversation.
type Replier interface {
	Reply(ctx context.Context, systemPrompt string, turns []storage.Turn) (string, error)
}

// ConversationManager manages conversations with Claude.
type ConversationManager struct {
	replier Replier
	store   storage.ConversationStore
	prompt  *PromptSource
	logger  *slog.Logger
}

// NewConversationManager creates a new conversation manager.
func NewConversationManager(
	replier Replier,
	store storage.ConversationStore,
	prompt *PromptSource,
	logger *slog.Logger,
) *ConversationManager {
	if prompt == nil {
		prompt = NewPromptSource("")
	}
	return &ConversationManager{
		replier: replier,
		store:   store,
		prompt:  prompt,
		logger:  logger,
	}
}

// ProcessMessage records the caller's utterance, asks the model for a reply
// and records that reply. The returned text is what should be spoken.
func (m *ConversationManager) ProcessMessage(ctx context.Context, conversationID, userMessage string) (string, error) {
	userMessage = strings.TrimSpace(userMessage)
	if userMessage == "" {
		return "", ErrEmptyInput
	}

	if err := m.store.Append(conversationID, storage.RoleUser, userMessage); err != nil {
		return "", fmt.Errorf("failed to store user message: %w", err)
	}

	history := m.store.History(conversationID)
	m.logger.Debug("requesting reply", "conversation", conversationID, "turns", len(history))

	response, err := m.replier.Reply(ctx, m.prompt.Get(), history)
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}

	response = strings.TrimSpace(response)
	if response == "" {
		return "", ErrEmptyReply
	}

	if err := m.store.Append(conversationID, storage.RoleAssistant, response); err != nil {
		return "", fmt.Errorf("failed to store assistant message: %w", err)
	}

	return response, nil
}

// Transcript returns the retained history of a conversation.
func (m *ConversationManager) Transcript(conversationID string) []storage.Turn {
	return m.store.History(conversationID)
}

// ClearConversation removes a conversation from storage.
func (m *ConversationManager) ClearConversation(conversationID string) {
	m.store.Clear(conversationID)
}

// SetSystemPrompt updates the system prompt.
func (m *ConversationManager) SetSystemPrompt(prompt string) error {
	return m.prompt.Set(prompt)
}

// SystemPrompt returns the system prompt currently in use.
func (m *ConversationManager) SystemPrompt() string {
	return m.prompt.Get()
}
