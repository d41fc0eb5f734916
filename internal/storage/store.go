// Package storage provides conversation storage interfaces and implementations.
package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the recognized roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn represents a single message in a conversation.
type Turn struct {
	Role    Role   `json:"role"`    // "user" or "assistant"
	Content string `json:"content"` // The message content
}

var (
	// ErrEmptyContent is returned when a turn has no non-whitespace content.
	ErrEmptyContent = errors.New("content is empty")
	// ErrUnknownRole is returned when a turn's role is not user or assistant.
	ErrUnknownRole = errors.New("unknown role")
)

// ValidationError describes a rejected append. The store is unchanged when it is returned.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidateTurn checks a role/content pair before it enters history.
func ValidateTurn(role Role, content string) error {
	if !role.Valid() {
		return &ValidationError{Field: "role", Value: string(role), Err: ErrUnknownRole}
	}
	if strings.TrimSpace(content) == "" {
		return &ValidationError{Field: "content", Err: ErrEmptyContent}
	}
	return nil
}

// ConversationStore provides storage for conversation history keyed by conversation ID.
// Implementations must be safe for concurrent use.
type ConversationStore interface {
	// Append adds a turn to a conversation, creating the conversation if needed.
	// Returns a *ValidationError and leaves the store untouched for invalid turns.
	Append(id string, role Role, content string) error

	// History returns a copy of the conversation's turns, oldest first.
	// Unknown IDs yield an empty slice.
	History(id string) []Turn

	// Clear removes a conversation. Clearing an unknown ID is a no-op.
	Clear(id string)

	// Cleanup removes conversations idle for longer than the given duration
	// and returns how many were removed.
	Cleanup(olderThan time.Duration) int

	// Len returns the number of live conversations.
	Len() int
}
