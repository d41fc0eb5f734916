package storage

import (
	"fmt"
	"strings"
)

// PolicyKind names a retention policy.
type PolicyKind string

const (
	// PolicyTail keeps only the newest turns.
	PolicyTail PolicyKind = "tail"
	// PolicyAnchored keeps the first turn of the conversation plus the newest turns.
	PolicyAnchored PolicyKind = "anchored"
)

const (
	// DefaultMaxTurns is the default number of turns retained per conversation.
	DefaultMaxTurns = 20
	// DefaultPolicy is the default retention policy.
	DefaultPolicy = PolicyAnchored
)

// RetentionPolicy bounds the length of a conversation. Apply is called after
// every append and returns turns with at most MaxTurns entries. When trimming
// it returns a freshly allocated slice.
type RetentionPolicy interface {
	Kind() PolicyKind
	MaxTurns() int
	Apply(turns []Turn) []Turn
}

// NewRetentionPolicy returns the named policy bounded to maxTurns.
func NewRetentionPolicy(kind PolicyKind, maxTurns int) (RetentionPolicy, error) {
	switch PolicyKind(strings.ToLower(string(kind))) {
	case PolicyTail:
		if maxTurns < 1 {
			return nil, fmt.Errorf("tail retention needs at least 1 turn, got %d", maxTurns)
		}
		return tailKeep{max: maxTurns}, nil
	case PolicyAnchored:
		if maxTurns < 2 {
			return nil, fmt.Errorf("anchored retention needs at least 2 turns, got %d", maxTurns)
		}
		return anchoredKeep{max: maxTurns}, nil
	default:
		return nil, fmt.Errorf("unknown retention policy %q, must be %q or %q", kind, PolicyTail, PolicyAnchored)
	}
}

// DefaultRetention returns anchored retention of DefaultMaxTurns turns.
func DefaultRetention() RetentionPolicy {
	return anchoredKeep{max: DefaultMaxTurns}
}

type tailKeep struct {
	max int
}

func (p tailKeep) Kind() PolicyKind { return PolicyTail }
func (p tailKeep) MaxTurns() int    { return p.max }

func (p tailKeep) Apply(turns []Turn) []Turn {
	if len(turns) <= p.max {
		return turns
	}
	kept := make([]Turn, p.max)
	copy(kept, turns[len(turns)-p.max:])
	return kept
}

type anchoredKeep struct {
	max int
}

func (p anchoredKeep) Kind() PolicyKind { return PolicyAnchored }
func (p anchoredKeep) MaxTurns() int    { return p.max }

func (p anchoredKeep) Apply(turns []Turn) []Turn {
	if len(turns) <= p.max {
		return turns
	}
	kept := make([]Turn, 0, p.max)
	kept = append(kept, turns[0])
	kept = append(kept, turns[len(turns)-(p.max-1):]...)
	return kept
}
