package voice

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// CallerFilter decides which callers the assistant answers. Patterns are glob
// expressions over the caller's E.164 number, e.g. "+1415*" or "+44{20,161}*".
// An empty filter allows everyone.
type CallerFilter struct {
	patterns []string
}

// NewCallerFilter validates and compiles the allow-list.
func NewCallerFilter(patterns []string) (*CallerFilter, error) {
	f := &CallerFilter{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid caller pattern %q", p)
		}
		f.patterns = append(f.patterns, p)
	}
	return f, nil
}

// Allowed reports whether the caller may use the assistant.
func (f *CallerFilter) Allowed(from string) bool {
	if f == nil || len(f.patterns) == 0 {
		return true
	}
	for _, p := range f.patterns {
		if ok, err := doublestar.Match(p, from); err == nil && ok {
			return true
		}
	}
	return false
}
