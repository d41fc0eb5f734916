package storage

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendAll(t *testing.T, s *MemoryStore, id string, turns []Turn) {
	t.Helper()
	for _, turn := range turns {
		require.NoError(t, s.Append(id, turn.Role, turn.Content))
	}
}

func numberedTurns(n int) []Turn {
	turns := make([]Turn, n)
	for i := range turns {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		turns[i] = Turn{Role: role, Content: fmt.Sprintf("turn %d", i)}
	}
	return turns
}

func mustPolicy(t *testing.T, kind PolicyKind, max int) RetentionPolicy {
	t.Helper()
	p, err := NewRetentionPolicy(kind, max)
	require.NoError(t, err)
	return p
}

func TestMemoryStore_GreetingExample(t *testing.T) {
	s := NewMemoryStore()

	require.NoError(t, s.Append("CA1", RoleUser, "Hi"))
	require.NoError(t, s.Append("CA1", RoleAssistant, "Hello, how can I help?"))

	assert.Equal(t, []Turn{
		{Role: RoleUser, Content: "Hi"},
		{Role: RoleAssistant, Content: "Hello, how can I help?"},
	}, s.History("CA1"))

	s.Clear("CA1")
	assert.Empty(t, s.History("CA1"))
	assert.NotNil(t, s.History("CA1"))
}

func TestMemoryStore_PreservesOrderBelowBound(t *testing.T) {
	s := NewMemoryStore(WithRetention(mustPolicy(t, PolicyTail, 10)))
	in := numberedTurns(10)

	appendAll(t, s, "CA1", in)

	assert.Equal(t, in, s.History("CA1"))
}

func TestMemoryStore_RejectsBlankContent(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Append("CA1", RoleUser, "Hi"))
	before := s.History("CA1")

	for _, content := range []string{"", " ", "\t\n", "   \r\n  "} {
		err := s.Append("CA1", RoleUser, content)
		require.Error(t, err)

		var verr *ValidationError
		require.True(t, errors.As(err, &verr), "expected ValidationError, got %T", err)
		assert.Equal(t, "content", verr.Field)
		assert.ErrorIs(t, err, ErrEmptyContent)
	}

	assert.Equal(t, before, s.History("CA1"))
}

func TestMemoryStore_RejectsUnknownRole(t *testing.T) {
	s := NewMemoryStore()

	err := s.Append("CA1", Role("system"), "You are helpful")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownRole)
	assert.Contains(t, err.Error(), `"system"`)

	assert.Empty(t, s.History("CA1"))
	assert.Equal(t, 0, s.Len(), "rejected append must not create a session")
}

func TestMemoryStore_TailKeep(t *testing.T) {
	s := NewMemoryStore(WithRetention(mustPolicy(t, PolicyTail, 10)))
	in := numberedTurns(25)

	appendAll(t, s, "CA1", in)

	got := s.History("CA1")
	require.Len(t, got, 10)
	assert.Equal(t, in[15:], got)
}

func TestMemoryStore_AnchoredKeep(t *testing.T) {
	s := NewMemoryStore(WithRetention(mustPolicy(t, PolicyAnchored, 10)))
	in := numberedTurns(25)

	appendAll(t, s, "CA1", in)

	got := s.History("CA1")
	require.Len(t, got, 10)
	assert.Equal(t, in[0], got[0])
	assert.Equal(t, in[16:], got[1:])
}

func TestMemoryStore_BoundHoldsAfterEveryAppend(t *testing.T) {
	for _, kind := range []PolicyKind{PolicyTail, PolicyAnchored} {
		t.Run(string(kind), func(t *testing.T) {
			s := NewMemoryStore(WithRetention(mustPolicy(t, kind, 4)))
			for i, turn := range numberedTurns(12) {
				require.NoError(t, s.Append("CA1", turn.Role, turn.Content))
				assert.LessOrEqual(t, len(s.History("CA1")), 4, "after append %d", i)
			}
		})
	}
}

func TestMemoryStore_DefaultRetention(t *testing.T) {
	s := NewMemoryStore()
	assert.Equal(t, PolicyAnchored, s.Policy().Kind())
	assert.Equal(t, DefaultMaxTurns, s.Policy().MaxTurns())

	in := numberedTurns(DefaultMaxTurns + 5)
	appendAll(t, s, "CA1", in)

	got := s.History("CA1")
	require.Len(t, got, DefaultMaxTurns)
	assert.Equal(t, in[0], got[0])
	assert.Equal(t, in[len(in)-1], got[len(got)-1])
}

func TestMemoryStore_ClearIsIdempotent(t *testing.T) {
	s := NewMemoryStore()

	s.Clear("never-seen")
	assert.Empty(t, s.History("never-seen"))

	require.NoError(t, s.Append("CA1", RoleUser, "Hi"))
	s.Clear("CA1")
	s.Clear("CA1")
	assert.Empty(t, s.History("CA1"))
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_AppendAfterClearStartsFresh(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Append("CA1", RoleUser, "first call"))
	s.Clear("CA1")

	require.NoError(t, s.Append("CA1", RoleUser, "second call"))
	assert.Equal(t, []Turn{{Role: RoleUser, Content: "second call"}}, s.History("CA1"))
}

func TestMemoryStore_IndependentConversations(t *testing.T) {
	s := NewMemoryStore()

	require.NoError(t, s.Append("CA1", RoleUser, "one"))
	require.NoError(t, s.Append("CA2", RoleUser, "two"))
	require.NoError(t, s.Append("CA1", RoleAssistant, "one back"))

	assert.Equal(t, []Turn{{Role: RoleUser, Content: "two"}}, s.History("CA2"))
	assert.Len(t, s.History("CA1"), 2)

	s.Clear("CA1")
	assert.Equal(t, []Turn{{Role: RoleUser, Content: "two"}}, s.History("CA2"))
}

func TestMemoryStore_HistoryIsACopy(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Append("CA1", RoleUser, "Hi"))

	got := s.History("CA1")
	got[0].Content = "tampered"
	_ = append(got, Turn{Role: RoleAssistant, Content: "injected"})

	assert.Equal(t, []Turn{{Role: RoleUser, Content: "Hi"}}, s.History("CA1"))
}

func TestMemoryStore_ConcurrentAppendsSameConversation(t *testing.T) {
	const writers = 200
	s := NewMemoryStore(WithRetention(mustPolicy(t, PolicyTail, writers)))

	var wg conc.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Go(func() {
			assert.NoError(t, s.Append("CA1", RoleUser, fmt.Sprintf("utterance %d", i)))
		})
	}
	wg.Wait()

	got := s.History("CA1")
	require.Len(t, got, writers)

	seen := make(map[string]bool, writers)
	for _, turn := range got {
		assert.Equal(t, RoleUser, turn.Role)
		assert.False(t, seen[turn.Content], "duplicate turn %q", turn.Content)
		seen[turn.Content] = true
	}
	for i := 0; i < writers; i++ {
		assert.True(t, seen[fmt.Sprintf("utterance %d", i)], "lost utterance %d", i)
	}
}

func TestMemoryStore_ConcurrentConversations(t *testing.T) {
	const calls, perCall = 50, 8
	s := NewMemoryStore(WithRetention(mustPolicy(t, PolicyTail, perCall)))

	var wg conc.WaitGroup
	for c := 0; c < calls; c++ {
		wg.Go(func() {
			id := fmt.Sprintf("CA%d", c)
			for i := 0; i < perCall; i++ {
				assert.NoError(t, s.Append(id, RoleUser, fmt.Sprintf("%s-%d", id, i)))
				_ = s.History(id)
			}
		})
	}
	wg.Wait()

	require.Equal(t, calls, s.Len())
	for c := 0; c < calls; c++ {
		id := fmt.Sprintf("CA%d", c)
		got := s.History(id)
		require.Len(t, got, perCall)
		for i, turn := range got {
			assert.Equal(t, fmt.Sprintf("%s-%d", id, i), turn.Content)
		}
	}
}

func TestMemoryStore_ConcurrentAppendAndClear(t *testing.T) {
	s := NewMemoryStore(WithRetention(mustPolicy(t, PolicyTail, 1000)))

	var wg conc.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Go(func() {
			assert.NoError(t, s.Append("CA1", RoleUser, fmt.Sprintf("u%d", i)))
		})
		if i%10 == 0 {
			wg.Go(func() { s.Clear("CA1") })
		}
	}
	wg.Wait()

	// Whatever survived must be whole turns, each appended exactly once.
	seen := map[string]bool{}
	for _, turn := range s.History("CA1") {
		assert.NotEmpty(t, turn.Content)
		assert.False(t, seen[turn.Content])
		seen[turn.Content] = true
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryStore_CleanupRemovesIdleConversations(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(WithClock(clock.Now))

	require.NoError(t, s.Append("stale", RoleUser, "hello?"))
	clock.Advance(20 * time.Minute)
	require.NoError(t, s.Append("live", RoleUser, "still here"))
	clock.Advance(15 * time.Minute)

	removed := s.Cleanup(30 * time.Minute)

	assert.Equal(t, 1, removed)
	assert.Empty(t, s.History("stale"))
	assert.Len(t, s.History("live"), 1)
	assert.Equal(t, 1, s.Len())
}
