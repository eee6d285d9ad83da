package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(reply string) Generator {
	return func(context.Context, string) (string, error) { return reply, nil }
}

func TestRender(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Text: "hello"},
		{Role: RoleAssistant, Text: "Hi there."},
		{Role: RoleUser, Text: "how are you"},
	}
	want := "User: hello\nAssistant:\nHi there.\nUser: how are you\nAssistant:"
	assert.Equal(t, want, Render(turns))
	assert.Equal(t, len(want), renderedLen(turns))
	assert.Equal(t, "", Render(nil))
}

func TestConverse_AppendsTurns(t *testing.T) {
	s := New("s1", 0)

	var prompts []string
	gen := func(_ context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return "  Hello!  \n", nil
	}

	reply, err := s.Converse(context.Background(), "hi", gen)
	require.NoError(t, err)
	assert.Equal(t, "Hello!", reply)
	assert.Equal(t, "User: hi\nAssistant:", prompts[0])

	_, err = s.Converse(context.Background(), "again", gen)
	require.NoError(t, err)
	assert.Equal(t, "User: hi\nAssistant:\nHello!\nUser: again\nAssistant:", prompts[1])

	assert.Equal(t, []Turn{
		{Role: RoleUser, Text: "hi"},
		{Role: RoleAssistant, Text: "Hello!"},
		{Role: RoleUser, Text: "again"},
		{Role: RoleAssistant, Text: "Hello!"},
	}, s.Turns())
}

func TestConverse_RollsBackOnError(t *testing.T) {
	s := New("s1", 0)
	_, err := s.Converse(context.Background(), "first", echo("ok"))
	require.NoError(t, err)
	before := s.Turns()

	boom := errors.New("model down")
	_, err = s.Converse(context.Background(), "second", func(context.Context, string) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before, s.Turns())
}

func TestConverse_RollbackRestoresEvictedTurns(t *testing.T) {
	s := New("s1", 60)
	_, err := s.Converse(context.Background(), "an opening question", echo("an opening answer"))
	require.NoError(t, err)
	before := s.Turns()

	_, err = s.Converse(context.Background(), strings.Repeat("x", 40), func(context.Context, string) (string, error) {
		return "", context.DeadlineExceeded
	})
	require.Error(t, err)
	assert.Equal(t, before, s.Turns())
}

func TestConverse_EvictsOldestFirst(t *testing.T) {
	s := New("s1", 80)
	for _, q := range []string{"one", "two", "three", "four", "five"} {
		_, err := s.Converse(context.Background(), q, echo("answer "+q))
		require.NoError(t, err)
	}

	turns := s.Turns()
	assert.Equal(t, Turn{Role: RoleAssistant, Text: "answer five"}, turns[len(turns)-1])
	assert.Equal(t, Turn{Role: RoleUser, Text: "five"}, turns[len(turns)-2])
	assert.NotEqual(t, "one", turns[0].Text)

	var prompt string
	_, err := s.Converse(context.Background(), "six", func(_ context.Context, p string) (string, error) {
		prompt = p
		return "ok", nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(prompt), 80)
	assert.True(t, strings.HasSuffix(prompt, "User: six\nAssistant:"))
}

func TestConverse_OversizedTurnIsKept(t *testing.T) {
	s := New("s1", 10)
	long := strings.Repeat("y", 50)
	var prompt string
	_, err := s.Converse(context.Background(), long, func(_ context.Context, p string) (string, error) {
		prompt = p
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "User: "+long+"\nAssistant:", prompt)
}

func TestConverse_SerializesPerSession(t *testing.T) {
	s := New("s1", 0)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Converse(context.Background(), "q", echo("a"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	turns := s.Turns()
	require.Len(t, turns, 40)
	for i, turn := range turns {
		if i%2 == 0 {
			assert.Equal(t, RoleUser, turn.Role)
		} else {
			assert.Equal(t, RoleAssistant, turn.Role)
		}
	}
}

func TestStore(t *testing.T) {
	var last int
	st := NewStore(StoreConfig{MaxSessions: 2, MaxChars: 100, OnChange: func(n int) { last = n }})

	a := st.Get("a")
	assert.Same(t, a, st.Get("a"))
	assert.Equal(t, "a", a.ID())

	st.Get("b")
	st.Get("c")
	assert.Equal(t, 2, st.Len())
	assert.Equal(t, 2, last)

	_, ok := st.Peek("a")
	assert.False(t, ok, "least recently used session is evicted")

	fresh := st.Get("")
	assert.NotEmpty(t, fresh.ID())

	assert.True(t, st.Remove(fresh.ID()))
	assert.Equal(t, 1, last)
}

func TestStore_IdleExpiry(t *testing.T) {
	st := NewStore(StoreConfig{MaxSessions: 10, IdleTTL: 20 * time.Millisecond})
	st.Get("a")
	require.Eventually(t, func() bool {
		_, ok := st.Peek("a")
		return !ok
	}, time.Second, 5*time.Millisecond)
}
