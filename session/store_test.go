package session_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/edupipe/course-agent/session"
)

func TestAppendTrimsOldestTurns(t *testing.T) {
	// Two exchanges means at most four turns.
	store := session.New(2)

	for i := 1; i <= 6; i++ {
		store.Append("s1", session.RoleUser, fmt.Sprintf("turn %d", i))
	}

	history := store.History("s1")
	if len(history) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(history))
	}
	for i, turn := range history {
		want := fmt.Sprintf("turn %d", i+3)
		if turn.Content != want {
			t.Fatalf("turn %d: expected %q, got %q", i, want, turn.Content)
		}
	}
}

func TestAppendExchangeKeepsOrder(t *testing.T) {
	store := session.New(2)

	store.AppendExchange("s1", "q1", "a1")
	store.AppendExchange("s1", "q2", "a2")
	store.AppendExchange("s1", "q3", "a3")

	history := store.History("s1")
	if len(history) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(history))
	}

	want := []session.Turn{
		{Role: session.RoleUser, Content: "q2"},
		{Role: session.RoleAssistant, Content: "a2"},
		{Role: session.RoleUser, Content: "q3"},
		{Role: session.RoleAssistant, Content: "a3"},
	}
	for i := range want {
		if history[i] != want[i] {
			t.Fatalf("turn %d: expected %+v, got %+v", i, want[i], history[i])
		}
	}
}

func TestHistoryUnknownSession(t *testing.T) {
	store := session.New(2)
	if history := store.History("missing"); history != nil {
		t.Fatalf("expected nil history, got %v", history)
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	store := session.New(2)
	store.Append("s1", session.RoleUser, "original")

	history := store.History("s1")
	history[0].Content = "mutated"

	if store.History("s1")[0].Content != "original" {
		t.Fatal("expected stored history to be unaffected by caller mutation")
	}
}

func TestDeleteEvictsSession(t *testing.T) {
	store := session.New(2)
	store.Append("s1", session.RoleUser, "hello")
	store.Delete("s1")

	if history := store.History("s1"); history != nil {
		t.Fatalf("expected no history after delete, got %v", history)
	}
}

func TestConcurrentAppendsStayBounded(t *testing.T) {
	store := session.New(4)

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			id := fmt.Sprintf("session-%d", worker%2)
			for i := 0; i < 50; i++ {
				store.Append(id, session.RoleUser, fmt.Sprintf("w%d-%d", worker, i))
			}
		}(worker)
	}
	wg.Wait()

	for _, id := range []string{"session-0", "session-1"} {
		if got := len(store.History(id)); got != 8 {
			t.Fatalf("%s: expected 8 turns after concurrent appends, got %d", id, got)
		}
	}
}
