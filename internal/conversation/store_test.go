package conversation

import (
	"sync"
	"testing"
)

func TestStorePutReplaces(t *testing.T) {
	s := NewStore()
	s.Put(&Conversation{ChatID: 1, State: StateEnterCode})
	s.Put(&Conversation{ChatID: 1, State: StateEnterCost})

	got := s.Get(1)
	if got == nil || got.State != StateEnterCost {
		t.Fatalf("got %+v", got)
	}

	s.Clear(1)
	if s.Get(1) != nil {
		t.Fatal("expected nil after clear")
	}
}

func TestStoreLockSerializesPerChat(t *testing.T) {
	s := NewStore()
	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock(42)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("counter = %d", counter)
	}
}
