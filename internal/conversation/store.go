package conversation

import "sync"

// Store keys conversations by chat id and hands out a per-chat lock so the
// engine handles one message per chat at a time. Replacing a conversation is
// atomic: at most one exists per chat.
type Store struct {
	mu    sync.Mutex
	convs map[int64]*Conversation
	locks map[int64]*sync.Mutex
}

// NewStore returns an empty keyed store.
func NewStore() *Store {
	return &Store{
		convs: make(map[int64]*Conversation),
		locks: make(map[int64]*sync.Mutex),
	}
}

// Lock acquires the chat's serialization lock and returns the unlock func.
func (s *Store) Lock(chatID int64) func() {
	s.mu.Lock()
	l, ok := s.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[chatID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Get returns the chat's conversation or nil when the chat is idle.
func (s *Store) Get(chatID int64) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convs[chatID]
}

// Put replaces the chat's conversation.
func (s *Store) Put(conv *Conversation) {
	if conv == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[conv.ChatID] = conv
}

// Clear drops the chat's conversation, returning the chat to idle.
func (s *Store) Clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, chatID)
}
