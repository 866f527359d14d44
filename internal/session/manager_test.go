package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/couponmaster/couponbot/internal/domain"
)

type fakeStore struct {
	byChat       map[int64]*Session
	byToken      map[string]*Session
	consumed     map[string]bool
	disconnected []int64
	attempts     map[string]int
	extendCalls  int
	failLookup   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byChat:   make(map[int64]*Session),
		byToken:  make(map[string]*Session),
		consumed: make(map[string]bool),
		attempts: make(map[string]int),
	}
}

func (f *fakeStore) FindVerifiedByChat(_ context.Context, chatID int64) (*Session, error) {
	if f.failLookup != nil {
		return nil, f.failLookup
	}
	return f.byChat[chatID], nil
}

func (f *fakeStore) ConsumeToken(_ context.Context, token string, chatID int64, username string, ttl time.Duration) (*Session, error) {
	sess, ok := f.byToken[token]
	if !ok || sess.Verified || sess.Disconnected || f.consumed[token] || !sess.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	if sess.BlockedUntil != nil && sess.BlockedUntil.After(time.Now()) {
		return nil, nil
	}
	f.consumed[token] = true
	sess.Verified = true
	sess.ChatID.Int64 = chatID
	sess.ChatID.Valid = true
	sess.Username.String = username
	sess.Username.Valid = username != ""
	sess.ExpiresAt = time.Now().Add(ttl)
	f.byChat[chatID] = sess
	return sess, nil
}

func (f *fakeStore) TokenState(_ context.Context, token string) (*Session, error) {
	return f.byToken[token], nil
}

func (f *fakeStore) RecordFailedAttempt(_ context.Context, token string) error {
	f.attempts[token]++
	return nil
}

func (f *fakeStore) ExtendExpiry(_ context.Context, chatID int64, ttl time.Duration) error {
	f.extendCalls++
	if sess, ok := f.byChat[chatID]; ok {
		next := time.Now().Add(ttl)
		if next.After(sess.ExpiresAt) {
			sess.ExpiresAt = next
		}
	}
	return nil
}

func (f *fakeStore) MarkDisconnected(_ context.Context, chatID int64) error {
	f.disconnected = append(f.disconnected, chatID)
	if sess, ok := f.byChat[chatID]; ok {
		sess.Verified = false
		sess.Disconnected = true
		delete(f.byChat, chatID)
	}
	return nil
}

func (f *fakeStore) ListVerified(_ context.Context) ([]Session, error) {
	var out []Session
	for _, sess := range f.byChat {
		out = append(out, *sess)
	}
	return out, nil
}

func TestValidateExpiredMarksDisconnected(t *testing.T) {
	store := newFakeStore()
	store.byChat[10] = &Session{
		UserID:    1,
		Verified:  true,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	m := NewManager(store, 30*time.Minute)

	_, err := m.Validate(context.Background(), 10)
	var expired *domain.SessionExpiredError
	if !errors.As(err, &expired) {
		t.Fatalf("expected SessionExpiredError, got %v", err)
	}
	if len(store.disconnected) != 1 || store.disconnected[0] != 10 {
		t.Fatalf("expected chat 10 marked disconnected, got %v", store.disconnected)
	}
}

func TestValidateUnknownChat(t *testing.T) {
	m := NewManager(newFakeStore(), 30*time.Minute)
	_, err := m.Validate(context.Background(), 99)
	var auth *domain.AuthenticationError
	if !errors.As(err, &auth) || auth.Reason != domain.AuthNotFound {
		t.Fatalf("expected AuthNotFound, got %v", err)
	}
}

func TestAuthenticateTokenIsSingleUse(t *testing.T) {
	store := newFakeStore()
	store.byToken["ABC123"] = &Session{
		UserID:    7,
		Token:     "ABC123",
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	m := NewManager(store, 30*time.Minute)

	sess, err := m.Authenticate(context.Background(), "ABC123", 55, "alice")
	if err != nil {
		t.Fatalf("first authenticate: %v", err)
	}
	if sess.UserID != 7 {
		t.Fatalf("unexpected user %d", sess.UserID)
	}

	_, err = m.Authenticate(context.Background(), "ABC123", 56, "bob")
	var auth *domain.AuthenticationError
	if !errors.As(err, &auth) || auth.Reason != domain.AuthAlreadyUsed {
		t.Fatalf("expected AuthAlreadyUsed on reuse, got %v", err)
	}
	if store.attempts["ABC123"] != 1 {
		t.Fatalf("expected 1 failed attempt recorded, got %d", store.attempts["ABC123"])
	}
}

func TestAuthenticateRejectsTokenAfterDisconnect(t *testing.T) {
	store := newFakeStore()
	store.byToken["ABC123"] = &Session{
		UserID:    7,
		Token:     "ABC123",
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	m := NewManager(store, 30*time.Minute)

	if _, err := m.Authenticate(context.Background(), "ABC123", 55, "alice"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := m.Disconnect(context.Background(), 55); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	// Disconnect resets is_verified but the token must stay consumed. The
	// expiry is still a full TTL away, so only the disconnected flag stands
	// between this token and a different chat binding to the account.
	_, err := m.Authenticate(context.Background(), "ABC123", 56, "bob")
	var auth *domain.AuthenticationError
	if !errors.As(err, &auth) || auth.Reason != domain.AuthAlreadyUsed {
		t.Fatalf("expected AuthAlreadyUsed after disconnect, got %v", err)
	}
}

func TestAuthenticateClassifiesExpiredToken(t *testing.T) {
	store := newFakeStore()
	store.byToken["OLD"] = &Session{
		Token:     "OLD",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	m := NewManager(store, 30*time.Minute)

	_, err := m.Authenticate(context.Background(), "OLD", 1, "")
	var auth *domain.AuthenticationError
	if !errors.As(err, &auth) || auth.Reason != domain.AuthExpired {
		t.Fatalf("expected AuthExpired, got %v", err)
	}
}

func TestAuthenticateClassifiesBlockedToken(t *testing.T) {
	blocked := time.Now().Add(time.Hour)
	store := newFakeStore()
	store.byToken["HOT"] = &Session{
		Token:        "HOT",
		ExpiresAt:    time.Now().Add(10 * time.Minute),
		BlockedUntil: &blocked,
	}
	m := NewManager(store, 30*time.Minute)

	_, err := m.Authenticate(context.Background(), "HOT", 1, "")
	var auth *domain.AuthenticationError
	if !errors.As(err, &auth) || auth.Reason != domain.AuthBlocked {
		t.Fatalf("expected AuthBlocked, got %v", err)
	}
}

func TestAuthenticateUnknownToken(t *testing.T) {
	m := NewManager(newFakeStore(), 30*time.Minute)
	_, err := m.Authenticate(context.Background(), "NOPE", 1, "")
	var auth *domain.AuthenticationError
	if !errors.As(err, &auth) || auth.Reason != domain.AuthNotFound {
		t.Fatalf("expected AuthNotFound, got %v", err)
	}
}

func TestRefreshDelegatesToStore(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, 30*time.Minute)
	if err := m.Refresh(context.Background(), 5); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if store.extendCalls != 1 {
		t.Fatalf("expected one extend call, got %d", store.extendCalls)
	}
}

func TestValidateWrapsStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.failLookup = errors.New("connection refused")
	m := NewManager(store, 30*time.Minute)
	_, err := m.Validate(context.Background(), 1)
	var pe *domain.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
}
