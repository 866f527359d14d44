package domain

import (
	"fmt"
	"strings"
)

// AuthFailure identifies why a verification token was rejected.
type AuthFailure string

const (
	// AuthNotFound means no token row matched the supplied code.
	AuthNotFound AuthFailure = "not_found"
	// AuthExpired means the token exists but its validity window has passed.
	AuthExpired AuthFailure = "expired"
	// AuthAlreadyUsed means the token was consumed by an earlier verification.
	AuthAlreadyUsed AuthFailure = "already_used"
	// AuthBlocked means repeated failures put the token on a cooldown.
	AuthBlocked AuthFailure = "blocked"
)

// AuthenticationError reports a failed token verification attempt.
type AuthenticationError struct {
	Reason AuthFailure
}

func (e *AuthenticationError) Error() string {
	return "authentication failed: " + string(e.Reason)
}

// Code returns the log code for the router summary line.
func (e *AuthenticationError) Code() string {
	return "AUTH_" + strings.ToUpper(string(e.Reason))
}

// SessionExpiredError reports a verified session whose expiry has passed.
type SessionExpiredError struct {
	ChatID int64
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("session expired for chat %d", e.ChatID)
}

// Code returns the log code for the router summary line.
func (e *SessionExpiredError) Code() string { return "SESSION_EXPIRED" }

// ValidationError reports malformed or out-of-range user input. It is
// recovered inside the workflow by re-prompting, never surfaced as a crash.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Msg
	}
	return "invalid " + e.Field + ": " + e.Msg
}

// Code returns the log code for the router summary line.
func (e *ValidationError) Code() string { return "VALIDATION" }

// AmbiguousInputError reports input that matched no candidate above the
// suggestion threshold.
type AmbiguousInputError struct {
	Input string
}

func (e *AmbiguousInputError) Error() string {
	return fmt.Sprintf("no close match for %q", e.Input)
}

// Code returns the log code for the router summary line.
func (e *AmbiguousInputError) Code() string { return "AMBIGUOUS_INPUT" }

// ExternalServiceError wraps failures of outbound collaborators such as the
// AI extractor or message delivery.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return e.Service + ": " + e.Err.Error()
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// Code returns the log code for the router summary line.
func (e *ExternalServiceError) Code() string { return "EXTERNAL_SERVICE" }

// PersistenceError wraps store failures on terminal mutations. The triggering
// operation is aborted with no partial write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Code returns the log code for the router summary line.
func (e *PersistenceError) Code() string { return "PERSISTENCE" }
