package conversation

import (
	"context"
	"strings"
	"testing"

	"github.com/couponmaster/couponbot/internal/ai"
	"github.com/couponmaster/couponbot/internal/coupon"
	"github.com/couponmaster/couponbot/internal/domain"
	"github.com/couponmaster/couponbot/internal/session"
)

type recorder struct {
	sent []string
}

func (r *recorder) Send(_ context.Context, _ int64, text string) error {
	r.sent = append(r.sent, text)
	return nil
}

func (r *recorder) last() string {
	if len(r.sent) == 0 {
		return ""
	}
	return r.sent[len(r.sent)-1]
}

type fakeSessions struct {
	sess        *session.Session
	validateErr error
	authErr     error
	authTokens  []string
	disconnects int
}

func (f *fakeSessions) Validate(context.Context, int64) (*session.Session, error) {
	if f.validateErr != nil {
		return nil, f.validateErr
	}
	return f.sess, nil
}

func (f *fakeSessions) Authenticate(_ context.Context, token string, chatID int64, _ string) (*session.Session, error) {
	f.authTokens = append(f.authTokens, token)
	if f.authErr != nil {
		return nil, f.authErr
	}
	f.validateErr = nil
	f.sess = &session.Session{UserID: 7}
	return f.sess, nil
}

func (f *fakeSessions) Refresh(context.Context, int64) error { return nil }

func (f *fakeSessions) Disconnect(context.Context, int64) error {
	f.disconnects++
	return nil
}

type fakeCoupons struct {
	active    []coupon.Coupon
	known     []string
	saved     []*coupon.Coupon
	usages    []float64
	deleted   []int64
	usageErr  error
	deleteErr error
}

func (f *fakeCoupons) ListActive(context.Context, int64) ([]coupon.Coupon, error) {
	return f.active, nil
}

func (f *fakeCoupons) ListActiveByCompany(_ context.Context, _ int64, company string) ([]coupon.Coupon, error) {
	var out []coupon.Coupon
	for _, c := range f.active {
		if strings.EqualFold(c.Company, company) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCoupons) Companies(context.Context, int64) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, c := range f.active {
		if !seen[c.Company] {
			seen[c.Company] = true
			out = append(out, c.Company)
		}
	}
	return out, nil
}

func (f *fakeCoupons) KnownCompanies(context.Context) ([]string, error) {
	return f.known, nil
}

func (f *fakeCoupons) Save(_ context.Context, c *coupon.Coupon) error {
	f.saved = append(f.saved, c)
	return nil
}

func (f *fakeCoupons) RecordUsage(_ context.Context, couponID, _ int64, amount float64) (*coupon.Coupon, error) {
	if f.usageErr != nil {
		return nil, f.usageErr
	}
	f.usages = append(f.usages, amount)
	for i := range f.active {
		if f.active[i].ID == couponID {
			c := f.active[i]
			c.ApplyUsage(amount)
			return &c, nil
		}
	}
	return nil, &domain.ValidationError{Field: "coupon", Msg: "not found"}
}

func (f *fakeCoupons) DeleteCascade(_ context.Context, couponID, _ int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, couponID)
	return nil
}

type fakeExtractor struct {
	result *ai.Extraction
	err    error
	texts  []string
}

func (f *fakeExtractor) Extract(_ context.Context, text string, _ []string) (*ai.Extraction, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestEngine(t *testing.T) (*Engine, *fakeSessions, *fakeCoupons, *fakeExtractor, *recorder) {
	t.Helper()
	sessions := &fakeSessions{sess: &session.Session{UserID: 7}}
	coupons := &fakeCoupons{}
	extract := &fakeExtractor{}
	out := &recorder{}
	cfg := Config{MaxAmount: 100000, AIMinChars: 10, AIMaxChars: 2000, SuggestThreshold: 90, ExactThreshold: 100}
	return NewEngine(cfg, sessions, coupons, extract, out), sessions, coupons, extract, out
}

func send(t *testing.T, e *Engine, chatID int64, texts ...string) {
	t.Helper()
	for _, text := range texts {
		if err := e.HandleMessage(context.Background(), chatID, "tester", text); err != nil {
			t.Fatalf("HandleMessage(%q): %v", text, err)
		}
	}
}

func TestTokenAuthentication(t *testing.T) {
	e, sessions, _, _, out := newTestEngine(t)
	sessions.validateErr = &domain.AuthenticationError{Reason: domain.AuthNotFound}
	sessions.sess = nil

	send(t, e, 1, "/start")
	if out.last() != msgAskToken {
		t.Fatalf("command before auth = %q, want token prompt", out.last())
	}

	send(t, e, 1, "abc123")
	if len(sessions.authTokens) != 1 || sessions.authTokens[0] != "abc123" {
		t.Fatalf("authTokens = %v", sessions.authTokens)
	}
	if !strings.Contains(out.last(), msgTokenAccepted) {
		t.Fatalf("after auth = %q", out.last())
	}
}

func TestTokenRejectionMessages(t *testing.T) {
	cases := []struct {
		reason domain.AuthFailure
		want   string
	}{
		{domain.AuthNotFound, msgTokenNotFound},
		{domain.AuthExpired, msgTokenExpired},
		{domain.AuthAlreadyUsed, msgTokenUsed},
		{domain.AuthBlocked, msgTokenBlocked},
	}
	for _, tc := range cases {
		e, sessions, _, _, out := newTestEngine(t)
		sessions.validateErr = &domain.AuthenticationError{Reason: domain.AuthNotFound}
		sessions.authErr = &domain.AuthenticationError{Reason: tc.reason}
		send(t, e, 1, "badtoken")
		if out.last() != tc.want {
			t.Errorf("reason %s: got %q, want %q", tc.reason, out.last(), tc.want)
		}
	}
}

func TestExpiredSessionClearsConversation(t *testing.T) {
	e, sessions, coupons, _, out := newTestEngine(t)
	coupons.known = []string{"SuperPharm"}
	send(t, e, 1, "3")
	if !e.InProgress(1) {
		t.Fatal("expected conversation in progress")
	}

	sessions.validateErr = &domain.SessionExpiredError{ChatID: 1}
	send(t, e, 1, "anything")
	if e.InProgress(1) {
		t.Fatal("conversation should be cleared on expiry")
	}
	if out.last() != msgSessionExpired {
		t.Fatalf("got %q", out.last())
	}
}

func TestCreationHappyPath(t *testing.T) {
	e, _, coupons, _, out := newTestEngine(t)
	coupons.known = []string{"SuperPharm"}

	send(t, e, 1, "3")
	if out.last() != promptCompany {
		t.Fatalf("after menu choice: %q", out.last())
	}
	// Exact match on a known company skips disambiguation.
	send(t, e, 1, "superpharm",
		"SAVE20",  // code
		"50",      // cost
		"200",     // value
		"none",    // expiration
		"none",    // description
		"none",    // source
		"no",      // credit card
		"no",      // one-time
	)
	if !strings.Contains(out.last(), promptConfirm) {
		t.Fatalf("expected confirmation summary, got %q", out.last())
	}
	send(t, e, 1, "yes")

	if len(coupons.saved) != 1 {
		t.Fatalf("saved = %d coupons", len(coupons.saved))
	}
	c := coupons.saved[0]
	if c.Company != "SuperPharm" || c.Code != "SAVE20" || c.Cost != 50 || c.Value != 200 {
		t.Fatalf("saved coupon = %+v", c)
	}
	if c.UserID != 7 || c.Status != coupon.StatusActive {
		t.Fatalf("saved coupon = %+v", c)
	}
	if e.InProgress(1) {
		t.Fatal("conversation should end after save")
	}
}

func TestCreationNewCompanyTwoStrikes(t *testing.T) {
	e, _, coupons, _, out := newTestEngine(t)
	coupons.known = []string{"SuperPharm"}

	send(t, e, 1, "3", "Castro")
	if out.last() != msgCompanyUnknown {
		t.Fatalf("first miss: %q", out.last())
	}
	send(t, e, 1, "Castro")
	if out.last() != promptCode {
		t.Fatalf("second miss should accept the company: %q", out.last())
	}
}

func TestCreationSuggestionPick(t *testing.T) {
	e, _, coupons, _, out := newTestEngine(t)
	coupons.known = []string{"supermarket deluxe"}

	send(t, e, 1, "3", "supermarket delux")
	if !strings.Contains(out.last(), "Did you mean") {
		t.Fatalf("expected suggestions, got %q", out.last())
	}
	send(t, e, 1, "1", "CODE1", "0", "100", "none", "none", "none", "no", "no", "yes")
	if len(coupons.saved) != 1 || coupons.saved[0].Company != "supermarket deluxe" {
		t.Fatalf("saved = %+v", coupons.saved)
	}
}

func TestCreationEconomicsViolationReturnsToCost(t *testing.T) {
	e, _, _, _, out := newTestEngine(t)

	send(t, e, 1, "3", "Fox", "Fox", "C1", "50", "30")
	if out.last() != promptCost {
		t.Fatalf("expected cost re-prompt, got %q", out.last())
	}
	// Fixing the cost resumes the flow at the value step.
	send(t, e, 1, "10")
	if out.last() != promptValue {
		t.Fatalf("after new cost: %q", out.last())
	}
}

func TestCancellationMidFlow(t *testing.T) {
	e, _, coupons, _, out := newTestEngine(t)
	coupons.known = []string{"SuperPharm"}

	send(t, e, 1, "3", "superpharm", "CODE", "cancel")
	if e.InProgress(1) {
		t.Fatal("cancel should clear the conversation")
	}
	if !strings.Contains(out.last(), msgCancelled) {
		t.Fatalf("got %q", out.last())
	}
	if len(coupons.saved) != 0 {
		t.Fatal("nothing should be saved")
	}
}

func TestInvalidDateMessagesAreDistinct(t *testing.T) {
	e, _, _, _, out := newTestEngine(t)
	send(t, e, 1, "3", "Zara", "Zara", "C", "0", "100")

	send(t, e, 1, "soon")
	if !strings.Contains(out.last(), "DD/MM/YYYY") {
		t.Fatalf("format error: %q", out.last())
	}
	send(t, e, 1, "05/13/2026")
	if !strings.Contains(strings.ToLower(out.last()), "month") {
		t.Fatalf("month error: %q", out.last())
	}
	send(t, e, 1, "31/02/2026")
	if !strings.Contains(strings.ToLower(out.last()), "day") {
		t.Fatalf("day error: %q", out.last())
	}
	send(t, e, 1, "28/02/2026")
	if out.last() != promptDescription {
		t.Fatalf("valid date should advance: %q", out.last())
	}
}

func TestUsageFull(t *testing.T) {
	e, _, coupons, _, out := newTestEngine(t)
	coupons.active = []coupon.Coupon{
		{ID: 11, Company: "Fox", Code: "F1", Value: 100, Status: coupon.StatusActive},
	}

	send(t, e, 1, "4", "1", "1", "yes")
	if len(coupons.usages) != 1 || coupons.usages[0] != 100 {
		t.Fatalf("usages = %v", coupons.usages)
	}
	if !strings.Contains(out.last(), "fully used") {
		t.Fatalf("got %q", out.last())
	}
}

func TestUsagePartialRejectsExcess(t *testing.T) {
	e, _, coupons, _, out := newTestEngine(t)
	coupons.active = []coupon.Coupon{
		{ID: 11, Company: "Fox", Code: "F1", Value: 100, UsedValue: 60, Status: coupon.StatusActive},
	}

	send(t, e, 1, "4", "1", "2", "55")
	if !strings.Contains(out.last(), "40") {
		t.Fatalf("excess amount should mention the remaining 40: %q", out.last())
	}
	send(t, e, 1, "40", "yes")
	if len(coupons.usages) != 1 || coupons.usages[0] != 40 {
		t.Fatalf("usages = %v", coupons.usages)
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	e, _, coupons, _, _ := newTestEngine(t)
	coupons.active = []coupon.Coupon{
		{ID: 11, Company: "Fox", Code: "F1", Value: 100, Status: coupon.StatusActive},
	}

	send(t, e, 1, "5", "1", "no")
	if len(coupons.deleted) != 0 {
		t.Fatalf("deleted = %v, want none", coupons.deleted)
	}
	if e.InProgress(1) {
		t.Fatal("declined delete should end the conversation")
	}

	send(t, e, 1, "5", "1", "yes")
	if len(coupons.deleted) != 1 || coupons.deleted[0] != 11 {
		t.Fatalf("deleted = %v", coupons.deleted)
	}
}

func TestAIFlow(t *testing.T) {
	e, _, coupons, extract, out := newTestEngine(t)
	coupons.known = []string{"SuperPharm"}
	extract.result = &ai.Extraction{Company: "superpharm", Code: "AI1", Cost: 0, Value: 80}

	send(t, e, 1, "6")
	if out.last() != promptAIText {
		t.Fatalf("got %q", out.last())
	}
	send(t, e, 1, "short")
	if len(extract.texts) != 0 {
		t.Fatal("short text should not reach the extractor")
	}
	send(t, e, 1, "got a superpharm coupon AI1 worth 80 shekels", "yes")
	if len(coupons.saved) != 1 {
		t.Fatalf("saved = %d", len(coupons.saved))
	}
	if coupons.saved[0].Company != "SuperPharm" {
		t.Fatalf("company should snap to the known spelling, got %q", coupons.saved[0].Company)
	}
}

func TestAITextBoundsCountCharacters(t *testing.T) {
	e, _, _, extract, out := newTestEngine(t)

	send(t, e, 1, "6")
	// Seven Hebrew letters are fourteen bytes; the minimum of ten
	// characters must still reject them.
	send(t, e, 1, "קופונים")
	if len(extract.texts) != 0 {
		t.Fatal("short non-ASCII text should not reach the extractor")
	}
	if !strings.Contains(out.last(), "10") {
		t.Fatalf("got %q", out.last())
	}
}

func TestAIExtractorFailureAborts(t *testing.T) {
	e, _, _, extract, out := newTestEngine(t)
	extract.err = &domain.ExternalServiceError{Service: "ai.extract"}

	send(t, e, 1, "6")
	err := e.HandleMessage(context.Background(), 1, "tester", "a long enough coupon description here")
	if err == nil {
		t.Fatal("expected the extractor error to surface")
	}
	if e.InProgress(1) {
		t.Fatal("extractor failure should abort to idle")
	}
	if !strings.Contains(out.sent[len(out.sent)-1], msgAIFailed) {
		t.Fatalf("got %q", out.last())
	}
}

func TestAIUnavailable(t *testing.T) {
	sessions := &fakeSessions{sess: &session.Session{UserID: 7}}
	out := &recorder{}
	e := NewEngine(Config{AIMinChars: 10}, sessions, &fakeCoupons{}, nil, out)

	send(t, e, 1, "6")
	if out.last() != msgAIUnavailable {
		t.Fatalf("got %q", out.last())
	}
	if e.InProgress(1) {
		t.Fatal("no conversation should start")
	}
}

func TestEditFieldAfterDecline(t *testing.T) {
	e, _, coupons, _, out := newTestEngine(t)
	coupons.known = []string{"Fox"}

	send(t, e, 1, "3", "fox", "C1", "0", "100", "none", "none", "none", "no", "no")
	send(t, e, 1, "no")
	if out.last() != promptEditField {
		t.Fatalf("got %q", out.last())
	}
	send(t, e, 1, "value", "250", "yes")
	if len(coupons.saved) != 1 || coupons.saved[0].Value != 250 {
		t.Fatalf("saved = %+v", coupons.saved)
	}
}

func TestBrowseByCompany(t *testing.T) {
	e, _, coupons, _, out := newTestEngine(t)
	coupons.active = []coupon.Coupon{
		{ID: 1, Company: "Fox", Code: "F1", Value: 100, Status: coupon.StatusActive},
		{ID: 2, Company: "Zara", Code: "Z1", Value: 50, Status: coupon.StatusActive},
	}

	send(t, e, 1, "2", "2")
	if !strings.Contains(out.last(), "Z1") || strings.Contains(out.last(), "F1") {
		t.Fatalf("got %q", out.last())
	}
	if e.InProgress(1) {
		t.Fatal("browse should end after listing")
	}
}

func TestDisconnect(t *testing.T) {
	e, sessions, _, _, out := newTestEngine(t)
	send(t, e, 1, "7")
	if sessions.disconnects != 1 {
		t.Fatalf("disconnects = %d", sessions.disconnects)
	}
	if out.last() != msgDisconnected {
		t.Fatalf("got %q", out.last())
	}
}
