package fuzzy

import "testing"

func TestScoreIdentityIgnoresCase(t *testing.T) {
	if got := Score("McDonalds", "mcdonalds"); got != 100 {
		t.Fatalf("Score = %d, want 100", got)
	}
	if got := Score("  Shufersal ", "shufersal"); got != 100 {
		t.Fatalf("Score with surrounding spaces = %d, want 100", got)
	}
}

func TestScoreNearMissStaysBelowExact(t *testing.T) {
	got := Score("supermarket delux", "supermarket deluxe")
	if got >= 100 {
		t.Fatalf("near miss scored %d, must stay below 100", got)
	}
	if got < SuggestThreshold {
		t.Fatalf("one-letter miss scored %d, expected at least %d", got, SuggestThreshold)
	}
}

func TestScoreUnrelatedStrings(t *testing.T) {
	if got := Score("pizza hut", "bank leumi"); got >= SuggestThreshold {
		t.Fatalf("unrelated strings scored %d", got)
	}
}

func TestRankFiltersAndOrders(t *testing.T) {
	candidates := []string{"Castro", "Fox", "Castr0 Home", "castro"}
	matches := Rank("castro", candidates, SuggestThreshold)
	if len(matches) < 2 {
		t.Fatalf("expected at least 2 matches, got %d", len(matches))
	}
	if matches[0].Score != 100 {
		t.Fatalf("best match score = %d, want 100", matches[0].Score)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Fatalf("matches not sorted descending at index %d", i)
		}
	}
	for _, m := range matches {
		if m.Score < SuggestThreshold {
			t.Fatalf("match %q below threshold: %d", m.Candidate, m.Score)
		}
	}
}

func TestRankEmptyWhenNothingClose(t *testing.T) {
	if matches := Rank("zzzz", []string{"Castro", "Fox"}, SuggestThreshold); len(matches) != 0 {
		t.Fatalf("expected no matches, got %v", matches)
	}
}

func TestBest(t *testing.T) {
	best := Best("fox", []string{"Castro", "Fox", "Fix"})
	if best.Candidate != "Fox" {
		t.Fatalf("Best candidate = %q, want Fox", best.Candidate)
	}
	if best.Score != 100 {
		t.Fatalf("Best score = %d, want 100", best.Score)
	}
	if empty := Best("fox", nil); empty.Candidate != "" || empty.Score != 0 {
		t.Fatalf("Best on empty candidates = %+v", empty)
	}
}
