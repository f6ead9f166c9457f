package matching

import (
	"strings"
	"testing"
	"time"

	"github.com/chaintax/chaintax/internal/models"
)

func heuristicMatch(sourceID, targetID, confidence string) models.PotentialMatch {
	return models.PotentialMatch{
		Source:          outCandidate(sourceID, "1.0"),
		Target:          inCandidate(targetID, "0.999", matchBase.Add(5*time.Minute)),
		Criteria:        models.MatchCriteria{AssetMatch: true, AmountSimilarity: dec("0.999"), TimingValid: true, TimingHours: 0.083},
		ConfidenceScore: dec(confidence),
		LinkType:        models.LinkTypeExchangeToBlockchain,
	}
}

func hashMatch(sourceID, targetID, confidence string) models.PotentialMatch {
	m := heuristicMatch(sourceID, targetID, confidence)
	yes := true
	m.Criteria.HashMatch = &yes
	return m
}

func TestDeduplicateAndConfirm_TargetUsedOnce(t *testing.T) {
	matches := []models.PotentialMatch{
		heuristicMatch("s1", "t1", "0.98"),
		heuristicMatch("s2", "t1", "0.96"),
	}

	res := DeduplicateAndConfirm(matches, DefaultConfig())
	accepted := append(res.Confirmed, res.Suggested...)
	if len(accepted) != 1 {
		t.Fatalf("got %d accepted, want 1", len(accepted))
	}
	if accepted[0].Source.TransactionID != "s1" {
		t.Errorf("winner source = %s, want s1 (higher confidence)", accepted[0].Source.TransactionID)
	}
}

func TestDeduplicateAndConfirm_SourceOneNonHashMatch(t *testing.T) {
	matches := []models.PotentialMatch{
		heuristicMatch("s1", "t1", "0.98"),
		heuristicMatch("s1", "t2", "0.97"),
	}

	res := DeduplicateAndConfirm(matches, DefaultConfig())
	accepted := append(res.Confirmed, res.Suggested...)
	if len(accepted) != 1 {
		t.Fatalf("got %d accepted, want 1", len(accepted))
	}
	if accepted[0].Target.TransactionID != "t1" {
		t.Errorf("winner target = %s, want t1", accepted[0].Target.TransactionID)
	}
}

func TestDeduplicateAndConfirm_SourceManyHashMatches(t *testing.T) {
	matches := []models.PotentialMatch{
		hashMatch("s1", "t1", "1"),
		hashMatch("s1", "t2", "1"),
		heuristicMatch("s1", "t3", "0.9"),
	}

	res := DeduplicateAndConfirm(matches, DefaultConfig())
	if len(res.Confirmed) != 2 {
		t.Fatalf("got %d confirmed, want 2 hash matches", len(res.Confirmed))
	}
	// once the source holds hash matches, the competing heuristic match loses
	if len(res.Suggested) != 0 {
		t.Errorf("got %d suggested, want 0", len(res.Suggested))
	}
}

func TestDeduplicateAndConfirm_HashWinsTies(t *testing.T) {
	matches := []models.PotentialMatch{
		heuristicMatch("s1", "t1", "0.96"),
		hashMatch("s2", "t1", "0.96"),
	}

	res := DeduplicateAndConfirm(matches, DefaultConfig())
	accepted := append(res.Confirmed, res.Suggested...)
	if len(accepted) != 1 {
		t.Fatalf("got %d accepted, want 1", len(accepted))
	}
	if !accepted[0].Criteria.IsHashMatch() {
		t.Error("hash match should win an equal-confidence tie")
	}
}

func TestDeduplicateAndConfirm_ConfidenceSplit(t *testing.T) {
	matches := []models.PotentialMatch{
		heuristicMatch("s1", "t1", "0.98"),
		heuristicMatch("s2", "t2", "0.8"),
	}

	res := DeduplicateAndConfirm(matches, DefaultConfig())
	if len(res.Confirmed) != 1 || res.Confirmed[0].Source.TransactionID != "s1" {
		t.Errorf("confirmed = %v, want s1 only", res.Confirmed)
	}
	if len(res.Suggested) != 1 || res.Suggested[0].Source.TransactionID != "s2" {
		t.Errorf("suggested = %v, want s2 only", res.Suggested)
	}
}

func TestValidateLinkAmountsForMatch(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		target    string
		hashMatch bool
		wantErr   string
	}{
		{"valid", "1", "0.999", false, ""},
		{"zero source", "0", "1", false, "must be positive"},
		{"negative target", "1", "-0.5", false, "must be positive"},
		{"oversized target", "1.0", "1.15", false, "exceeds source amount"},
		{"rounding excess ok", "1", "1.0005", false, ""},
		{"one percent excess needs hash", "1", "1.009", false, "exceeds source amount"},
		{"one percent excess with hash", "1", "1.009", true, ""},
		{"hash excess over one percent", "1", "1.02", true, "exceeds source amount"},
		{"variance beyond ten percent", "1", "0.85", false, "exceeds 10%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLinkAmountsForMatch(dec(tt.source), dec(tt.target), tt.hashMatch)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestCreateTransactionLink_Metadata(t *testing.T) {
	match := heuristicMatch("s1", "t1", "0.98")
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	link, err := CreateTransactionLink(match, models.LinkStatusConfirmed, now)
	if err != nil {
		t.Fatalf("CreateTransactionLink: %v", err)
	}
	if link.ID == "" {
		t.Error("link ID not assigned")
	}
	if link.Status != models.LinkStatusConfirmed {
		t.Errorf("status = %s, want confirmed", link.Status)
	}
	if !link.Metadata.Variance.Equal(dec("0.001")) {
		t.Errorf("variance = %s, want 0.001", link.Metadata.Variance)
	}
	if !link.Metadata.ImpliedFee.Equal(dec("0.001")) {
		t.Errorf("impliedFee = %s, want 0.001", link.Metadata.ImpliedFee)
	}
	if !link.Metadata.VariancePct.Equal(dec("0.1")) {
		t.Errorf("variancePct = %s, want 0.1", link.Metadata.VariancePct)
	}
}
