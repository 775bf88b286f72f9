package domain_test

import (
	"testing"

	"github.com/ikanisa/dar-ingest/internal/domain"
)

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		name  string
		score int
		want  string
	}{
		{"zero", 0, domain.RiskLevelLow},
		{"just below medium", 39, domain.RiskLevelLow},
		{"medium boundary", 40, domain.RiskLevelMedium},
		{"just below high", 69, domain.RiskLevelMedium},
		{"high boundary", 70, domain.RiskLevelHigh},
		{"max rule set", 120, domain.RiskLevelHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := domain.LevelForScore(tt.score); got != tt.want {
				t.Errorf("LevelForScore(%d) = %q, want %q", tt.score, got, tt.want)
			}
		})
	}
}

func TestStatusForLevel(t *testing.T) {
	tests := []struct {
		level string
		want  string
	}{
		{domain.RiskLevelHigh, domain.RiskStatusHold},
		{domain.RiskLevelMedium, domain.RiskStatusReviewRequired},
		{domain.RiskLevelLow, domain.RiskStatusOK},
	}

	for _, tt := range tests {
		if got := domain.StatusForLevel(tt.level); got != tt.want {
			t.Errorf("StatusForLevel(%q) = %q, want %q", tt.level, got, tt.want)
		}
	}
}

// High scores must always end up held: score >= 70 implies level high
// implies status hold.
func TestHighScoreAlwaysHolds(t *testing.T) {
	for score := 70; score <= 120; score += 5 {
		level := domain.LevelForScore(score)
		if level != domain.RiskLevelHigh {
			t.Fatalf("score %d: level = %q, want high", score, level)
		}
		if status := domain.StatusForLevel(level); status != domain.RiskStatusHold {
			t.Fatalf("score %d: status = %q, want hold", score, status)
		}
	}
}
