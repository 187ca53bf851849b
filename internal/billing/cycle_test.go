package billing

import (
	"testing"
	"time"

	"autoseo/internal/models"
)

func TestNextBoundaryMonthlyClampsLeapFebruary(t *testing.T) {
	start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	got := NextBoundary(start, models.CycleMonthly)
	want := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNextBoundaryMonthlyClampsShortFebruary(t *testing.T) {
	start := time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)
	got := NextBoundary(start, models.CycleMonthly)
	want := time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNextBoundaryMonthlyMidMonth(t *testing.T) {
	start := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	got := NextBoundary(start, models.CycleMonthly)
	want := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNextBoundaryMonthlyDecemberWraps(t *testing.T) {
	start := time.Date(2024, 12, 15, 12, 30, 0, 0, time.UTC)
	got := NextBoundary(start, models.CycleMonthly)
	want := time.Date(2025, 1, 15, 12, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNextBoundaryYearly(t *testing.T) {
	start := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	got := NextBoundary(start, models.CycleYearly)
	want := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNextBoundaryYearlyClampsLeapDay(t *testing.T) {
	start := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	got := NextBoundary(start, models.CycleYearly)
	want := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNextBoundaryIsAlwaysAfterStart(t *testing.T) {
	for month := time.January; month <= time.December; month++ {
		for _, day := range []int{1, 15, 28, 29, 30, 31} {
			if day > daysInMonth(2023, month) {
				continue
			}
			start := time.Date(2023, month, day, 0, 0, 0, 0, time.UTC)
			for _, kind := range []string{models.CycleMonthly, models.CycleYearly} {
				if got := NextBoundary(start, kind); !got.After(start) {
					t.Fatalf("boundary %v not after start %v (%s)", got, start, kind)
				}
			}
		}
	}
}

func TestCycleTag(t *testing.T) {
	tag := CycleTag(time.Date(2024, 2, 3, 23, 59, 0, 0, time.UTC))
	if tag != "2024-02" {
		t.Fatalf("expected 2024-02, got %s", tag)
	}
}

func TestDaysLeftNeverNegative(t *testing.T) {
	now := time.Date(2024, 2, 11, 0, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -5)
	if got := daysLeft(now, past); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	future := now.AddDate(0, 0, 7)
	if got := daysLeft(now, future); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}
