package calendar

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDayWindowNewYork(t *testing.T) {
	r := NewResolver("America/New_York", zap.NewNop())

	start, end := r.DayWindow(Date(2024, time.January, 15), "America/New_York")

	wantStart := time.Date(2024, time.January, 15, 5, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Fatalf("expected start %s, got %s", wantStart, start.UTC())
	}
	wantEnd := time.Date(2024, time.January, 16, 4, 59, 59, 999999999, time.UTC)
	if !end.Equal(wantEnd) {
		t.Fatalf("expected end %s, got %s", wantEnd, end.UTC())
	}
	if start.Location().String() != "America/New_York" {
		t.Fatalf("expected zone-aware bounds, got %s", start.Location())
	}
}

func TestDayWindowAcrossDSTChange(t *testing.T) {
	r := NewResolver("", zap.NewNop())

	start, end := r.DayWindow(Date(2024, time.March, 10), "America/New_York")
	if got := end.Sub(start).Round(time.Hour); got != 23*time.Hour {
		t.Fatalf("expected a 23h window on spring-forward day, got %s", got)
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := NewResolver("America/New_York", zap.New(core))

	loc := r.Location("Invalid/Zone")
	if loc != time.UTC {
		t.Fatalf("expected UTC fallback, got %s", loc)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected one warning, got %d", logs.Len())
	}

	start, _ := r.DayWindow(Date(2024, time.January, 15), "Invalid/Zone")
	if !start.Equal(time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected UTC window, got %s", start)
	}
}

func TestLocationUsesDefaultForEmptyName(t *testing.T) {
	r := NewResolver("Asia/Tokyo", nil)
	if got := r.Location("  ").String(); got != "Asia/Tokyo" {
		t.Fatalf("expected default zone, got %s", got)
	}
	if NewResolver("", nil).Location("") != time.UTC {
		t.Fatal("expected UTC when no default is configured")
	}
}

func TestTodayUsesLocalDate(t *testing.T) {
	r := NewResolver("UTC", nil)
	// 03:30 UTC on the 16th is still the evening of the 15th in New York.
	now := time.Date(2024, time.January, 16, 3, 30, 0, 0, time.UTC)

	if got := r.Today("America/New_York", now); !got.Equal(Date(2024, time.January, 15)) {
		t.Fatalf("expected 2024-01-15, got %s", Key(got))
	}
	if got := r.Today("UTC", now); !got.Equal(Date(2024, time.January, 16)) {
		t.Fatalf("expected 2024-01-16, got %s", Key(got))
	}
}

func TestIsWeekday(t *testing.T) {
	tests := []struct {
		date string
		want bool
	}{
		{date: "2024-01-15", want: true},  // Monday
		{date: "2024-01-19", want: true},  // Friday
		{date: "2024-01-13", want: false}, // Saturday
		{date: "2024-01-14", want: false}, // Sunday
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			date, err := Parse(tt.date)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got := IsWeekday(date); got != tt.want {
				t.Fatalf("IsWeekday(%s) = %v, want %v", tt.date, got, tt.want)
			}
		})
	}
}

func TestPreviousWeekday(t *testing.T) {
	monday := Date(2024, time.January, 15)
	if got := PreviousWeekday(monday); !got.Equal(Date(2024, time.January, 12)) {
		t.Fatalf("expected previous Friday, got %s", Key(got))
	}
	wednesday := Date(2024, time.January, 17)
	if got := PreviousWeekday(wednesday); !got.Equal(Date(2024, time.January, 16)) {
		t.Fatalf("expected Tuesday, got %s", Key(got))
	}
}

func TestFormatting(t *testing.T) {
	date := Date(2024, time.January, 15)
	if got := LongDate(date); got != "Monday, January 15, 2024" {
		t.Fatalf("unexpected long date %q", got)
	}
	if got := Key(date); got != "2024-01-15" {
		t.Fatalf("unexpected key %q", got)
	}
	if _, err := Parse("15/01/2024"); err == nil {
		t.Fatal("expected parse error for non ISO date")
	}
}

func TestValidateZone(t *testing.T) {
	if err := ValidateZone("Europe/Paris"); err != nil {
		t.Fatalf("expected valid zone, got %v", err)
	}
	if err := ValidateZone("Nowhere/Special"); err == nil {
		t.Fatal("expected error for unknown zone")
	}
	if err := ValidateZone(""); err == nil {
		t.Fatal("expected error for empty zone")
	}
}
