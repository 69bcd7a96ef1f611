package main

import (
	"testing"
	"time"

	"github.com/commitlog/dailyagent/internal/calendar"
)

func TestVerifyDate(t *testing.T) {
	monday := calendar.Date(2024, time.January, 15)
	saturday := calendar.Date(2024, time.January, 13)

	tests := []struct {
		name     string
		rawDate  string
		previous bool
		force    bool
		today    time.Time
		want     time.Time
		skip     bool
		wantErr  bool
	}{
		{name: "weekday uses each user's today", today: monday},
		{name: "weekend is skipped", today: saturday, skip: true},
		{name: "weekend with force", today: saturday, force: true},
		{name: "explicit date", rawDate: "2024-01-13", today: monday, want: saturday},
		{name: "previous from monday is friday", previous: true, today: monday, want: calendar.Date(2024, time.January, 12)},
		{name: "previous from saturday is friday", previous: true, today: saturday, want: calendar.Date(2024, time.January, 12)},
		{name: "bad date", rawDate: "01/13/2024", today: monday, wantErr: true},
		{name: "date and previous", rawDate: "2024-01-13", previous: true, today: monday, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, skip, err := verifyDate(tt.rawDate, tt.previous, tt.force, tt.today)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if skip != tt.skip {
				t.Fatalf("expected skip=%v, got %v", tt.skip, skip)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
