package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/commitlog/dailyagent/internal/calendar"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestReplyService(t *testing.T) (*ReplyService, *UserService, *DailyLogService) {
	t.Helper()
	gdb := setupServiceDB(t)
	users := newTestUserService(t, gdb)
	logs := NewDailyLogService(gdb)
	svc := NewReplyService(users, logs, calendar.NewResolver("America/New_York", zap.NewNop()), zap.NewNop())
	return svc, users, logs
}

func TestIngestUsesLocalArrivalDate(t *testing.T) {
	svc, users, logs := newTestReplyService(t)
	user := seedUser(t, users, "dev@example.com", "dev", "America/New_York")
	// 01:30 UTC on the 16th is 20:30 on the 15th in New York.
	svc.SetClock(fixedClock(time.Date(2024, time.January, 16, 1, 30, 0, 0, time.UTC)))

	result, err := svc.Ingest(context.Background(), ReplyInput{
		From: "Dev Person <DEV@example.com>",
		Text: "  Shipped the billing export.\n",
	})
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if calendar.Key(result.LogDate) != "2024-01-15" {
		t.Fatalf("expected local date 2024-01-15, got %s", calendar.Key(result.LogDate))
	}
	if result.UserEmail != "dev@example.com" || result.ResponseLength != len("Shipped the billing export.") {
		t.Fatalf("unexpected result %+v", result)
	}

	record, err := logs.GetByDate(context.Background(), user.ID, calendar.Date(2024, time.January, 15))
	if err != nil {
		t.Fatalf("GetByDate: %v", err)
	}
	if record.Response() != "Shipped the billing export." || record.UserRespondedAt == nil {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestIngestLateReplyTargetsNextDay(t *testing.T) {
	svc, users, _ := newTestReplyService(t)
	seedUser(t, users, "dev@example.com", "dev", "UTC")
	// Check-in went out on the 15th; the reply arrives after midnight.
	svc.SetClock(fixedClock(time.Date(2024, time.January, 16, 0, 5, 0, 0, time.UTC)))

	result, err := svc.Ingest(context.Background(), ReplyInput{From: "dev@example.com", Text: "late one"})
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if calendar.Key(result.LogDate) != "2024-01-16" {
		t.Fatalf("expected arrival date 2024-01-16, got %s", calendar.Key(result.LogDate))
	}
}

func TestIngestSecondReplyOverwrites(t *testing.T) {
	svc, users, logs := newTestReplyService(t)
	user := seedUser(t, users, "dev@example.com", "dev", "UTC")
	svc.SetClock(fixedClock(time.Date(2024, time.January, 15, 18, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	for _, text := range []string{"first", "second"} {
		if _, err := svc.Ingest(ctx, ReplyInput{From: "dev@example.com", Text: text}); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}
	record, _ := logs.GetByDate(ctx, user.ID, calendar.Date(2024, time.January, 15))
	if record.Response() != "second" {
		t.Fatalf("expected latest reply, got %q", record.Response())
	}
}

func TestIngestRejectsBadInput(t *testing.T) {
	svc, users, _ := newTestReplyService(t)
	seedUser(t, users, "dev@example.com", "dev", "UTC")
	gone := seedUser(t, users, "gone@example.com", "gone", "UTC")
	if err := users.Deactivate(context.Background(), gone.Email); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	tests := []struct {
		name  string
		input ReplyInput
		want  error
	}{
		{name: "unknown sender", input: ReplyInput{From: "stranger@example.com", Text: "hi"}, want: ErrUserNotFound},
		{name: "inactive sender", input: ReplyInput{From: "gone@example.com", Text: "hi"}, want: ErrUserNotFound},
		{name: "garbage sender", input: ReplyInput{From: "not an address", Text: "hi"}, want: ErrInvalidSender},
		{name: "empty body", input: ReplyInput{From: "dev@example.com", Text: "   ", HTML: "<p> </p>"}, want: ErrEmptyReply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Ingest(context.Background(), tt.input); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestExtractBody(t *testing.T) {
	svc, _, _ := newTestReplyService(t)

	tests := []struct {
		name string
		text string
		html string
		want string
	}{
		{name: "text wins", text: " plain ", html: "<p>rich</p>", want: "plain"},
		{name: "html fallback", html: "<div>Fixed <b>two</b> bugs</div><div>Reviewed &amp; merged</div>", want: "Fixed two bugs\nReviewed & merged"},
		{name: "line breaks", html: "line one<br>line two<br/><br/><br/><br/>line three", want: "line one\nline two\n\nline three"},
		{name: "script stripped", html: "<script>alert(1)</script><p>ok</p>", want: "ok"},
		{name: "nothing", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.ExtractBody(tt.text, tt.html); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestIngestLogsSubject(t *testing.T) {
	gdb := setupServiceDB(t)
	users := newTestUserService(t, gdb)
	core, logged := observer.New(zap.InfoLevel)
	svc := NewReplyService(users, NewDailyLogService(gdb), calendar.NewResolver("UTC", zap.NewNop()), zap.New(core))
	seedUser(t, users, "dev@example.com", "dev", "UTC")
	svc.SetClock(fixedClock(time.Date(2024, time.January, 15, 18, 0, 0, 0, time.UTC)))

	if _, err := svc.Ingest(context.Background(), ReplyInput{
		From:    "dev@example.com",
		Subject: " Re: Daily Check-in - Monday, January 15, 2024 ",
		Text:    "paired on the importer",
	}); err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}

	entries := logged.FilterMessage("reply recorded").All()
	if len(entries) != 1 {
		t.Fatalf("expected one reply log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["subject"]; got != "Re: Daily Check-in - Monday, January 15, 2024" {
		t.Fatalf("unexpected subject field %v", got)
	}
}
