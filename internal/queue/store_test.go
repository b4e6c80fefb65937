package queue

import (
	"context"
	"testing"
	"time"

	"subweave/internal/testsupport"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := Open(&cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSubmitAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	payload := Payload{
		SubtitleContent: "1\n00:00:01,000 --> 00:00:02,000\nHello\n",
		Tone:            "casual",
		ThinkingMode:    true,
		Glossary: []GlossaryEntry{
			{Term: "Hollow", Translation: "호로"},
		},
	}
	job, err := store.Submit(ctx, payload)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected generated job ID")
	}
	if job.Status != StatusQueued {
		t.Fatalf("status = %s, want %s", job.Status, StatusQueued)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched == nil {
		t.Fatal("expected job, got nil")
	}
	if fetched.Payload.Tone != "casual" || !fetched.Payload.ThinkingMode {
		t.Fatalf("payload not preserved: %+v", fetched.Payload)
	}
	if len(fetched.Payload.Glossary) != 1 || fetched.Payload.Glossary[0].Term != "Hollow" {
		t.Fatalf("glossary not preserved: %+v", fetched.Payload.Glossary)
	}
}

func TestSubmitRejectsEmptyContent(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Submit(context.Background(), Payload{SubtitleContent: "   "}); err == nil {
		t.Fatal("expected error for empty subtitle content")
	}
}

func TestGetMissingJob(t *testing.T) {
	store := newTestStore(t)
	job, err := store.GetByID(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil job, got %+v", job)
	}
}

func TestClaimOldestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Submit(ctx, Payload{SubtitleContent: "first"})
	if err != nil {
		t.Fatalf("submit first: %v", err)
	}
	if _, err := store.Submit(ctx, Payload{SubtitleContent: "second"}); err != nil {
		t.Fatalf("submit second: %v", err)
	}

	claimed, err := store.Claim(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected a claimable job")
	}
	if claimed.ID != first.ID {
		t.Fatalf("claimed %s, want oldest %s", claimed.ID, first.ID)
	}
	if claimed.Status != StatusActive {
		t.Fatalf("status = %s, want %s", claimed.Status, StatusActive)
	}
}

func TestClaimDoesNotReturnActiveJob(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Submit(ctx, Payload{SubtitleContent: "only"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job, err := store.Claim(ctx); err != nil || job == nil {
		t.Fatalf("first claim failed: job=%v err=%v", job, err)
	}

	again, err := store.Claim(ctx)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if again != nil {
		t.Fatalf("claimed already-active job %s", again.ID)
	}
}

func TestClaimRespectsRetryDelay(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.Submit(ctx, Payload{SubtitleContent: "delayed"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	claimed, err := store.Claim(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("initial claim: job=%v err=%v", claimed, err)
	}

	if err := store.Requeue(ctx, job.ID, 1, "model timeout", time.Hour); err != nil {
		t.Fatalf("requeue: %v", err)
	}

	if early, err := store.Claim(ctx); err != nil {
		t.Fatalf("claim during delay: %v", err)
	} else if early != nil {
		t.Fatalf("claimed job before retry delay elapsed")
	}

	if err := store.Requeue(ctx, job.ID, 1, "model timeout", -time.Second); err != nil {
		t.Fatalf("requeue eligible: %v", err)
	}
	ready, err := store.Claim(ctx)
	if err != nil {
		t.Fatalf("claim after delay: %v", err)
	}
	if ready == nil {
		t.Fatal("expected job eligible after delay")
	}
	if ready.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", ready.Attempts)
	}
	if ready.LastError != "model timeout" {
		t.Fatalf("last error = %q", ready.LastError)
	}
}

func TestTerminalTransitions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	done, err := store.Submit(ctx, Payload{SubtitleContent: "done"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := store.MarkCompleted(ctx, done.ID, "1\n00:00:01,000 --> 00:00:02,000\n안녕\n"); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	fetched, err := store.GetByID(ctx, done.ID)
	if err != nil {
		t.Fatalf("get completed: %v", err)
	}
	if fetched.Status != StatusCompleted {
		t.Fatalf("status = %s, want %s", fetched.Status, StatusCompleted)
	}
	if fetched.Result == "" {
		t.Fatal("expected stored result")
	}
	if !fetched.IsTerminal() {
		t.Fatal("completed job should be terminal")
	}

	broken, err := store.Submit(ctx, Payload{SubtitleContent: "broken"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := store.MarkFailed(ctx, broken.ID, 2, "AI gateway unreachable"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	failed, err := store.GetByID(ctx, broken.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if failed.Status != StatusFailed || failed.Attempts != 2 {
		t.Fatalf("failed job state: status=%s attempts=%d", failed.Status, failed.Attempts)
	}
	if failed.LastError != "AI gateway unreachable" {
		t.Fatalf("last error = %q", failed.LastError)
	}
}

func TestResetActiveRecoversInFlightJobs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Submit(ctx, Payload{SubtitleContent: "in flight"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	claimed, err := store.Claim(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim: job=%v err=%v", claimed, err)
	}

	recovered, err := store.ResetActive(ctx)
	if err != nil {
		t.Fatalf("reset active: %v", err)
	}
	if recovered != 1 {
		t.Fatalf("recovered = %d, want 1", recovered)
	}

	again, err := store.Claim(ctx)
	if err != nil {
		t.Fatalf("claim after reset: %v", err)
	}
	if again == nil || again.ID != claimed.ID {
		t.Fatalf("expected recovered job %s, got %v", claimed.ID, again)
	}
}

func TestRetryFailedAndClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.Submit(ctx, Payload{SubtitleContent: "flaky"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := store.MarkFailed(ctx, job.ID, 2, "boom"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	retried, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if retried != 1 {
		t.Fatalf("retried = %d, want 1", retried)
	}
	fresh, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fresh.Status != StatusQueued || fresh.Attempts != 0 {
		t.Fatalf("retried job state: status=%s attempts=%d", fresh.Status, fresh.Attempts)
	}

	removed, err := store.Clear(ctx, StatusQueued)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 0 {
		t.Fatalf("expected empty queue, stats=%v", stats)
	}
}

func TestHealthCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.Submit(ctx, Payload{SubtitleContent: "job"}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	claimed, err := store.Claim(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v", err)
	}
	if err := store.MarkCompleted(ctx, claimed.ID, "result"); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Total != 3 || health.Queued != 2 || health.Completed != 1 {
		t.Fatalf("health = %+v", health)
	}
}
