package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestWrapTagsMarkerAndKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(ErrAI, "ai", "generate text", "timed out", cause)

	if !errors.Is(err, ErrAI) {
		t.Fatalf("expected ErrAI, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause in chain, got %v", err)
	}
	want := "ai call error: ai: generate text: timed out: connection reset"
	if err.Error() != want {
		t.Fatalf("unexpected message %q, want %q", err.Error(), want)
	}
}

func TestWrapNilMarkerDefaultsTransient(t *testing.T) {
	err := Wrap(nil, "queue", "claim", "", nil)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestUserMessageDropsWrappedCause(t *testing.T) {
	cause := errors.New(`http 429: {"error":{"code":"insufficient_quota","message":"key sk-test-abc exceeded"}}`)
	err := Wrap(ErrAI, "ai", "generate text", "", cause)

	got := UserMessage(err)
	if got != "ai call error: ai: generate text" {
		t.Fatalf("unexpected message %q", got)
	}
	for _, leak := range []string{"insufficient_quota", "sk-test", "429"} {
		if strings.Contains(got, leak) {
			t.Fatalf("provider detail %q leaked into %q", leak, got)
		}
	}
}

func TestUserMessageFindsServiceErrorThroughWrapping(t *testing.T) {
	inner := Wrap(ErrAI, "ai", "generate text", "", errors.New("http 500: provider stack trace"))
	outer := fmt.Errorf("translate line 3: %w", inner)

	got := UserMessage(outer)
	if got != "ai call error: ai: generate text" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestUserMessagePlainErrorKeepsFirstLine(t *testing.T) {
	err := errors.New("first line\nsecond line of detail")
	if got := UserMessage(err); got != "first line" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestUserMessageTruncatesLongPlainError(t *testing.T) {
	err := errors.New(strings.Repeat("x", 400))
	got := UserMessage(err)
	if len(got) != 303 || !strings.HasSuffix(got, "...") {
		t.Fatalf("expected 300 chars plus ellipsis, got %d chars", len(got))
	}
}
