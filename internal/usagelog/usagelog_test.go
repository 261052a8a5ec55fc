package usagelog_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cognee-core/engine/internal/domain/usage"
	"github.com/cognee-core/engine/internal/secrets"
	"github.com/cognee-core/engine/internal/usagelog"
)

type recordingSink struct {
	entries []usage.LogEntry
}

func (s *recordingSink) LogUsage(_ context.Context, _ string, entry usage.LogEntry, _ time.Duration) error {
	s.entries = append(s.entries, entry)
	return nil
}

func TestWrapCapturesSuccess(t *testing.T) {
	sink := &recordingSink{}
	result, err := usagelog.Wrap(context.Background(), sink, "u1", "do_thing", map[string]any{"x": 1}, time.Hour, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if result != "ok" {
		t.Fatalf("expected ok, got %q", result)
	}
	if len(sink.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(sink.entries))
	}
	e := sink.entries[0]
	if !e.Success || e.FunctionName != "do_thing" || e.UserID != "u1" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Result != "ok" {
		t.Fatalf("expected sanitized result ok, got %v", e.Result)
	}
}

func TestWrapCapturesFailureWithoutSwallowingError(t *testing.T) {
	sink := &recordingSink{}
	wantErr := errors.New("boom")
	_, err := usagelog.Wrap(context.Background(), sink, "u1", "do_thing", nil, time.Hour, func(ctx context.Context) (string, error) {
		return "", wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped error to propagate, got %v", err)
	}
	if sink.entries[0].Success {
		t.Fatal("expected Success=false on failure")
	}
	if sink.entries[0].Error != "boom" {
		t.Fatalf("expected error string boom, got %q", sink.entries[0].Error)
	}
}

type failingSink struct{}

func (failingSink) LogUsage(context.Context, string, usage.LogEntry, time.Duration) error {
	return errors.New("sink unavailable")
}

func TestWrapSinkFailureDoesNotAffectOutcome(t *testing.T) {
	result, err := usagelog.Wrap(context.Background(), failingSink{}, "u1", "do_thing", nil, time.Hour, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || result != 42 {
		t.Fatalf("expected (42, nil) despite sink failure, got (%v, %v)", result, err)
	}
}

func TestWrapExcludesUserParameter(t *testing.T) {
	sink := &recordingSink{}
	_, _ = usagelog.Wrap(context.Background(), sink, "u1", "fn", map[string]any{"user": "should-not-appear", "q": "hi"}, time.Hour, func(ctx context.Context) (string, error) {
		return "x", nil
	})
	params := sink.entries[0].Parameters
	if _, ok := params["user"]; ok {
		t.Fatal("expected user parameter to be excluded")
	}
	if params["q"] != "hi" {
		t.Fatalf("expected q=hi preserved, got %v", params)
	}
}

func TestSanitizeBytesAndCycles(t *testing.T) {
	if got := usagelog.Sanitize([]byte("secret")); got != "<cannot be serialized: Bytes>" {
		t.Fatalf("expected bytes placeholder, got %v", got)
	}

	m := map[string]any{}
	m["self"] = m
	got, ok := usagelog.Sanitize(m).(map[string]any)
	if !ok {
		t.Fatalf("expected map result, got %T", usagelog.Sanitize(m))
	}
	if got["self"] != "<circular reference>" {
		t.Fatalf("expected circular reference placeholder, got %v", got["self"])
	}
}

func TestSanitizeRedactsSecretsOnceVaultIsSet(t *testing.T) {
	v, err := secrets.NewVault(func() (map[string]string, error) {
		return map[string]string{"LLM_API_KEY": "sk-verysecretvalue"}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { usagelog.SetVault(nil) })
	usagelog.SetVault(v)

	got, ok := usagelog.Sanitize("request failed with key sk-verysecretvalue attached").(string)
	if !ok {
		t.Fatalf("expected string result, got %T", usagelog.Sanitize(""))
	}
	if strings.Contains(got, "sk-verysecretvalue") {
		t.Fatalf("expected secret value to be redacted, got %q", got)
	}
}
