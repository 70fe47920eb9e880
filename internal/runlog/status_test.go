package runlog_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/runlog"
)

// ── ParseStatus ────────────────────────────────────────────────────────────

func TestParseStatus_ValidValues(t *testing.T) {
	for _, s := range []string{"STARTED", "LOADING", "COMPLETED", "FAILED"} {
		got, err := runlog.ParseStatus(s)
		if err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseStatus_Invalid(t *testing.T) {
	for _, s := range []string{"", "started", "DONE", " LOADING"} {
		if _, err := runlog.ParseStatus(s); err == nil {
			t.Errorf("ParseStatus(%q) expected error, got nil", s)
		}
	}
}

// ── IsTransitionAllowed ────────────────────────────────────────────────────

func TestIsTransitionAllowed_Matrix(t *testing.T) {
	all := []runlog.Status{runlog.StatusStarted, runlog.StatusLoading, runlog.StatusCompleted, runlog.StatusFailed}
	allowed := map[[2]runlog.Status]bool{
		{runlog.StatusStarted, runlog.StatusLoading}:   true,
		{runlog.StatusStarted, runlog.StatusCompleted}: true,
		{runlog.StatusStarted, runlog.StatusFailed}:    true,
		{runlog.StatusLoading, runlog.StatusCompleted}: true,
		{runlog.StatusLoading, runlog.StatusFailed}:    true,
	}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]runlog.Status{from, to}]
			if got := runlog.IsTransitionAllowed(from, to); got != want {
				t.Errorf("IsTransitionAllowed(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if !runlog.IsTerminal(runlog.StatusCompleted) || !runlog.IsTerminal(runlog.StatusFailed) {
		t.Error("COMPLETED and FAILED must be terminal")
	}
	if runlog.IsTerminal(runlog.StatusStarted) || runlog.IsTerminal(runlog.StatusLoading) {
		t.Error("STARTED and LOADING must not be terminal")
	}
}

// ── Run ────────────────────────────────────────────────────────────────────

func TestRun_HappyPath(t *testing.T) {
	t0 := time.Date(2026, 10, 16, 11, 25, 0, 0, time.UTC)
	r := runlog.New("load-1", t0)

	if err := r.Transition(runlog.StatusLoading, t0); err != nil {
		t.Fatalf("STARTED → LOADING: %v", err)
	}
	if r.FinishedAt != nil {
		t.Error("FinishedAt set before terminal state")
	}
	done := t0.Add(time.Minute)
	if err := r.Transition(runlog.StatusCompleted, done); err != nil {
		t.Fatalf("LOADING → COMPLETED: %v", err)
	}
	if r.FinishedAt == nil || !r.FinishedAt.Equal(done) {
		t.Errorf("FinishedAt = %v, want %v", r.FinishedAt, done)
	}
}

func TestRun_TerminalRejectsFurtherMoves(t *testing.T) {
	now := time.Now()
	r := runlog.New("load-2", now)
	if err := r.Fail(errors.New("boom"), now); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if r.Error != "boom" {
		t.Errorf("Error = %q, want boom", r.Error)
	}

	err := r.Transition(runlog.StatusLoading, now)
	var te *runlog.TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("Transition after FAILED: got %v, want *TransitionError", err)
	}
	if te.From != runlog.StatusFailed || te.To != runlog.StatusLoading {
		t.Errorf("TransitionError = %+v", te)
	}
}

func TestRun_SameStatusIsNoop(t *testing.T) {
	r := runlog.New("load-3", time.Now())
	if err := r.Transition(runlog.StatusStarted, time.Now()); err != nil {
		t.Errorf("STARTED → STARTED should be a no-op, got %v", err)
	}
}
