package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeTrimmer struct {
	cutoffs chan time.Time
	err     error
}

func (f *fakeTrimmer) TrimBefore(_ context.Context, cutoff time.Time) (int64, error) {
	select {
	case f.cutoffs <- cutoff:
	default:
	}
	if f.err != nil {
		return 0, f.err
	}
	return 3, nil
}

func TestRunRetentionTrimsImmediately(t *testing.T) {
	trimmer := &fakeTrimmer{cutoffs: make(chan time.Time, 1)}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	retention := 7 * 24 * time.Hour
	done := make(chan error, 1)
	go func() {
		done <- RunRetention(ctx, trimmer, retention, time.Hour, log)
	}()

	var cutoff time.Time
	select {
	case cutoff = <-trimmer.cutoffs:
	case <-time.After(2 * time.Second):
		t.Fatal("no trim pass before the first tick")
	}

	want := time.Now().UTC().Add(-retention)
	if diff := cutoff.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Errorf("cutoff = %v, want about %v", cutoff, want)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunRetention returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunRetention did not stop on cancel")
	}
}

func TestRunRetentionKeepsGoingAfterFailure(t *testing.T) {
	trimmer := &fakeTrimmer{
		cutoffs: make(chan time.Time, 2),
		err:     errors.New("connection refused"),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- RunRetention(ctx, trimmer, time.Hour, 20*time.Millisecond, log)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-trimmer.cutoffs:
		case <-time.After(2 * time.Second):
			t.Fatalf("trim pass %d never ran", i+1)
		}
	}

	cancel()
	<-done
}
