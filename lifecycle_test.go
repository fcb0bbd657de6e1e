package streambox

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestBox(name, kind string, store Store) *Box {
	return NewBox(name, kind, store, HandlerFunc(func(context.Context, Record) error { return nil }))
}

func TestLifecycleDisabledStartsNothing(t *testing.T) {
	props := DefaultSchedulerProperties()
	store := &fakeStore{}
	lifecycle := NewLifecycle(props, nil)
	if err := lifecycle.Add(newTestBox("orders", KindOutbox, store)); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := lifecycle.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer lifecycle.Stop()

	if len(lifecycle.Registry().All()) != 0 {
		t.Fatalf("expected no schedulers when disabled")
	}
	time.Sleep(10 * time.Millisecond)
	if store.lockCount() != 0 {
		t.Fatalf("expected no ticks when disabled")
	}
}

func TestLifecycleSkipsMisconfiguredBox(t *testing.T) {
	props := DefaultSchedulerProperties()
	props.Enabled = true
	props.Defaults.InitialDelay = "PT1H"
	props.Instances["broken"] = ScheduleConfig{PollInterval: "soon"}

	lifecycle := NewLifecycle(props, nil)
	if err := lifecycle.Add(newTestBox("orders", KindOutbox, &fakeStore{}), newTestBox("broken", KindInbox, &fakeStore{})); err != nil {
		t.Fatalf("add: %v", err)
	}

	err := lifecycle.Start(context.Background())
	defer lifecycle.Stop()

	var parseErr *ConfigParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ConfigParseError, got %v", err)
	}
	if _, ok := lifecycle.Registry().Get("broken"); ok {
		t.Fatalf("expected misconfigured box to be skipped")
	}
	scheduler, ok := lifecycle.Registry().Get("orders")
	if !ok || !scheduler.Running() {
		t.Fatalf("expected healthy box to start")
	}
}

func TestLifecycleStartStopIdempotent(t *testing.T) {
	props := DefaultSchedulerProperties()
	props.Enabled = true
	props.Defaults.PollInterval = "5"

	store := &fakeStore{}
	lifecycle := NewLifecycle(props, NewSchedulerRegistry())
	if err := lifecycle.Add(newTestBox("orders", KindOutbox, store)); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := lifecycle.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := lifecycle.Start(context.Background()); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if !lifecycle.Running() {
		t.Fatalf("expected running")
	}
	scheduler, _ := lifecycle.Registry().Get("orders")

	deadline := time.Now().Add(2 * time.Second)
	for store.lockCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected at least one tick")
		}
		time.Sleep(time.Millisecond)
	}

	lifecycle.Stop()
	lifecycle.Stop()
	if lifecycle.Running() || scheduler.Running() {
		t.Fatalf("expected everything stopped")
	}
}

func TestLifecycleRejectsDuplicateBox(t *testing.T) {
	lifecycle := NewLifecycle(DefaultSchedulerProperties(), nil)

	err := lifecycle.Add(newTestBox("orders", KindOutbox, &fakeStore{}), newTestBox("orders", KindInbox, &fakeStore{}))
	if !errors.Is(err, ErrDuplicateBox) {
		t.Fatalf("expected ErrDuplicateBox, got %v", err)
	}
}

func TestSchedulerRegistry(t *testing.T) {
	registry := NewSchedulerRegistry()
	a := NewScheduler(newTestBox("a", KindOutbox, &fakeStore{}))
	b := NewScheduler(newTestBox("b", KindInbox, &fakeStore{}))
	registry.Register("b", b)
	registry.Register("a", a)

	if got, ok := registry.Get("a"); !ok || got != a {
		t.Fatalf("expected registered scheduler")
	}
	all := registry.All()
	delete(all, "a")
	if _, ok := registry.Get("a"); !ok {
		t.Fatalf("expected All to return a copy")
	}
	if names := registry.Names(); len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("unexpected names %v", names)
	}
}
