package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-portal/internal/apperr"
	"github.com/Shivanand-hulikatti/event-portal/internal/database"
	"github.com/Shivanand-hulikatti/event-portal/internal/logging"
	"github.com/Shivanand-hulikatti/event-portal/internal/metrics"
	"github.com/Shivanand-hulikatti/event-portal/internal/model"
	"github.com/Shivanand-hulikatti/event-portal/internal/repository"
	"github.com/Shivanand-hulikatti/event-portal/internal/repository/sqlite"
)

var (
	organizer = model.Identity{UserID: "organizer-1", Role: model.RoleUser}
	admin     = model.Identity{UserID: "admin-1", Role: model.RoleAdmin}
	alice     = model.Identity{UserID: "alice", Role: model.RoleUser}
	bob       = model.Identity{UserID: "bob", Role: model.RoleUser}
)

type fixture struct {
	store  repository.Store
	events *EventService
	regs   *RegistrationService
}

// stepClock returns a clock that advances one minute per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2026, time.October, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Minute)
		return current
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "service.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.MigrateSQLite(context.Background(), db); err != nil {
		_ = db.Close()
		t.Fatalf("migrate: %v", err)
	}
	store := sqlite.New(db)
	t.Cleanup(func() { _ = store.Close() })

	logger := logging.Discard()
	m := metrics.New()
	clock := stepClock()
	events := NewEventService(store, logger, m)
	events.now = clock
	regs := NewRegistrationService(store, logger, m)
	regs.now = clock
	return &fixture{store: store, events: events, regs: regs}
}

func (f *fixture) createEvent(t *testing.T, capacity int) *model.Event {
	t.Helper()

	event, err := f.events.CreateEvent(context.Background(), organizer, model.EventDraft{
		Title:       "Go Meetup",
		Description: "Monthly meetup",
		Date:        time.Date(2026, time.November, 12, 0, 0, 0, 0, time.UTC),
		Time:        "18:30",
		Venue:       "Room 4",
		Capacity:    capacity,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return event
}

func (f *fixture) registeredCount(t *testing.T, eventID string) int {
	t.Helper()

	event, err := f.store.GetEvent(context.Background(), eventID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	return event.RegisteredCount
}

func assertKind(t *testing.T, err error, want apperr.Kind) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := apperr.KindOf(err); got != want {
		t.Fatalf("error kind = %s (%v), want %s", got, err, want)
	}
}

func TestCapacityOneScenario(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, 1)

	reg, err := f.regs.Register(ctx, alice, event.ID)
	if err != nil {
		t.Fatalf("alice register: %v", err)
	}
	if reg.Status != model.StatusActive {
		t.Fatalf("status = %q, want active", reg.Status)
	}
	if got := f.registeredCount(t, event.ID); got != 1 {
		t.Fatalf("registered_count = %d, want 1", got)
	}

	_, err = f.regs.Register(ctx, bob, event.ID)
	assertKind(t, err, apperr.KindCapacityExceeded)

	cancelled, err := f.regs.Cancel(ctx, alice, reg.ID)
	if err != nil {
		t.Fatalf("alice cancel: %v", err)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Fatalf("status = %q, want cancelled", cancelled.Status)
	}
	if got := f.registeredCount(t, event.ID); got != 0 {
		t.Fatalf("registered_count = %d, want 0", got)
	}

	_, err = f.regs.Register(ctx, alice, event.ID)
	assertKind(t, err, apperr.KindConflict)
}

func TestRegisterOnFullEventChangesNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, 1)

	if _, err := f.regs.Register(ctx, alice, event.ID); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := f.regs.Register(ctx, bob, event.ID)
	assertKind(t, err, apperr.KindCapacityExceeded)

	regs, err := f.store.ListRegistrationsByEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(regs) != 1 {
		t.Fatalf("registrations = %d, want 1", len(regs))
	}
	if got := f.registeredCount(t, event.ID); got != 1 {
		t.Fatalf("registered_count = %d, want 1", got)
	}
}

func TestRegisterDuplicateActiveIsConflict(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, 5)

	if _, err := f.regs.Register(ctx, alice, event.ID); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := f.regs.Register(ctx, alice, event.ID)
	assertKind(t, err, apperr.KindConflict)
	if got := f.registeredCount(t, event.ID); got != 1 {
		t.Fatalf("registered_count = %d, want 1", got)
	}
}

func TestRegisterErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, 5)

	_, err := f.regs.Register(ctx, model.Identity{}, event.ID)
	assertKind(t, err, apperr.KindUnauthorized)

	_, err = f.regs.Register(ctx, alice, "00000000-0000-0000-0000-000000000000")
	assertKind(t, err, apperr.KindNotFound)
}

func TestConcurrentRegistrationsNeverExceedCapacity(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	const (
		capacity = 5
		attempts = 60
	)
	event := f.createEvent(t, capacity)

	var succeeded, full, unexpected atomic.Int32
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := model.Identity{UserID: fmt.Sprintf("user-%d", n), Role: model.RoleUser}
			_, err := f.regs.Register(ctx, user, event.ID)
			switch {
			case err == nil:
				succeeded.Add(1)
			case apperr.KindOf(err) == apperr.KindCapacityExceeded:
				full.Add(1)
			default:
				t.Logf("unexpected error for %s: %v", user.UserID, err)
				unexpected.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if got := succeeded.Load(); got != capacity {
		t.Fatalf("successes = %d, want %d", got, capacity)
	}
	if got := full.Load(); got != attempts-capacity {
		t.Fatalf("capacity exceeded = %d, want %d", got, attempts-capacity)
	}
	if got := unexpected.Load(); got != 0 {
		t.Fatalf("unexpected errors = %d, want 0", got)
	}
	if got := f.registeredCount(t, event.ID); got != capacity {
		t.Fatalf("registered_count = %d, want %d", got, capacity)
	}
	regs, err := f.store.ListRegistrationsByEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(regs) != capacity {
		t.Fatalf("registration rows = %d, want %d", len(regs), capacity)
	}
}

func TestConcurrentSameUserRegistersOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, 10)

	var succeeded, conflicts atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.regs.Register(ctx, alice, event.ID)
			if err == nil {
				succeeded.Add(1)
			} else if apperr.KindOf(err) == apperr.KindConflict {
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	if succeeded.Load() != 1 || conflicts.Load() != 19 {
		t.Fatalf("successes/conflicts = %d/%d, want 1/19", succeeded.Load(), conflicts.Load())
	}
	if got := f.registeredCount(t, event.ID); got != 1 {
		t.Fatalf("registered_count = %d, want 1", got)
	}
}

func TestCancelTwiceDecrementsOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, 3)

	reg, err := f.regs.Register(ctx, alice, event.ID)
	if err != nil {
		t.Fatalf("register alice: %v", err)
	}
	if _, err := f.regs.Register(ctx, bob, event.ID); err != nil {
		t.Fatalf("register bob: %v", err)
	}

	for i := range 2 {
		got, err := f.regs.Cancel(ctx, alice, reg.ID)
		if err != nil {
			t.Fatalf("cancel %d: %v", i+1, err)
		}
		if got.Status != model.StatusCancelled {
			t.Fatalf("cancel %d status = %q", i+1, got.Status)
		}
	}
	if got := f.registeredCount(t, event.ID); got != 1 {
		t.Fatalf("registered_count = %d, want 1", got)
	}
}

func TestConcurrentCancelDecrementsOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, 3)

	reg, err := f.regs.Register(ctx, alice, event.ID)
	if err != nil {
		t.Fatalf("register alice: %v", err)
	}
	if _, err := f.regs.Register(ctx, bob, event.ID); err != nil {
		t.Fatalf("register bob: %v", err)
	}

	var failures atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.regs.Cancel(ctx, alice, reg.ID); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Fatalf("cancel failures = %d, want 0", failures.Load())
	}
	if got := f.registeredCount(t, event.ID); got != 1 {
		t.Fatalf("registered_count = %d, want 1", got)
	}
}

func TestCancelAuthorization(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, 3)

	reg, err := f.regs.Register(ctx, alice, event.ID)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err = f.regs.Cancel(ctx, bob, reg.ID)
	assertKind(t, err, apperr.KindForbidden)

	// The organizer manages the event, not other people's registrations.
	_, err = f.regs.Cancel(ctx, organizer, reg.ID)
	assertKind(t, err, apperr.KindForbidden)

	stored, err := f.store.GetRegistration(ctx, reg.ID)
	if err != nil {
		t.Fatalf("get registration: %v", err)
	}
	if stored.Status != model.StatusActive {
		t.Fatalf("status after forbidden cancel = %q, want active", stored.Status)
	}
	if got := f.registeredCount(t, event.ID); got != 1 {
		t.Fatalf("registered_count = %d, want 1", got)
	}

	if _, err := f.regs.Cancel(ctx, admin, reg.ID); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
	if got := f.registeredCount(t, event.ID); got != 0 {
		t.Fatalf("registered_count = %d, want 0", got)
	}

	_, err = f.regs.Cancel(ctx, alice, "missing")
	assertKind(t, err, apperr.KindNotFound)
	_, err = f.regs.Cancel(ctx, model.Identity{}, reg.ID)
	assertKind(t, err, apperr.KindUnauthorized)
}

func TestListMineNewestFirstIncludesCancelled(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	first := f.createEvent(t, 3)
	second := f.createEvent(t, 3)

	r1, err := f.regs.Register(ctx, alice, first.ID)
	if err != nil {
		t.Fatalf("register first: %v", err)
	}
	if _, err := f.regs.Register(ctx, alice, second.ID); err != nil {
		t.Fatalf("register second: %v", err)
	}
	if _, err := f.regs.Cancel(ctx, alice, r1.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	mine, err := f.regs.ListMine(ctx, alice)
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("len = %d, want 2", len(mine))
	}
	if mine[0].EventID != second.ID || mine[1].EventID != first.ID {
		t.Fatalf("order = [%s %s]", mine[0].EventID, mine[1].EventID)
	}
	if mine[1].Status != model.StatusCancelled {
		t.Fatalf("first registration status = %q, want cancelled", mine[1].Status)
	}
	if mine[0].Event.Title != second.Title {
		t.Fatalf("event title = %q", mine[0].Event.Title)
	}

	_, err = f.regs.ListMine(ctx, model.Identity{})
	assertKind(t, err, apperr.KindUnauthorized)
}

func TestListForEventAuthorization(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, 3)

	if _, err := f.regs.Register(ctx, alice, event.ID); err != nil {
		t.Fatalf("register alice: %v", err)
	}
	if _, err := f.regs.Register(ctx, bob, event.ID); err != nil {
		t.Fatalf("register bob: %v", err)
	}

	for _, caller := range []model.Identity{organizer, admin} {
		regs, err := f.regs.ListForEvent(ctx, caller, event.ID)
		if err != nil {
			t.Fatalf("list as %s: %v", caller.UserID, err)
		}
		if len(regs) != 2 || regs[0].UserID != bob.UserID || regs[1].UserID != alice.UserID {
			t.Fatalf("list as %s = %+v", caller.UserID, regs)
		}
	}

	_, err := f.regs.ListForEvent(ctx, alice, event.ID)
	assertKind(t, err, apperr.KindForbidden)
	_, err = f.regs.ListForEvent(ctx, admin, "missing")
	assertKind(t, err, apperr.KindNotFound)
}

func TestCapacityRemaining(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, 4)

	if _, err := f.regs.Register(ctx, alice, event.ID); err != nil {
		t.Fatalf("register: %v", err)
	}
	remaining, err := f.regs.CapacityRemaining(ctx, event.ID)
	if err != nil {
		t.Fatalf("capacity remaining: %v", err)
	}
	if remaining != 3 {
		t.Fatalf("remaining = %d, want 3", remaining)
	}
	_, err = f.regs.CapacityRemaining(ctx, "missing")
	assertKind(t, err, apperr.KindNotFound)
}

func TestCreateEventValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		draft model.EventDraft
	}{
		{name: "blank title", draft: model.EventDraft{Title: "  ", Capacity: 1}},
		{name: "zero capacity", draft: model.EventDraft{Title: "x", Capacity: 0}},
		{name: "huge capacity", draft: model.EventDraft{Title: "x", Capacity: maxCapacity + 1}},
	}
	for _, tt := range tests {
		_, err := f.events.CreateEvent(ctx, organizer, tt.draft)
		if apperr.KindOf(err) != apperr.KindValidation {
			t.Errorf("%s: error = %v, want validation", tt.name, err)
		}
	}

	_, err := f.events.CreateEvent(ctx, model.Identity{}, model.EventDraft{Title: "x", Capacity: 1})
	assertKind(t, err, apperr.KindUnauthorized)
}

func TestUpdateEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, 2)
	venue := "Main Hall"

	_, err := f.events.UpdateEvent(ctx, alice, event.ID, model.EventUpdate{Venue: &venue})
	assertKind(t, err, apperr.KindForbidden)

	updated, err := f.events.UpdateEvent(ctx, organizer, event.ID, model.EventUpdate{Venue: &venue})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Venue != venue || updated.Title != event.Title || updated.Capacity != event.Capacity {
		t.Fatalf("updated = %+v", updated)
	}

	blank := " "
	_, err = f.events.UpdateEvent(ctx, admin, event.ID, model.EventUpdate{Title: &blank})
	assertKind(t, err, apperr.KindValidation)
	_, err = f.events.UpdateEvent(ctx, admin, "missing", model.EventUpdate{Venue: &venue})
	assertKind(t, err, apperr.KindNotFound)
}

func TestDeleteEventPolicy(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, 2)

	reg, err := f.regs.Register(ctx, alice, event.ID)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	err = f.events.DeleteEvent(ctx, alice, event.ID)
	assertKind(t, err, apperr.KindForbidden)

	err = f.events.DeleteEvent(ctx, organizer, event.ID)
	assertKind(t, err, apperr.KindConflict)

	if _, err := f.regs.Cancel(ctx, alice, reg.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := f.events.DeleteEvent(ctx, organizer, event.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = f.events.GetEvent(ctx, event.ID)
	assertKind(t, err, apperr.KindNotFound)
	if _, err := f.store.GetRegistration(ctx, reg.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("registration after delete error = %v, want not found", err)
	}

	err = f.events.DeleteEvent(ctx, admin, event.ID)
	assertKind(t, err, apperr.KindNotFound)
}

func TestListEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.createEvent(t, 2)
	f.createEvent(t, 3)

	all, err := f.events.ListEvents(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}
	mine, err := f.events.ListMyEvents(ctx, organizer)
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if len(mine) != 2 || mine[0].Capacity != 3 {
		t.Fatalf("my events = %+v", mine)
	}
	none, err := f.events.ListMyEvents(ctx, alice)
	if err != nil {
		t.Fatalf("list alice: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("alice events = %d, want 0", len(none))
	}
}
