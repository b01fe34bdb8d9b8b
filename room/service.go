/*
Package room orchestrates the weekly allocation of one room per tenant.

PURPOSE:
  The engine package is pure and single-threaded. This package makes it a
  service: it owns every tenant's runtime state, serializes the events of a
  tenant (declarations, allocations, attendance answers, ticks), persists a
  snapshot after every mutating call and hands notifications to a Notifier
  once the computation is done.

CONCURRENCY:
  One mutex per tenant. Each call holds it until its snapshot is written,
  so an event is fully processed before the next one of the same tenant
  starts. Different tenants never block each other.

CYCLE REPLACEMENT:
  StartCycle for a new week replaces the current cycle. Two cases:

    concluded  (deadline passed)  punishments become final, the attendance
                                  records of its week are kept for prompts
    superseded (still open)       its punishment bonuses are taken back and
                                  its attendance records are dropped

USAGE:
  svc := room.NewService(policy, store, journal, logger)
  if err := svc.Load(ctx); err != nil { ... }
  svc.SetNotifier(bot)

  out, err := svc.DeclarePreference(ctx, "chat-1", room.Declaration{...}, time.Now())

SEE ALSO:
  - engine/allocator.go: The allocation itself
  - room/scheduler.go: Drives Tick
  - api/handlers.go, bot/bot.go: Transports
*/
package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/warp/roster-engine/engine"
)

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	policy   engine.Policy
	store    engine.Store
	journal  engine.KarmaJournal // optional
	notifier Notifier
	clock    func() time.Time
	log      *slog.Logger

	mu      sync.RWMutex
	tenants map[engine.TenantID]*entry
}

type entry struct {
	mu     sync.Mutex
	tenant *engine.Tenant
	alloc  *engine.Allocator
}

// Declaration is one person's answer for one slot.
type Declaration struct {
	Participant engine.ParticipantID
	Profile     engine.Profile
	// Slot is a slot id ("mon_am") or its index in the week ("0").
	Slot       string
	Preference engine.Preference
}

// NewService creates a service with no tenants loaded. journal may be nil.
func NewService(policy engine.Policy, store engine.Store, journal engine.KarmaJournal, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "room")
	return &Service{
		policy:   policy,
		store:    store,
		journal:  journal,
		notifier: LogNotifier{Logger: logger},
		clock:    time.Now,
		log:      logger,
		tenants:  make(map[engine.TenantID]*entry),
	}
}

// SetNotifier replaces the notification sink.
func (s *Service) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// SetClock overrides the wall clock used for timestamps (tests).
func (s *Service) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
	for _, e := range s.tenants {
		e.tenant.Ledger.Clock = clock
	}
}

// Policy returns the room policy the service runs with.
func (s *Service) Policy() engine.Policy { return s.policy }

// Load restores every persisted tenant. Call once at startup.
func (s *Service) Load(ctx context.Context) error {
	ids, err := s.store.ListTenants(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	for _, id := range ids {
		st, err := s.store.LoadState(ctx, id)
		if err != nil {
			return fmt.Errorf("load tenant %s: %w", id, err)
		}
		t, err := engine.RestoreTenant(*st, s.policy)
		if err != nil {
			return fmt.Errorf("restore tenant %s: %w", id, err)
		}
		s.add(t)
		s.log.Info("tenant restored", "tenant", id, "participants", len(t.Ledger.Participants()))
	}
	return nil
}

// Tenants lists the registered tenants, sorted.
func (s *Service) Tenants() []engine.TenantID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]engine.TenantID, 0, len(s.tenants))
	for id := range s.tenants {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Registered reports whether the tenant is served.
func (s *Service) Registered(id engine.TenantID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tenants[id]
	return ok
}

// =============================================================================
// TENANT LIFECYCLE
// =============================================================================

// Register starts serving a tenant.
func (s *Service) Register(ctx context.Context, id engine.TenantID) error {
	if id == "" {
		return fmt.Errorf("%w: empty tenant id", engine.ErrTenantNotFound)
	}
	s.mu.Lock()
	if _, ok := s.tenants[id]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", engine.ErrTenantExists, id)
	}
	e := s.newEntry(engine.NewTenant(id, s.policy))
	s.tenants[id] = e
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := s.persist(ctx, e.tenant); err != nil {
		return err
	}
	s.log.Info("tenant registered", "tenant", id)
	return nil
}

// Unregister stops serving a tenant and forgets its snapshot. The karma
// journal is kept.
func (s *Service) Unregister(ctx context.Context, id engine.TenantID) error {
	s.mu.Lock()
	e, ok := s.tenants[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", engine.ErrTenantNotFound, id)
	}
	delete(s.tenants, id)
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := s.store.DeleteState(ctx, id); err != nil {
		return fmt.Errorf("delete tenant %s: %w", id, err)
	}
	s.log.Info("tenant unregistered", "tenant", id)
	return nil
}

// =============================================================================
// CYCLES AND DECLARATIONS
// =============================================================================

// StartCycle opens the cycle that declarations made at now belong to. If
// that cycle is already the current one it is returned unchanged.
func (s *Service) StartCycle(ctx context.Context, id engine.TenantID, now time.Time) (CycleStart, error) {
	e, err := s.lock(id)
	if err != nil {
		return CycleStart{}, err
	}
	defer e.mu.Unlock()
	t := e.tenant

	start := engine.NextCycleStart(now, s.policy)
	if t.Cycle != nil && t.Cycle.Start.Equal(start) {
		return CycleStart{Cycle: cycleView(t, s.policy, now)}, nil
	}

	out := CycleStart{Renewed: true}
	if old := t.Cycle; old != nil {
		out.Previous = old.ID
		if now.Before(old.Deadline) {
			// Superseded while open: nothing of it is final.
			for _, sl := range old.Slots {
				for _, pid := range sl.Punished {
					if err := t.Ledger.Unpunish(pid, old.ID+"/"+sl.ID); err != nil {
						return CycleStart{}, err
					}
				}
			}
			t.Attendance.DiscardCycle(old.ID)
			s.log.Info("cycle superseded", "tenant", id, "cycle", old.ID)
		}
		t.Ledger.SettlePunishments()
	}

	t.Cycle = engine.NewCycle(start, s.policy)
	res, err := e.alloc.Run(t.Cycle)
	if err != nil {
		return CycleStart{}, err
	}
	t.Attendance.Record(res.Records...)

	if err := s.persist(ctx, t); err != nil {
		return CycleStart{}, err
	}
	s.log.Info("cycle started", "tenant", id, "cycle", t.Cycle.ID, "deadline", t.Cycle.Deadline)
	out.Cycle = cycleView(t, s.policy, now)
	return out, nil
}

// DeclarePreference records a declaration and, if it changed anything,
// recomputes every roster of the cycle.
func (s *Service) DeclarePreference(ctx context.Context, id engine.TenantID, d Declaration, now time.Time) (Outcome, error) {
	e, err := s.lock(id)
	if err != nil {
		return Outcome{}, err
	}
	defer e.mu.Unlock()
	t := e.tenant

	if t.Cycle == nil {
		return Outcome{}, engine.ErrNoActiveCycle
	}
	if err := t.Cycle.CheckOpen(now, s.policy); err != nil {
		return Outcome{}, err
	}
	slot, err := resolveSlot(t.Cycle, d.Slot)
	if err != nil {
		return Outcome{}, err
	}
	pref, err := engine.ParsePreference(string(d.Preference))
	if err != nil {
		return Outcome{}, err
	}

	// Memory goes back to the last saved state when the pass or the save fails.
	prev := t.Snapshot(s.clock())

	t.Ledger.Upsert(d.Participant, d.Profile)
	out := Outcome{Changed: slot.Declare(d.Participant, pref)}
	if out.Changed {
		res, err := e.alloc.Run(t.Cycle)
		if err != nil {
			s.rollback(e, prev)
			return Outcome{}, err
		}
		t.Attendance.Record(res.Records...)
		out.AnyPunished = res.AnyPunished
		s.log.Debug("preference declared", "tenant", id, "participant", d.Participant,
			"slot", slot.ID, "preference", pref, "punished", res.AnyPunished)
	}

	if err := s.save(ctx, t); err != nil {
		s.rollback(e, prev)
		return Outcome{}, err
	}
	if err := s.journalKarma(ctx, t); err != nil {
		return Outcome{}, err
	}
	out.Cycle = cycleView(t, s.policy, now)
	return out, nil
}

// RunAllocation recomputes the rosters of the open cycle. With unchanged
// declarations the rosters do not change.
func (s *Service) RunAllocation(ctx context.Context, id engine.TenantID) (*engine.Result, error) {
	e, err := s.lock(id)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	t := e.tenant

	if t.Cycle == nil {
		return nil, engine.ErrNoActiveCycle
	}
	if err := t.Cycle.CheckOpen(s.clock(), s.policy); err != nil {
		return nil, err
	}
	res, err := e.alloc.Run(t.Cycle)
	if err != nil {
		return nil, err
	}
	t.Attendance.Record(res.Records...)
	if err := s.persist(ctx, t); err != nil {
		return nil, err
	}
	return res, nil
}

func resolveSlot(c *engine.Cycle, ref string) (*engine.Slot, error) {
	if sl, err := c.SlotByID(ref); err == nil {
		return sl, nil
	}
	idx, err := strconv.Atoi(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", engine.ErrUnknownSlot, ref)
	}
	return c.Slot(idx)
}

// =============================================================================
// ATTENDANCE AND KARMA
// =============================================================================

// ConfirmAttendance applies a human answer to a pending prompt.
func (s *Service) ConfirmAttendance(ctx context.Context, id engine.TenantID, ref engine.AttendanceRef, attended bool) (KarmaEntry, error) {
	e, err := s.lock(id)
	if err != nil {
		return KarmaEntry{}, err
	}
	defer e.mu.Unlock()
	t := e.tenant

	if err := t.Attendance.Confirm(t.Ledger, ref, attended); err != nil {
		return KarmaEntry{}, err
	}
	if err := s.persist(ctx, t); err != nil {
		return KarmaEntry{}, err
	}
	p, err := t.Ledger.Get(ref.Participant)
	if err != nil {
		return KarmaEntry{}, err
	}
	s.log.Info("attendance confirmed", "tenant", id, "ref", ref.String(), "attended", attended, "karma", p.Karma)
	return karmaEntry(t.Ledger, p), nil
}

// PendingAttendance lists the unanswered prompts.
func (s *Service) PendingAttendance(_ context.Context, id engine.TenantID) ([]Prompt, error) {
	e, err := s.lock(id)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	var out []Prompt
	for _, c := range e.tenant.Attendance.PendingConfirmations() {
		out = append(out, prompt(e.tenant.Ledger, c))
	}
	return out, nil
}

// Karma returns every participant's karma, ordered by id.
func (s *Service) Karma(_ context.Context, id engine.TenantID) ([]KarmaEntry, error) {
	e, err := s.lock(id)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	var out []KarmaEntry
	for _, p := range e.tenant.Ledger.Participants() {
		out = append(out, karmaEntry(e.tenant.Ledger, p))
	}
	return out, nil
}

// KarmaEvents returns a participant's journaled karma history.
func (s *Service) KarmaEvents(ctx context.Context, id engine.TenantID, pid engine.ParticipantID) ([]engine.KarmaEvent, error) {
	if !s.Registered(id) {
		return nil, fmt.Errorf("%w: %s", engine.ErrTenantNotFound, id)
	}
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.KarmaEvents(ctx, id, pid)
}

// Verdict lists the frozen rosters of the week in progress: every recorded
// slot ending before the current cycle starts that was not prompted yet.
func (s *Service) Verdict(_ context.Context, id engine.TenantID) (Verdict, error) {
	e, err := s.lock(id)
	if err != nil {
		return Verdict{}, err
	}
	defer e.mu.Unlock()
	t := e.tenant

	if t.Cycle == nil {
		return Verdict{}, engine.ErrNoActiveCycle
	}
	v := Verdict{WeekOf: t.Cycle.Start.AddDate(0, 0, -7)}
	for _, r := range t.Attendance.Before(t.Cycle.Start) {
		v.Slots = append(v.Slots, VerdictSlot{
			Label:  r.SlotLabel,
			Start:  r.SlotStart,
			End:    r.SlotEnd,
			Roster: seats(t.Ledger, r.Roster),
		})
	}
	return v, nil
}

// Cycle returns the current cycle as seen at now.
func (s *Service) Cycle(_ context.Context, id engine.TenantID, now time.Time) (CycleView, error) {
	e, err := s.lock(id)
	if err != nil {
		return CycleView{}, err
	}
	defer e.mu.Unlock()

	if e.tenant.Cycle == nil {
		return CycleView{}, engine.ErrNoActiveCycle
	}
	return cycleView(e.tenant, s.policy, now), nil
}

// =============================================================================
// TICK - Time-driven notifications
// =============================================================================

type notification struct {
	tenant   engine.TenantID
	reminder *CycleView
	final    *CycleView
	prompts  []Prompt
}

// Tick sends, for every tenant:
//   - the deadline reminder, once, within ReminderLead of the deadline
//   - the final rosters, once, after the deadline
//   - attendance prompts for every slot that ended
func (s *Service) Tick(ctx context.Context, now time.Time) {
	var pending []notification
	for _, id := range s.Tenants() {
		n, err := s.tick(ctx, id, now)
		if err != nil {
			if !errors.Is(err, engine.ErrTenantNotFound) {
				s.log.Error("tick failed", "tenant", id, "error", err)
			}
			continue
		}
		pending = append(pending, n)
	}

	s.mu.RLock()
	notifier := s.notifier
	s.mu.RUnlock()
	for _, n := range pending {
		if n.reminder != nil {
			if err := notifier.Reminder(ctx, n.tenant, *n.reminder); err != nil {
				s.log.Warn("reminder not delivered", "tenant", n.tenant, "error", err)
			}
		}
		if n.final != nil {
			if err := notifier.RostersFinal(ctx, n.tenant, *n.final); err != nil {
				s.log.Warn("final rosters not delivered", "tenant", n.tenant, "error", err)
			}
		}
		if len(n.prompts) > 0 {
			if err := notifier.AttendancePrompts(ctx, n.tenant, n.prompts); err != nil {
				s.log.Warn("attendance prompts not delivered", "tenant", n.tenant, "error", err)
			}
		}
	}
}

func (s *Service) tick(ctx context.Context, id engine.TenantID, now time.Time) (notification, error) {
	e, err := s.lock(id)
	if err != nil {
		return notification{}, err
	}
	defer e.mu.Unlock()
	t := e.tenant

	n := notification{tenant: id}
	dirty := false
	if c := t.Cycle; c != nil {
		if !c.ReminderSent && !now.Before(c.Deadline.Add(-s.policy.ReminderLead)) && now.Before(c.Deadline) {
			c.ReminderSent = true
			v := cycleView(t, s.policy, now)
			n.reminder = &v
			dirty = true
		}
		if !c.Finalized && !now.Before(c.Deadline) {
			c.Finalized = true
			v := cycleView(t, s.policy, now)
			n.final = &v
			dirty = true
		}
	}
	for _, c := range t.Attendance.Due(now) {
		n.prompts = append(n.prompts, prompt(t.Ledger, c))
		dirty = true
	}

	if dirty {
		if err := s.persist(ctx, t); err != nil {
			return notification{}, err
		}
	}
	return n, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) newEntry(t *engine.Tenant) *entry {
	t.Ledger.Clock = s.clock
	return &entry{tenant: t, alloc: engine.NewAllocator(t.Ledger)}
}

func (s *Service) add(t *engine.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = s.newEntry(t)
}

// lock returns the tenant's entry with its mutex held.
func (s *Service) lock(id engine.TenantID) (*entry, error) {
	s.mu.RLock()
	e, ok := s.tenants[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", engine.ErrTenantNotFound, id)
	}
	e.mu.Lock()
	return e, nil
}

// persist writes the snapshot, then journals the buffered karma events.
func (s *Service) persist(ctx context.Context, t *engine.Tenant) error {
	if err := s.save(ctx, t); err != nil {
		return err
	}
	return s.journalKarma(ctx, t)
}

func (s *Service) save(ctx context.Context, t *engine.Tenant) error {
	if err := s.store.SaveState(ctx, t.Snapshot(s.clock())); err != nil {
		return fmt.Errorf("save tenant %s: %w", t.ID, err)
	}
	return nil
}

// rollback replaces the entry's tenant with prev. Buffered karma events of
// the failed call go with it.
func (s *Service) rollback(e *entry, prev engine.State) {
	t, err := engine.RestoreTenant(prev, s.policy)
	if err != nil {
		s.log.Error("failed to roll back tenant", "tenant", prev.TenantID, "error", err)
		return
	}
	e.tenant = t
	e.alloc = engine.NewAllocator(t.Ledger)
}

func (s *Service) journalKarma(ctx context.Context, t *engine.Tenant) error {
	events := t.Ledger.DrainEvents()
	if len(events) == 0 || s.journal == nil {
		return nil
	}
	for i := range events {
		events[i].TenantID = t.ID
	}
	if err := s.journal.AppendKarmaEvents(ctx, events); err != nil {
		return fmt.Errorf("journal karma of %s: %w", t.ID, err)
	}
	return nil
}
