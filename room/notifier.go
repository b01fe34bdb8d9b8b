package room

import (
	"context"
	"log/slog"

	"github.com/warp/roster-engine/engine"
)

// Notifier delivers the messages a tenant receives without asking.
//
// Calls happen after the tenant's state is persisted and outside its lock,
// so an implementation may call back into the Service. Errors are logged and
// dropped; nothing is retried.
type Notifier interface {
	// Reminder warns that the deadline of the open cycle is near.
	Reminder(ctx context.Context, tenant engine.TenantID, cycle CycleView) error

	// RostersFinal announces the frozen rosters once the deadline passed.
	RostersFinal(ctx context.Context, tenant engine.TenantID, cycle CycleView) error

	// AttendancePrompts asks whether each rostered person actually came.
	AttendancePrompts(ctx context.Context, tenant engine.TenantID, prompts []Prompt) error
}

// LogNotifier only logs. Used when no chat transport is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

var _ Notifier = LogNotifier{}

func (n LogNotifier) Reminder(_ context.Context, tenant engine.TenantID, c CycleView) error {
	n.Logger.Info("deadline is near", "tenant", tenant, "cycle", c.ID, "deadline", c.Deadline)
	return nil
}

func (n LogNotifier) RostersFinal(_ context.Context, tenant engine.TenantID, c CycleView) error {
	for _, s := range c.Slots {
		names := make([]string, 0, len(s.Roster))
		for _, seat := range s.Roster {
			names = append(names, seat.Name)
		}
		n.Logger.Info("final roster", "tenant", tenant, "cycle", c.ID, "slot", s.ID, "roster", names)
	}
	return nil
}

func (n LogNotifier) AttendancePrompts(_ context.Context, tenant engine.TenantID, prompts []Prompt) error {
	for _, p := range prompts {
		n.Logger.Info("attendance pending", "tenant", tenant, "ref", p.Ref.String(), "who", p.Name, "slot", p.SlotLabel)
	}
	return nil
}
