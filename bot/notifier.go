package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/warp/roster-engine/engine"
	"github.com/warp/roster-engine/room"
)

var _ room.Notifier = (*Bot)(nil)

// Reminder warns the channel that declarations close soon.
func (b *Bot) Reminder(_ context.Context, tenant engine.TenantID, c room.CycleView) error {
	_, err := b.out.Send(string(tenant), &discordgo.MessageSend{
		Content: renderReminder(c, location(b.svc.Policy())),
	})
	if err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}
	return nil
}

// RostersFinal posts the frozen rosters and stops refreshing the old
// roster message.
func (b *Bot) RostersFinal(_ context.Context, tenant engine.TenantID, c room.CycleView) error {
	p := b.svc.Policy()
	b.refreshRoster(tenant, c)

	b.mu.Lock()
	if msg, ok := b.rosters[tenant]; ok && msg.cycleID == c.ID {
		delete(b.rosters, tenant)
	}
	b.mu.Unlock()

	_, err := b.out.Send(string(tenant), &discordgo.MessageSend{
		Content: renderCycle(c, p.Capacity, location(p)),
	})
	if err != nil {
		return fmt.Errorf("send final rosters: %w", err)
	}
	return nil
}

// AttendancePrompts posts one yes/no question per rostered person.
func (b *Bot) AttendancePrompts(_ context.Context, tenant engine.TenantID, prompts []room.Prompt) error {
	var errs []error
	for _, p := range prompts {
		_, err := b.out.Send(string(tenant), &discordgo.MessageSend{
			Content:    renderPrompt(p),
			Components: attendanceKeyboard(p.Ref),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("send prompt %s: %w", p.Ref, err))
		}
	}
	return errors.Join(errs...)
}

func location(p engine.Policy) *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}
