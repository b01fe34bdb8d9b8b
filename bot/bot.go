/*
Package bot serves the room engine in Discord channels.

PURPOSE:
  The chat front end of the room service. Every registered channel is one
  tenant; people declare with buttons, the bot keeps a roster message up to
  date and asks after each slot whether the chosen people actually came.

COMMANDS:
  /start    Serve this channel
  /stop     Stop serving it
  /judge    Open this week's declarations (roster + button keyboards)
  /karma    Karma table
  /verdict  Frozen rosters of the week in progress
  /help     How it works

BUTTONS:
  slot:<cycle>:<index>:<pref>                  Declare a preference
  attend:<cycle>:<index>:<participant>:yes|no  Answer an attendance prompt

CHANNEL GUARD:
  Only channels that said /start are served. Everything else gets a hint.

SEE ALSO:
  - render.go: Texts, keyboards and custom ids
  - notifier.go: Messages the scheduler triggers
  - room/service.go: The operations behind every handler
*/
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/warp/roster-engine/engine"
	"github.com/warp/roster-engine/room"
)

// transport is the part of a Discord session the bot talks through.
type transport interface {
	Respond(i *discordgo.Interaction, resp *discordgo.InteractionResponse) error
	Send(channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error)
	Edit(edit *discordgo.MessageEdit) error
}

type sessionTransport struct{ s *discordgo.Session }

func (t sessionTransport) Respond(i *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	return t.s.InteractionRespond(i, resp)
}

func (t sessionTransport) Send(channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	return t.s.ChannelMessageSendComplex(channelID, msg)
}

func (t sessionTransport) Edit(edit *discordgo.MessageEdit) error {
	_, err := t.s.ChannelMessageEditComplex(edit)
	return err
}

// rosterMessage is the message of a tenant that shows the current rosters.
type rosterMessage struct {
	channelID string
	messageID string
	cycleID   string
}

type Bot struct {
	svc     *room.Service
	out     transport
	session *discordgo.Session
	appID   string
	guildID string
	now     func() time.Time
	log     *slog.Logger

	mu      sync.Mutex
	rosters map[engine.TenantID]rosterMessage
}

// New creates a bot for the given token. guildID may be empty to register
// the commands globally.
func New(token, appID, guildID string, svc *room.Service, logger *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	b := newBot(sessionTransport{s: session}, svc, logger)
	b.session = session
	b.appID = appID
	b.guildID = guildID

	// Register event handlers
	session.AddHandler(b.onReady)
	session.AddHandler(b.onInteractionCreate)
	session.Identify.Intents = discordgo.IntentsGuilds

	return b, nil
}

func newBot(out transport, svc *room.Service, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		svc:     svc,
		out:     out,
		now:     time.Now,
		log:     logger.With("component", "bot"),
		rosters: make(map[engine.TenantID]rosterMessage),
	}
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	b.log.Info("discord bot is running")
	return nil
}

func (b *Bot) Stop() error {
	return b.session.Close()
}

// =============================================================================
// EVENTS
// =============================================================================

func (b *Bot) onReady(s *discordgo.Session, event *discordgo.Ready) {
	b.log.Info("connected", "user", event.User.Username)
	appID := b.appID
	if appID == "" {
		appID = s.State.User.ID
	}
	// Delete existing commands and register new ones
	if _, err := s.ApplicationCommandBulkOverwrite(appID, b.guildID, commands()); err != nil {
		b.log.Error("failed to register commands", "guild", b.guildID, "error", err)
		return
	}
	b.log.Info("registered application commands", "guild", b.guildID)
}

func (b *Bot) onInteractionCreate(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	b.handle(context.Background(), i)
}

func (b *Bot) handle(ctx context.Context, i *discordgo.InteractionCreate) {
	tenant := engine.TenantID(i.ChannelID)

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		name := i.ApplicationCommandData().Name
		if name != "start" && name != "help" && !b.svc.Registered(tenant) {
			b.reply(i.Interaction, "Psst! Say /start", true)
			return
		}
		b.handleCommand(ctx, i, tenant, name)
	case discordgo.InteractionMessageComponent:
		if !b.svc.Registered(tenant) {
			b.reply(i.Interaction, "Psst! Say /start", true)
			return
		}
		b.handleComponent(ctx, i, tenant, i.MessageComponentData().CustomID)
	}
}

func commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{Name: "start", Description: "Serve this channel", DMPermission: boolPtr(false)},
		{Name: "stop", Description: "Stop serving this channel", DMPermission: boolPtr(false)},
		{Name: "judge", Description: "Open this week's declarations", DMPermission: boolPtr(false)},
		{Name: "karma", Description: "Show everybody's karma", DMPermission: boolPtr(false)},
		{Name: "verdict", Description: "Show this week's rosters", DMPermission: boolPtr(false)},
		{Name: "help", Description: "How this works", DMPermission: boolPtr(false)},
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

func (b *Bot) handleCommand(ctx context.Context, i *discordgo.InteractionCreate, tenant engine.TenantID, name string) {
	p := b.svc.Policy()

	switch name {
	case "start":
		err := b.svc.Register(ctx, tenant)
		switch {
		case errors.Is(err, engine.ErrTenantExists):
			b.reply(i.Interaction, "I am already judging this channel. Say /judge.", false)
		case err != nil:
			b.fail(i.Interaction, "register", err)
		default:
			b.reply(i.Interaction, "**Greetings!** I decide who goes to "+p.RoomName+" and when.\n\n"+
				renderHelp(p.RoomName, p.Capacity, p.InitialKarma.String()), false)
		}

	case "stop":
		if err := b.svc.Unregister(ctx, tenant); err != nil {
			b.fail(i.Interaction, "unregister", err)
			return
		}
		b.mu.Lock()
		delete(b.rosters, tenant)
		b.mu.Unlock()
		b.reply(i.Interaction, "OK, bye!", false)

	case "help":
		b.reply(i.Interaction, renderHelp(p.RoomName, p.Capacity, p.InitialKarma.String()), false)

	case "judge":
		b.judge(ctx, i, tenant)

	case "karma":
		entries, err := b.svc.Karma(ctx, tenant)
		if err != nil {
			b.fail(i.Interaction, "karma", err)
			return
		}
		b.reply(i.Interaction, renderKarma(entries), false)

	case "verdict":
		v, err := b.svc.Verdict(ctx, tenant)
		if errors.Is(err, engine.ErrNoActiveCycle) {
			b.reply(i.Interaction, "Nothing was judged yet. Say /judge.", true)
			return
		}
		if err != nil {
			b.fail(i.Interaction, "verdict", err)
			return
		}
		b.reply(i.Interaction, renderVerdict(v, location(p)), false)
	}
}

// judge opens the cycle and posts the roster with its keyboards.
func (b *Bot) judge(ctx context.Context, i *discordgo.InteractionCreate, tenant engine.TenantID) {
	p := b.svc.Policy()
	out, err := b.svc.StartCycle(ctx, tenant, b.now())
	if err != nil {
		b.fail(i.Interaction, "start cycle", err)
		return
	}
	c := out.Cycle
	b.reply(i.Interaction, fmt.Sprintf("Judgement for the week of %s is open.", c.Start.In(location(p)).Format("02/01/2006")), false)

	keyboards := slotKeyboards(c)
	for n, kb := range keyboards {
		msg := &discordgo.MessageSend{Components: kb}
		if n == 0 {
			msg.Content = renderCycle(c, p.Capacity, location(p))
		} else {
			msg.Content = "More slots:"
		}
		sent, err := b.out.Send(i.ChannelID, msg)
		if err != nil {
			b.log.Error("failed to send keyboard", "tenant", tenant, "error", err)
			return
		}
		if n == 0 {
			b.mu.Lock()
			b.rosters[tenant] = rosterMessage{channelID: i.ChannelID, messageID: sent.ID, cycleID: c.ID}
			b.mu.Unlock()
		}
	}
}

// =============================================================================
// BUTTONS
// =============================================================================

func (b *Bot) handleComponent(ctx context.Context, i *discordgo.InteractionCreate, tenant engine.TenantID, customID string) {
	switch {
	case strings.HasPrefix(customID, slotPrefix):
		b.declare(ctx, i, tenant, customID)
	case strings.HasPrefix(customID, attendPrefix):
		b.attend(ctx, i, tenant, customID)
	default:
		b.reply(i.Interaction, "Please use the latest judgement message", true)
	}
}

func (b *Bot) declare(ctx context.Context, i *discordgo.InteractionCreate, tenant engine.TenantID, customID string) {
	cycleID, index, pref, err := parseSlotButton(customID)
	if err != nil {
		b.reply(i.Interaction, "Please use the latest judgement message", true)
		return
	}
	if pref == "" {
		b.reply(i.Interaction, "Please don't press this button. It hurts", true)
		return
	}

	current, err := b.svc.Cycle(ctx, tenant, b.now())
	if err != nil || current.ID != cycleID {
		b.reply(i.Interaction, "This judgement has expired. Say /judge", true)
		return
	}

	user := interactionUser(i)
	if user == nil {
		return
	}
	pid, err := engine.ParseParticipantID(user.ID)
	if err != nil {
		b.fail(i.Interaction, "participant id", err)
		return
	}

	out, err := b.svc.DeclarePreference(ctx, tenant, room.Declaration{
		Participant: pid,
		Profile:     profile(i),
		Slot:        strconv.Itoa(index),
		Preference:  pref,
	}, b.now())
	if errors.Is(err, engine.ErrStaleCycle) {
		b.reply(i.Interaction, "I'm afraid I can't do that. Declarations are closed.", true)
		return
	}
	if err != nil {
		b.fail(i.Interaction, "declare", err)
		return
	}

	label := current.Slots[index].Label
	b.reply(i.Interaction, fmt.Sprintf("On %s, you %s", label, pref), true)
	if out.Changed {
		b.refreshRoster(tenant, out.Cycle)
	}
}

func (b *Bot) attend(ctx context.Context, i *discordgo.InteractionCreate, tenant engine.TenantID, customID string) {
	ref, attended, err := parseAttendButton(customID)
	if err != nil {
		b.reply(i.Interaction, "Please use the latest judgement message", true)
		return
	}

	label := ""
	if pending, err := b.svc.PendingAttendance(ctx, tenant); err == nil {
		for _, p := range pending {
			if p.Ref == ref {
				label = p.SlotLabel
			}
		}
	}

	entry, err := b.svc.ConfirmAttendance(ctx, tenant, ref, attended)
	if engine.IsNotFound(err) {
		b.reply(i.Interaction, "This was already judged", true)
		return
	}
	if err != nil {
		b.fail(i.Interaction, "confirm attendance", err)
		return
	}

	err = b.out.Respond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    renderAnswer(entry.Name, label, attended, entry.Karma.Round(0).String()),
			Components: []discordgo.MessageComponent{},
		},
	})
	if err != nil {
		b.log.Warn("failed to answer attendance", "tenant", tenant, "error", err)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// refreshRoster re-renders the tenant's roster message, if it shows c.
func (b *Bot) refreshRoster(tenant engine.TenantID, c room.CycleView) {
	b.mu.Lock()
	msg, ok := b.rosters[tenant]
	b.mu.Unlock()
	if !ok || msg.cycleID != c.ID {
		return
	}
	p := b.svc.Policy()
	edit := discordgo.NewMessageEdit(msg.channelID, msg.messageID).SetContent(renderCycle(c, p.Capacity, location(p)))
	if err := b.out.Edit(edit); err != nil {
		b.log.Warn("failed to refresh roster", "tenant", tenant, "error", err)
	}
}

func (b *Bot) reply(i *discordgo.Interaction, content string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := b.out.Respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.log.Warn("failed to respond", "channel", i.ChannelID, "error", err)
	}
}

func (b *Bot) fail(i *discordgo.Interaction, op string, err error) {
	b.log.Error(op+" failed", "channel", i.ChannelID, "error", err)
	b.reply(i, "Ooops, there was an internal error, sorry about that.", true)
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// profile is what the room knows about the clicking user. The guild
// nickname wins over the account name.
func profile(i *discordgo.InteractionCreate) engine.Profile {
	u := interactionUser(i)
	if u == nil {
		return engine.Profile{}
	}
	p := engine.Profile{Username: u.Username}
	if i.Member != nil && i.Member.Nick != "" {
		p.FirstName = i.Member.Nick
	}
	return p
}

func boolPtr(b bool) *bool {
	return &b
}
