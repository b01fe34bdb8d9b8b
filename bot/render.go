package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/warp/roster-engine/engine"
	"github.com/warp/roster-engine/room"
)

// =============================================================================
// CUSTOM IDS
// =============================================================================
//
//   slot:<cycle>:<index>:<must|could|cannot|none>
//   attend:<cycle>:<index>:<participant>:<yes|no>
//
// The cycle id is part of every slot button so that a keyboard left over
// from a replaced week is recognized as expired.

const (
	slotPrefix   = "slot:"
	attendPrefix = "attend:"
	noPreference = "none"

	// Discord allows five action rows per message.
	rowsPerMessage = 5
)

func slotButtonID(cycleID string, index int, pref string) string {
	return slotPrefix + cycleID + ":" + strconv.Itoa(index) + ":" + pref
}

// parseSlotButton returns the cycle, the slot index and the preference of a
// slot button. pref is empty for the label button.
func parseSlotButton(customID string) (cycleID string, index int, pref engine.Preference, err error) {
	parts := strings.Split(strings.TrimPrefix(customID, slotPrefix), ":")
	if !strings.HasPrefix(customID, slotPrefix) || len(parts) != 3 {
		return "", 0, "", fmt.Errorf("malformed slot button %q", customID)
	}
	index, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, "", fmt.Errorf("malformed slot button %q: %w", customID, err)
	}
	if parts[2] == noPreference {
		return parts[0], index, "", nil
	}
	pref, err = engine.ParsePreference(parts[2])
	if err != nil {
		return "", 0, "", err
	}
	return parts[0], index, pref, nil
}

func attendButtonID(ref engine.AttendanceRef, attended bool) string {
	answer := "no"
	if attended {
		answer = "yes"
	}
	return attendPrefix + ref.String() + ":" + answer
}

func parseAttendButton(customID string) (engine.AttendanceRef, bool, error) {
	rest, ok := strings.CutPrefix(customID, attendPrefix)
	if !ok {
		return engine.AttendanceRef{}, false, fmt.Errorf("malformed attendance button %q", customID)
	}
	i := strings.LastIndex(rest, ":")
	if i < 0 {
		return engine.AttendanceRef{}, false, fmt.Errorf("malformed attendance button %q", customID)
	}
	var attended bool
	switch rest[i+1:] {
	case "yes":
		attended = true
	case "no":
	default:
		return engine.AttendanceRef{}, false, fmt.Errorf("malformed attendance button %q", customID)
	}
	ref, err := engine.ParseAttendanceRef(rest[:i])
	if err != nil {
		return engine.AttendanceRef{}, false, err
	}
	return ref, attended, nil
}

// =============================================================================
// KEYBOARDS
// =============================================================================

// slotKeyboards returns one row per slot, split into messages of at most
// rowsPerMessage rows.
func slotKeyboards(c room.CycleView) [][]discordgo.MessageComponent {
	var out [][]discordgo.MessageComponent
	var rows []discordgo.MessageComponent
	for _, s := range c.Slots {
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: s.Label, Style: discordgo.SecondaryButton, CustomID: slotButtonID(c.ID, s.Index, noPreference), Disabled: true},
			discordgo.Button{Label: "I must", Style: discordgo.DangerButton, CustomID: slotButtonID(c.ID, s.Index, string(engine.PrefMust))},
			discordgo.Button{Label: "I could", Style: discordgo.PrimaryButton, CustomID: slotButtonID(c.ID, s.Index, string(engine.PrefCould))},
			discordgo.Button{Label: "I can't", Style: discordgo.SecondaryButton, CustomID: slotButtonID(c.ID, s.Index, string(engine.PrefCannot))},
		}})
		if len(rows) == rowsPerMessage {
			out = append(out, rows)
			rows = nil
		}
	}
	if len(rows) > 0 {
		out = append(out, rows)
	}
	return out
}

func attendanceKeyboard(ref engine.AttendanceRef) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Yep", Style: discordgo.SuccessButton, CustomID: attendButtonID(ref, true)},
			discordgo.Button{Label: "Nope", Style: discordgo.DangerButton, CustomID: attendButtonID(ref, false)},
		}},
	}
}

// =============================================================================
// TEXTS
// =============================================================================

const dateLayout = "Mon 2 Jan 15:04 MST"

func renderCycle(c room.CycleView, capacity int, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Week of %s**\n", c.Start.In(loc).Format("02/01/2006"))
	if c.Open {
		fmt.Fprintf(&b, "Declare your preferences with the buttons below. %s has %d places per slot. "+
			"You can change your mind until %s.\n", c.RoomName, capacity, c.Deadline.In(loc).Format(dateLayout))
	} else {
		fmt.Fprintf(&b, "Declarations closed on %s. These rosters are final.\n", c.Deadline.In(loc).Format(dateLayout))
	}

	b.WriteString("\n**Declarations**")
	for _, s := range c.Slots {
		fmt.Fprintf(&b, "\n_%s_: ", s.Label)
		var parts []string
		for _, seat := range s.Must {
			parts = append(parts, seat.Name+" must")
		}
		for _, seat := range s.Could {
			parts = append(parts, seat.Name+" could")
		}
		for _, seat := range s.Cannot {
			parts = append(parts, seat.Name+" can't")
		}
		b.WriteString(strings.Join(parts, ", "))
	}

	b.WriteString("\n\n**Rosters**")
	for _, s := range c.Slots {
		fmt.Fprintf(&b, "\n_%s_: %s", s.Label, joinNames(s.Roster))
		if len(s.Punished) > 0 {
			fmt.Fprintf(&b, " (punished: %s)", joinNames(s.Punished))
		}
	}
	return b.String()
}

func renderKarma(entries []room.KarmaEntry) string {
	var b strings.Builder
	b.WriteString("**Karma**\n")
	if len(entries) == 0 {
		b.WriteString("There are no participants yet")
		return b.String()
	}
	for _, e := range entries {
		fmt.Fprintf(&b, "%s has %s karma points\n", e.Name, e.Karma.Round(0).String())
	}
	return b.String()
}

func renderVerdict(v room.Verdict, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Verdict for the week of %s**", v.WeekOf.In(loc).Format("02/01/2006"))
	if len(v.Slots) == 0 {
		b.WriteString("\nNothing left to judge this week")
	}
	for _, s := range v.Slots {
		fmt.Fprintf(&b, "\n_%s_: %s", s.Label, joinNames(s.Roster))
	}
	return b.String()
}

func renderReminder(c room.CycleView, loc *time.Location) string {
	return fmt.Sprintf("**The end is near!**\nDeclarations for the week of %s close on %s. Say /judge if you have not declared yet.",
		c.Start.In(loc).Format("02/01/2006"), c.Deadline.In(loc).Format(dateLayout))
}

func renderPrompt(p room.Prompt) string {
	return fmt.Sprintf("**Judgement hour**\nWas <@%s> in the office on _%s_?", p.Ref.Participant, p.SlotLabel)
}

func renderAnswer(name, slotLabel string, attended bool, karma string) string {
	if attended {
		return fmt.Sprintf("**Judgement hour**\nGood, %s was in the office on _%s_. Karma is now %s.", name, slotLabel, karma)
	}
	return fmt.Sprintf("**Judgement hour**\nOh no! %s was not in the office on _%s_. Karma dropped to %s.", name, slotLabel, karma)
}

func renderHelp(roomName string, capacity int, initialKarma string) string {
	return "**How this works**\n" +
		"Every week say /judge and tap one button per slot: I must, I could or I can't. " +
		fmt.Sprintf("%s has %d places per slot. ", roomName, capacity) +
		"Those who must come go before those who could, and ties are settled by chance.\n\n" +
		"**Karma**\n" +
		fmt.Sprintf("Everybody starts with %s karma points. ", initialKarma) +
		"After each slot I ask whether the people I picked actually came. " +
		"A no-show halves karma, showing up earns some back. " +
		"Low karma makes you likely to lose an overbooked slot. Losing one that way earns a little karma back.\n\n" +
		"**Commands**\n" +
		"/start serve this channel\n" +
		"/judge open this week's declarations\n" +
		"/karma show everybody's karma\n" +
		"/verdict show this week's rosters\n" +
		"/stop stop serving this channel"
}

func joinNames(seats []room.Seat) string {
	if len(seats) == 0 {
		return "nobody"
	}
	names := make([]string, len(seats))
	for i, s := range seats {
		names[i] = s.Name
	}
	return strings.Join(names, ", ")
}
