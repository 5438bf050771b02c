package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/moodlog/internal/client/models"
	"github.com/dmitrijs2005/moodlog/internal/client/reconciler"
)

const shortIDLen = 8

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

func formatMood(m reconciler.Mood) string {
	if m.Count == 0 {
		return "no entries"
	}
	noun := "entries"
	if m.Count == 1 {
		noun = "entry"
	}
	return fmt.Sprintf("mood %d, %s (%d %s)", m.Average, m.Label, m.Count, noun)
}

func (a *App) renderDay(d reconciler.Day) {
	mood, _ := reconciler.CollectiveMood(d.Entries)
	fmt.Fprintf(a.out, "== %s  %s\n", d.Key, formatMood(mood))
	for _, e := range d.Entries {
		a.renderEntry(e)
	}
}

func (a *App) renderEntry(e models.LogEntry) {
	mark := "✓"
	if e.Sync != models.SyncSynced {
		mark = "…"
	}
	fmt.Fprintf(a.out, "%s %s %s [%3d] %s %s %s\n",
		shortID(e.ID),
		e.CreatedAt.In(a.loc).Format("15:04"),
		a.paint(e.AuthorSignature, e.AuthorColor),
		e.MoodLevel,
		e.Theme,
		strings.Join(e.Tags, " "),
		mark,
	)
	fmt.Fprintf(a.out, "    %s\n", e.Text)
	if e.Zone != "" {
		fmt.Fprintf(a.out, "    @ %s\n", e.Zone)
	}
	if e.ReplyMessage != "" {
		fmt.Fprintf(a.out, "    > %s\n", e.ReplyMessage)
	}
	if c := e.FullCard; c != nil {
		if c.Quote != "" {
			fmt.Fprintf(a.out, "    \"%s\"\n", c.Quote)
		}
		fmt.Fprintf(a.out, "    lucky: %s | try: %s\n", c.LuckyItem, c.Relaxation)
		if c.ImageRef != "" {
			fmt.Fprintf(a.out, "    image: %s\n", c.ImageRef)
		}
	}
}

// paint wraps s in a 24-bit ANSI color taken from a "#RRGGBB" string.
func (a *App) paint(s, hex string) string {
	if !a.color {
		return s
	}
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return s
	}
	rgb, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return s
	}
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm%s\x1b[0m", rgb>>16, (rgb>>8)&0xff, rgb&0xff, s)
}
