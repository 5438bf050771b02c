package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/client/models"
	"github.com/dmitrijs2005/moodlog/internal/client/reconciler"
	"github.com/dmitrijs2005/moodlog/internal/timex"
)

var errAmbiguousID = errors.New("id prefix matches more than one entry")

// Add runs the guided reflection: mood, text, then an optional zone.
func (a *App) Add(ctx context.Context) error {
	mood, err := GetInt(a.reader, fmt.Sprintf("How are you feeling? (%d-%d)", models.MoodMin, models.MoodMax), a.out, models.MoodMin, models.MoodMax)
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return err
	}
	text, err := GetSimpleText(a.reader, "What is on your mind?", a.out)
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return err
	}
	zone, err := GetOptionalText(a.reader, "Where are you? (optional)", a.out)
	if err != nil {
		return err
	}

	e, err := a.journal.Create(ctx, models.Draft{MoodLevel: mood, Text: text, Zone: zone})
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return err
	}
	fmt.Fprintf(a.out, "Logged %s, your card is on its way.\n", shortID(e.ID))
	return nil
}

// List prints the entries of one day (YYYY-MM-DD, "today") or of every day.
func (a *App) List(ctx context.Context, args []string) error {
	a.updates.Store(0)

	if len(args) > 0 {
		day, err := a.dayArg(args[0])
		if err != nil {
			fmt.Fprintln(a.out, "Error:", err)
			return err
		}
		v := a.journal.View(day)
		a.renderDay(reconciler.Day{Key: day, Entries: v.Entries})
		return nil
	}

	days := a.journal.Days()
	if len(days) == 0 {
		fmt.Fprintln(a.out, "The log is empty. Type 'add' to write the first reflection.")
		return nil
	}
	for _, d := range days {
		a.renderDay(d)
	}
	return nil
}

// Mood prints the collective mood of one day, today by default.
func (a *App) Mood(ctx context.Context, args []string) error {
	day := timex.DayKey(time.Now(), a.loc)
	if len(args) > 0 {
		var err error
		if day, err = a.dayArg(args[0]); err != nil {
			fmt.Fprintln(a.out, "Error:", err)
			return err
		}
	}
	v := a.journal.View(day)
	if !v.HasMood {
		fmt.Fprintf(a.out, "%s: nobody has checked in yet\n", day)
		return nil
	}
	fmt.Fprintf(a.out, "%s: %s\n", day, formatMood(v.Mood))
	return nil
}

func (a *App) Days(ctx context.Context) error {
	for _, d := range a.journal.Days() {
		mood, _ := reconciler.CollectiveMood(d.Entries)
		fmt.Fprintf(a.out, "%s  %s\n", d.Key, formatMood(mood))
	}
	return nil
}

// Delete removes one entry by full id or unique prefix.
func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: delete <id>")
		return nil
	}
	id, err := a.resolveID(args[0])
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return err
	}
	if !a.journal.Delete(ctx, id) {
		fmt.Fprintf(a.out, "Entry %s was already gone\n", shortID(id))
		return nil
	}
	fmt.Fprintf(a.out, "Deleted %s\n", shortID(id))
	return nil
}

// Clear removes every entry created at or before the given instant. A bare
// date clears through the end of that day.
func (a *App) Clear(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: clear <RFC3339 time | YYYY-MM-DD>")
		return nil
	}
	cutoff, err := parseCutoff(args[0], a.loc)
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return err
	}
	if !GetConfirmation(a.reader, fmt.Sprintf("Remove every entry up to %s?", cutoff.Format(time.RFC3339)), a.out) {
		fmt.Fprintln(a.out, "Cancelled")
		return nil
	}
	n := a.journal.ClearUpTo(ctx, cutoff)
	fmt.Fprintf(a.out, "Cleared %d entries\n", n)
	return nil
}

func (a *App) Status(ctx context.Context) error {
	st := a.journal.Status()
	fmt.Fprintf(a.out, "station:      %s (%s)\n", st.StationID, a.Mode())
	fmt.Fprintf(a.out, "entries:      %d\n", st.Entries)
	fmt.Fprintf(a.out, "local only:   %d\n", st.LocalOnly)
	fmt.Fprintf(a.out, "placeholders: %d\n", st.Placeholders)
	fmt.Fprintf(a.out, "enriching:    %d\n", st.Enriching)
	if st.LastSnapshot.IsZero() {
		fmt.Fprintln(a.out, "last sync:    never")
	} else {
		fmt.Fprintf(a.out, "last sync:    %s (%d malformed skipped)\n",
			st.LastSnapshot.In(a.loc).Format(time.DateTime), st.LastDropped)
	}
	return nil
}

// Keys lists the locally stored keys.
func (a *App) Keys(ctx context.Context) error {
	keys, err := a.health.LocalKeys(ctx, "")
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return err
	}
	for _, k := range keys {
		fmt.Fprintf(a.out, "%-48s %d bytes\n", k.Key, k.Size)
	}
	return nil
}

// Reset wipes the local store and exits. Remote documents are untouched.
func (a *App) Reset(ctx context.Context) error {
	if !GetConfirmation(a.reader, "Wipe all local data and exit?", a.out) {
		fmt.Fprintln(a.out, "Cancelled")
		return nil
	}
	a.journal.Close()
	if err := a.health.ClearLocalData(ctx); err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return err
	}
	fmt.Fprintln(a.out, "Local data cleared")
	return errQuit
}

func (a *App) dayArg(s string) (string, error) {
	switch s {
	case "today":
		return timex.DayKey(time.Now(), a.loc), nil
	case "yesterday":
		return timex.DayKey(time.Now().AddDate(0, 0, -1), a.loc), nil
	}
	if _, err := time.ParseInLocation(time.DateOnly, s, a.loc); err != nil {
		return "", fmt.Errorf("day must be YYYY-MM-DD: %w", err)
	}
	return s, nil
}

func (a *App) resolveID(prefix string) (string, error) {
	var match string
	for _, e := range a.journal.View("").Entries {
		if e.ID == prefix {
			return e.ID, nil
		}
		if strings.HasPrefix(e.ID, prefix) {
			if match != "" {
				return "", errAmbiguousID
			}
			match = e.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no entry with id %q", prefix)
	}
	return match, nil
}

func parseCutoff(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	day, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("cutoff must be RFC3339 or YYYY-MM-DD: %q", s)
	}
	return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}
