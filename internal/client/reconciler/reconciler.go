// Package reconciler merges the local cache with snapshots pushed by the
// remote feed and derives the day-partitioned view.
//
// Each entry moves through two independent axes: content goes placeholder →
// enriched and sync goes local_only → synced. Merge only ever moves entries
// forward on both axes, so repeated or reordered snapshots converge to the
// same view.
package reconciler

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/client/models"
	"github.com/dmitrijs2005/moodlog/internal/timex"
)

// Guard tells Merge which remote copies must stay hidden, e.g. entries the
// user deleted or cleared while the remote store still had them. It is only
// consulted for ids missing from the local list.
type Guard interface {
	Suppressed(e models.LogEntry) bool
}

// Result is the merged list plus counters for diagnostics.
type Result struct {
	Entries    []models.LogEntry
	Confirmed  int
	Inserted   int
	Dropped    int
	Suppressed int
}

// Merge overlays snap onto local and returns the merged list, newest first.
//
// Remote content replaces local content only when the remote copy is
// enriched. Immutable fields always come from the local copy. Local entries
// missing from the snapshot are kept; remote entries missing locally are
// added. Documents that fail to decode are skipped one by one.
func Merge(local []models.LogEntry, snap models.Snapshot, guard Guard) Result {
	var res Result

	byID := make(map[string]models.LogEntry, len(local)+len(snap.Documents))
	for _, e := range local {
		byID[e.ID] = e.Clone()
	}

	for _, remote := range decode(snap, &res) {
		cur, ok := byID[remote.ID]
		if !ok {
			if guard != nil && guard.Suppressed(remote) {
				res.Suppressed++
				continue
			}
			byID[remote.ID] = remote
			res.Inserted++
			continue
		}
		byID[remote.ID] = overlay(cur, remote)
		res.Confirmed++
	}

	res.Entries = make([]models.LogEntry, 0, len(byID))
	for _, e := range byID {
		res.Entries = append(res.Entries, e)
	}
	slices.SortFunc(res.Entries, models.Newer)
	return res
}

// decode turns the snapshot into at most one entry per id. When a station
// holds duplicates the enriched copy wins, then the smallest remote key.
func decode(snap models.Snapshot, res *Result) []models.LogEntry {
	byID := make(map[string]models.LogEntry, len(snap.Documents))
	order := make([]string, 0, len(snap.Documents))

	for _, doc := range snap.Documents {
		e, err := models.DecodeDocument(snap.StationID, doc)
		if err != nil {
			res.Dropped++
			continue
		}
		prev, seen := byID[e.ID]
		if !seen {
			order = append(order, e.ID)
			byID[e.ID] = e
			continue
		}
		if preferRemote(e, prev) {
			byID[e.ID] = e
		}
	}

	out := make([]models.LogEntry, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

func preferRemote(candidate, current models.LogEntry) bool {
	if candidate.IsEnriched() != current.IsEnriched() {
		return candidate.IsEnriched()
	}
	return candidate.RemoteKey < current.RemoteKey
}

func overlay(local, remote models.LogEntry) models.LogEntry {
	out := local.Clone()
	if remote.IsEnriched() {
		out = out.WithContent(remote.Content())
	}
	out.Sync = models.SyncSynced
	out.RemoteKey = remote.RemoteKey
	return out
}

// Day is one calendar day of the view.
type Day struct {
	Key     string
	Entries []models.LogEntry
}

// Partition groups entries (already newest first) by local calendar day,
// newest day first.
func Partition(entries []models.LogEntry, loc *time.Location) []Day {
	var days []Day
	index := make(map[string]int)
	for _, e := range entries {
		key := timex.DayKey(e.CreatedAt, loc)
		i, ok := index[key]
		if !ok {
			i = len(days)
			index[key] = i
			days = append(days, Day{Key: key})
		}
		days[i].Entries = append(days[i].Entries, e)
	}
	slices.SortStableFunc(days, func(a, b Day) int { return cmp.Compare(b.Key, a.Key) })
	return days
}

const (
	LabelGentle = "needs gentleness"
	LabelCalm   = "calm"
	LabelWarm   = "warm"
)

// Mood summarizes the mood levels of a set of entries. It is derived on
// demand and never stored.
type Mood struct {
	Mean    float64
	Average int
	Count   int
	Label   string
}

// CollectiveMood averages moodLevel over entries; ok is false when there is
// nothing to average.
func CollectiveMood(entries []models.LogEntry) (mood Mood, ok bool) {
	if len(entries) == 0 {
		return Mood{}, false
	}
	sum := 0
	for _, e := range entries {
		sum += e.MoodLevel
	}
	mean := float64(sum) / float64(len(entries))
	return Mood{
		Mean:    mean,
		Average: int(math.Round(mean)),
		Count:   len(entries),
		Label:   MoodLabel(mean),
	}, true
}

// MoodLabel bands an unrounded mean.
func MoodLabel(level float64) string {
	switch {
	case level <= 40:
		return LabelGentle
	case level <= 70:
		return LabelCalm
	default:
		return LabelWarm
	}
}
