// Package models defines the community log entry and the values that travel
// between the local cache, the remote feed and the enrichment pipeline.
package models

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/common"
)

// ContentState tags whether an entry still carries placeholder content.
type ContentState string

const (
	StatePlaceholder ContentState = "placeholder"
	StateEnriched    ContentState = "enriched"
)

func (s ContentState) IsValid() bool {
	return s == StatePlaceholder || s == StateEnriched
}

// SyncState records whether the remote store has confirmed an entry.
// It is local bookkeeping and never sent to the remote store.
type SyncState string

const (
	SyncLocalOnly SyncState = "local_only"
	SyncSynced    SyncState = "synced"
)

const (
	MoodMin = 0
	MoodMax = 100

	PlaceholderTheme = "sensing…"
	PlaceholderTag   = "#processing"
)

// FullCard is the expanded content shown once an entry is enriched.
type FullCard struct {
	Quote      string    `json:"quote,omitempty"`
	LuckyItem  string    `json:"luckyItem"`
	Relaxation string    `json:"relaxation"`
	ImageRef   string    `json:"imageRef,omitempty"`
	StyleHint  StyleHint `json:"styleHint"`
}

// Author is the per-session attribution stamped on entries at creation.
type Author struct {
	Signature  string
	Color      string
	DeviceType string
}

// LogEntry is one reflection in a station's community log.
//
// ID, StationID, MoodLevel, Text, Zone, CreatedAt and the author fields never
// change after creation. Content fields (State, Theme, Tags, ReplyMessage,
// FullCard) move from placeholder to enriched exactly once. Sync and
// RemoteKey are local bookkeeping.
type LogEntry struct {
	ID              string       `json:"id"`
	StationID       string       `json:"stationId"`
	MoodLevel       int          `json:"moodLevel"`
	Text            string       `json:"text"`
	Zone            string       `json:"zone,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	State           ContentState `json:"state"`
	Theme           string       `json:"theme"`
	Tags            []string     `json:"tags"`
	ReplyMessage    string       `json:"replyMessage"`
	FullCard        *FullCard    `json:"fullCard,omitempty"`
	AuthorSignature string       `json:"authorSignature"`
	AuthorColor     string       `json:"authorColor"`
	DeviceType      string       `json:"deviceType,omitempty"`

	Sync      SyncState `json:"sync,omitempty"`
	RemoteKey string    `json:"remoteKey,omitempty"`
}

// NewPlaceholder builds the optimistic entry committed before generation runs.
func NewPlaceholder(id, stationID string, d Draft, author Author, now time.Time) LogEntry {
	return LogEntry{
		ID:              id,
		StationID:       stationID,
		MoodLevel:       d.MoodLevel,
		Text:            strings.TrimSpace(d.Text),
		Zone:            d.Zone,
		CreatedAt:       now.UTC(),
		State:           StatePlaceholder,
		Theme:           PlaceholderTheme,
		Tags:            []string{PlaceholderTag},
		AuthorSignature: author.Signature,
		AuthorColor:     author.Color,
		DeviceType:      author.DeviceType,
		Sync:            SyncLocalOnly,
	}
}

func (e LogEntry) IsEnriched() bool {
	return e.State == StateEnriched
}

// Validate reports structural problems that make an entry unusable.
func (e LogEntry) Validate() error {
	switch {
	case e.ID == "":
		return fmt.Errorf("%w: missing id", common.ErrInvalidEntry)
	case e.StationID == "":
		return fmt.Errorf("%w: missing station", common.ErrInvalidEntry)
	case e.CreatedAt.IsZero():
		return fmt.Errorf("%w: missing createdAt", common.ErrInvalidEntry)
	case e.MoodLevel < MoodMin || e.MoodLevel > MoodMax:
		return fmt.Errorf("%w: mood %d out of range", common.ErrInvalidEntry, e.MoodLevel)
	case !e.State.IsValid():
		return fmt.Errorf("%w: unknown state %q", common.ErrInvalidEntry, e.State)
	}
	return nil
}

// Content extracts the mutable part of the entry.
func (e LogEntry) Content() ContentPatch {
	return ContentPatch{
		State:        e.State,
		Theme:        e.Theme,
		Tags:         slices.Clone(e.Tags),
		ReplyMessage: e.ReplyMessage,
		FullCard:     e.FullCard.clone(),
	}
}

// WithContent returns a copy of e carrying p's content. Identity and
// immutable fields are untouched.
func (e LogEntry) WithContent(p ContentPatch) LogEntry {
	out := e.Clone()
	out.State = p.State
	out.Theme = p.Theme
	out.Tags = slices.Clone(p.Tags)
	out.ReplyMessage = p.ReplyMessage
	out.FullCard = p.FullCard.clone()
	return out
}

// Clone returns a deep copy.
func (e LogEntry) Clone() LogEntry {
	out := e
	out.Tags = slices.Clone(e.Tags)
	out.FullCard = e.FullCard.clone()
	return out
}

// Equal compares every field, bookkeeping included.
func (e LogEntry) Equal(o LogEntry) bool {
	return e.ID == o.ID &&
		e.StationID == o.StationID &&
		e.MoodLevel == o.MoodLevel &&
		e.Text == o.Text &&
		e.Zone == o.Zone &&
		e.CreatedAt.Equal(o.CreatedAt) &&
		e.State == o.State &&
		e.Theme == o.Theme &&
		slices.Equal(e.Tags, o.Tags) &&
		e.ReplyMessage == o.ReplyMessage &&
		e.FullCard.equal(o.FullCard) &&
		e.AuthorSignature == o.AuthorSignature &&
		e.AuthorColor == o.AuthorColor &&
		e.DeviceType == o.DeviceType &&
		e.Sync == o.Sync &&
		e.RemoteKey == o.RemoteKey
}

// Newer orders entries by createdAt descending, id descending on ties.
func Newer(a, b LogEntry) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(b.ID, a.ID)
}

func (c *FullCard) clone() *FullCard {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}

func (c *FullCard) equal(o *FullCard) bool {
	if c == nil || o == nil {
		return c == o
	}
	return *c == *o
}
