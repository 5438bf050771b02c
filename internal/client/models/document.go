package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/common"
)

// ContentPatch carries only the mutable content of an entry. It is what the
// pipeline pushes to the remote store after generation completes.
type ContentPatch struct {
	State        ContentState `json:"state"`
	Theme        string       `json:"theme"`
	Tags         []string     `json:"tags"`
	ReplyMessage string       `json:"replyMessage"`
	FullCard     *FullCard    `json:"fullCard,omitempty"`
}

// RemoteDocument is a stored document as the remote feed reports it.
type RemoteDocument struct {
	RemoteKey string
	Body      json.RawMessage
}

// Snapshot is one push from the remote feed: the most recent documents of a
// station, newest first.
type Snapshot struct {
	StationID  string
	Documents  []RemoteDocument
	ReceivedAt time.Time
}

// EncodeDocument renders the body stored remotely for e. Local bookkeeping
// is stripped.
func EncodeDocument(e LogEntry) (json.RawMessage, error) {
	body := e.Clone()
	body.Sync = ""
	body.RemoteKey = ""
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode document %s: %w", e.ID, err)
	}
	return b, nil
}

// DecodeDocument turns a remote document of stationID into a synced entry.
func DecodeDocument(stationID string, doc RemoteDocument) (LogEntry, error) {
	var e LogEntry
	if err := json.Unmarshal(doc.Body, &e); err != nil {
		return LogEntry{}, fmt.Errorf("%w: %v", common.ErrInvalidDocument, err)
	}

	if e.StationID == "" {
		e.StationID = stationID
	}
	if e.StationID != stationID {
		return LogEntry{}, fmt.Errorf("%w: document %s belongs to %q", common.ErrStationMismatch, e.ID, e.StationID)
	}

	if e.State == "" {
		// Documents written before the explicit state tag existed.
		if e.FullCard != nil && e.Theme != PlaceholderTheme {
			e.State = StateEnriched
		} else {
			e.State = StatePlaceholder
		}
	}

	e.Sync = SyncSynced
	e.RemoteKey = doc.RemoteKey

	if err := e.Validate(); err != nil {
		return LogEntry{}, fmt.Errorf("%w: %v", common.ErrInvalidDocument, err)
	}
	return e, nil
}
