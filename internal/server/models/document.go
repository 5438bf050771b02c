// Package models holds the rows the remote store persists.
package models

import (
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/feedrpc"
)

// Document is one stored entry body. EntryID and CreatedAt are copied out
// of Body so the store can dedupe and order without parsing JSON.
type Document struct {
	RemoteKey string          `db:"remote_key"`
	StationID string          `db:"station_id"`
	EntryID   string          `db:"entry_id"`
	CreatedAt time.Time       `db:"created_at"`
	Body      json.RawMessage `db:"body"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (d *Document) ToWire() feedrpc.Document {
	return feedrpc.Document{
		RemoteKey: d.RemoteKey,
		StationID: d.StationID,
		Body:      d.Body,
		UpdatedAt: d.UpdatedAt,
	}
}
