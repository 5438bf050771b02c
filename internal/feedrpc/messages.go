// Package feedrpc is the wire contract of the StationFeed service shared by
// the remote store server and the client feed adapter.
//
// Messages are plain Go structs carried over gRPC with a JSON codec, so the
// document bodies stay schema-free on the wire and in storage.
package feedrpc

import (
	"encoding/json"
	"time"
)

// Document is one stored log entry. Body is the entry document exactly as
// the writer encoded it; RemoteKey is assigned by the store.
type Document struct {
	RemoteKey string          `json:"remoteKey"`
	StationID string          `json:"stationId"`
	Body      json.RawMessage `json:"body"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type WriteRequest struct {
	StationID string          `json:"stationId"`
	Body      json.RawMessage `json:"body"`
}

type WriteResponse struct {
	RemoteKey string `json:"remoteKey"`
}

// PatchRequest merges Patch into the stored body of RemoteKey. Only the
// top-level keys present in Patch are replaced.
type PatchRequest struct {
	StationID string          `json:"stationId"`
	RemoteKey string          `json:"remoteKey"`
	Patch     json.RawMessage `json:"patch"`
}

type PatchResponse struct{}

type DeleteRequest struct {
	StationID string `json:"stationId"`
	RemoteKey string `json:"remoteKey"`
}

type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// DeleteBeforeRequest removes every document of the station created at or
// before Cutoff.
type DeleteBeforeRequest struct {
	StationID string    `json:"stationId"`
	Cutoff    time.Time `json:"cutoff"`
}

type DeleteBeforeResponse struct {
	Deleted int64 `json:"deleted"`
}

type SubscribeRequest struct {
	StationID string `json:"stationId"`
}

// Snapshot carries the most recent documents of a station, newest first.
// Refresh marks a periodic re-push with no mutation behind it.
type Snapshot struct {
	StationID   string     `json:"stationId"`
	Documents   []Document `json:"documents"`
	Refresh     bool       `json:"refresh,omitempty"`
	GeneratedAt time.Time  `json:"generatedAt"`
}

// StationScoped is implemented by every request addressed to one station.
type StationScoped interface {
	GetStationID() string
}

func (r *WriteRequest) GetStationID() string        { return r.StationID }
func (r *PatchRequest) GetStationID() string        { return r.StationID }
func (r *DeleteRequest) GetStationID() string       { return r.StationID }
func (r *DeleteBeforeRequest) GetStationID() string { return r.StationID }
func (r *SubscribeRequest) GetStationID() string    { return r.StationID }
