package feedrpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"
)

var ErrMalformedBody = errors.New("malformed document body")

// Meta is the part of a document body the store indexes on.
type Meta struct {
	EntryID   string
	StationID string
	CreatedAt time.Time
}

// ReadMeta extracts id, stationId and createdAt from a document body.
// StationID may be empty in bodies written by older clients.
func ReadMeta(body json.RawMessage) (Meta, error) {
	var m struct {
		ID        string    `json:"id"`
		StationID string    `json:"stationId"`
		CreatedAt time.Time `json:"createdAt"`
	}
	if err := json.Unmarshal(body, &m); err != nil {
		return Meta{}, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if m.ID == "" {
		return Meta{}, fmt.Errorf("%w: missing id", ErrMalformedBody)
	}
	if m.CreatedAt.IsZero() {
		return Meta{}, fmt.Errorf("%w: missing createdAt", ErrMalformedBody)
	}
	return Meta{EntryID: m.ID, StationID: m.StationID, CreatedAt: m.CreatedAt.UTC()}, nil
}

// immutableKeys may not be changed by a patch.
var immutableKeys = []string{"id", "stationId", "createdAt", "moodLevel", "text", "authorSignature"}

// MergeBody replaces the top-level keys of body that appear in patch.
// Identity keys present in patch are ignored.
func MergeBody(body, patch json.RawMessage) (json.RawMessage, error) {
	var dst, src map[string]json.RawMessage
	if err := json.Unmarshal(body, &dst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if err := json.Unmarshal(patch, &src); err != nil {
		return nil, fmt.Errorf("%w: patch: %v", ErrMalformedBody, err)
	}
	for _, k := range immutableKeys {
		delete(src, k)
	}
	maps.Copy(dst, src)
	out, err := json.Marshal(dst)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return out, nil
}

// StripImmutable removes identity keys from patch so it can be applied with
// a plain key merge.
func StripImmutable(patch json.RawMessage) (json.RawMessage, error) {
	var src map[string]json.RawMessage
	if err := json.Unmarshal(patch, &src); err != nil {
		return nil, fmt.Errorf("%w: patch: %v", ErrMalformedBody, err)
	}
	if src == nil {
		return nil, fmt.Errorf("%w: patch is not an object", ErrMalformedBody)
	}
	for _, k := range immutableKeys {
		delete(src, k)
	}
	out, err := json.Marshal(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return out, nil
}
