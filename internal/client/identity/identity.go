// Package identity allocates entry ids and per-session attribution.
//
// Ids are UUIDv7: they are unique without coordination, usable before any
// remote round trip, and sort roughly by creation time.
package identity

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/moodlog/internal/client/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// NewID returns a fresh entry id.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

var palette = []string{
	"#7FB3D5", "#F5B7B1", "#A9DFBF", "#F9E79F",
	"#D7BDE2", "#FAD7A0", "#AED6F1", "#A3E4D7",
}

// Session is the ephemeral attribution of one running client. It is not an
// identity: a restarted client gets a new signature.
type Session struct {
	author models.Author
}

func NewSession(deviceType string) Session {
	seed := uuid.New()
	return NewSessionFromSeed(seed[:], deviceType)
}

// NewSessionFromSeed derives signature and color from seed.
func NewSessionFromSeed(seed []byte, deviceType string) Session {
	sum := blake2b.Sum256(seed)
	return Session{author: models.Author{
		Signature:  fmt.Sprintf("Visitor-%s", strings.ToUpper(hex.EncodeToString(sum[:2]))),
		Color:      palette[int(sum[2])%len(palette)],
		DeviceType: deviceType,
	}}
}

func (s Session) Author() models.Author {
	return s.author
}
