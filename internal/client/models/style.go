package models

import "math/rand/v2"

// StyleHint picks one of the fixed visual treatments for a full card.
type StyleHint string

const (
	StyleDawn  StyleHint = "dawn"
	StyleTide  StyleHint = "tide"
	StyleEmber StyleHint = "ember"
	StyleMoss  StyleHint = "moss"
	StyleDusk  StyleHint = "dusk"
)

var StyleHints = []StyleHint{StyleDawn, StyleTide, StyleEmber, StyleMoss, StyleDusk}

func (h StyleHint) IsValid() bool {
	for _, s := range StyleHints {
		if s == h {
			return true
		}
	}
	return false
}

// RandomStyleHint is independent of entry content.
func RandomStyleHint() StyleHint {
	return StyleHints[rand.IntN(len(StyleHints))]
}
