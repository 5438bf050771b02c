package feed

import "errors"

var (
	errOffline = errors.New("feed offline")
	errStation = errors.New("document belongs to another station")

	errStreamEnded = errors.New("stream ended")
)
