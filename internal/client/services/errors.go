package services

import "errors"

var ErrClosed = errors.New("journal closed")
