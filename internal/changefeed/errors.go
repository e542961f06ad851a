package changefeed

import "errors"

// ErrClosed is returned when subscribing to a closed feed.
var ErrClosed = errors.New("changefeed: closed")
