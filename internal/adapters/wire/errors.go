package wire

import "errors"

// ErrMalformedChange reports a change-feed message without a usable row.
var ErrMalformedChange = errors.New("malformed change record")
