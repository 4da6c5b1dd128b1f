package fake

import "errors"

// ErrNoResponse is returned for calls to a path with no canned response.
var ErrNoResponse = errors.New("fake: no canned response")
