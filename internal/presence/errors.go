package presence

import "errors"

var (
	ErrAlreadyJoined = errors.New("connection already joined a session")
	ErrNotJoined     = errors.New("connection has not joined a session")
)
