package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrDimension    = errors.New("vector dimension mismatch")
	ErrWSDisconnect = errors.New("websocket disconnected")
)
