package domain

import (
	"errors"
)

var (
	// ErrNotFound signals a missing photo record.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRecord signals a record that fails validation (e.g. empty id).
	ErrInvalidRecord = errors.New("invalid record")
	// ErrInvalidPrompt signals an empty query or an empty message list.
	ErrInvalidPrompt = errors.New("invalid prompt")

	// ErrIO signals a failed read or write of the record snapshot or photo bytes.
	ErrIO = errors.New("io error")
	// ErrParse signals malformed JSON or an unexpected document shape.
	ErrParse = errors.New("parse error")
	// ErrTransport signals a network, connection or upstream status failure.
	ErrTransport = errors.New("transport error")

	// ErrNoMatch marks a match that resolved to no known photo. It is an outcome,
	// not a fault: the match service never returns it, transports use it to
	// render "nothing found".
	ErrNoMatch = errors.New("no match")
)
