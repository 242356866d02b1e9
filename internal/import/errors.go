package importer

import (
	"fmt"
)

// AccountNotFoundError aborts a whole import before any item is processed.
type AccountNotFoundError struct {
	Username string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("account %q not found", e.Username)
}

// TextTooLongError is returned when a caption would need MaxChunks or more
// posts. Retrying with the same input gives the same result.
type TextTooLongError struct {
	Characters int
	MaxChars   int
	Segments   int
}

func (e *TextTooLongError) Error() string {
	return fmt.Sprintf(
		"text of %d characters needs %d posts at %d characters each (limit %d posts)",
		e.Characters,
		e.Segments,
		e.MaxChars,
		MaxChunks-1,
	)
}

type MediaReadError struct {
	URI string
	Err error
}

func (e *MediaReadError) Error() string {
	return fmt.Sprintf("failed to read media %q: %v", e.URI, e.Err)
}

func (e *MediaReadError) Unwrap() error {
	return e.Err
}

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ItemError attaches the source position and timestamp of the failing item.
type ItemError struct {
	Position          int
	CreationTimestamp int64
	Chunks            int
	Err               error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf(
		"item %d (created %d, %d chunks): %v",
		e.Position,
		e.CreationTimestamp,
		e.Chunks,
		e.Err,
	)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}
