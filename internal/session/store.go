// Package session keeps the palette extracted from a chat's first image until
// the second image arrives to consume it.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/non4ik-sdk/palettron/internal/colour"
)

// DefaultTTL is how long a pending palette is kept before it expires.
const DefaultTTL = time.Hour

var (
	// ErrNotFound is returned when a session has no pending palette.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidID is returned for an empty session ID.
	ErrInvalidID = errors.New("invalid session ID")

	// ErrInvalidPalette is returned when a nil or empty palette is stored.
	ErrInvalidPalette = errors.New("invalid palette")
)

// Store holds at most one pending palette per session.
type Store interface {
	// Put stores p as the session's pending palette, replacing any previous one.
	Put(ctx context.Context, id string, p *colour.Palette) error

	// Take returns the pending palette and removes it in one step.
	// Returns ErrNotFound if the session has none.
	Take(ctx context.Context, id string) (*colour.Palette, error)

	// Peek returns the pending palette without consuming it.
	// Returns ErrNotFound if the session has none.
	Peek(ctx context.Context, id string) (*colour.Palette, error)

	// Clear drops any pending palette. Clearing an unknown session is not an error.
	Clear(ctx context.Context, id string) error
}

func validate(id string, p *colour.Palette) error {
	if id == "" {
		return ErrInvalidID
	}
	if p.Len() == 0 {
		return ErrInvalidPalette
	}
	return nil
}
