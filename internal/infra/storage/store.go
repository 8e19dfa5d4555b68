// Package storage provides the key/value persistence adapter for library documents.
package storage

import (
	"context"
)

// Document keys.
const (
	KeyTracks    = "tracks-local"
	KeyPlaylists = "playlists"
	KeyFavorites = "favorites-device" // Favorite ids of tracks not in KeyTracks
)

// Store is a key/value store of JSON documents.
type Store interface {
	// Get returns the document for key. ok is false when the key was never written.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	// Set replaces the document for key.
	Set(ctx context.Context, key string, data []byte) error
	// Close releases the backend.
	Close() error
}
