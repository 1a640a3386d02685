/*
Package match, registry.

The registry is the process-wide directory of active rooms by name. It starts
empty, and rooms persist for the process lifetime once created; there is no
explicit teardown beyond process exit. Two-level locking applies: the registry
mutex guards only the name table, each room's own mutex guards in-room state.
*/
package match

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"mediamatch/internal/app/media"
	"mediamatch/internal/pkg/auth/roomkey"
	"mediamatch/internal/pkg/errs"
	"mediamatch/internal/pkg/logx"
)

// Registry tracks every active room and enforces creation and access rules.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	catalog media.CatalogProvider
	keys    *roomkey.Issuer

	logger zerolog.Logger
}

// NewRegistry returns an empty registry. The catalog provider supplies each
// new room's candidate list; the key issuer backs link-only access.
func NewRegistry(catalog media.CatalogProvider, keys *roomkey.Issuer) *Registry {
	return &Registry{
		rooms:   make(map[string]*Room),
		catalog: catalog,
		keys:    keys,
		logger:  logx.Logger().With().Str("component", "registry").Logger(),
	}
}

// Create builds and registers a new room. It fails with RoomExistsError when
// the name is taken. The catalog fetch happens before the name is claimed, so
// of two concurrent creates for one name exactly one wins and the loser sees
// RoomExistsError.
func (g *Registry) Create(ctx context.Context, cfg RoomConfig) (*Room, error) {
	if cfg.Name == "" {
		return nil, errs.MalformedMessage("A room needs a non-empty name.")
	}

	// Cheap pre-check so an obviously taken name skips the catalog fetch.
	g.mu.RLock()
	_, taken := g.rooms[cfg.Name]
	g.mu.RUnlock()
	if taken {
		return nil, errs.RoomExists(cfg.Name)
	}

	items, err := g.catalog.MediaForRoom(ctx, cfg.Filters)
	if err != nil {
		return nil, fmt.Errorf("catalog fetch for room %q: %w", cfg.Name, err)
	}

	room, err := newRoom(cfg, items, g.keys)
	if err != nil {
		return nil, fmt.Errorf("room %q setup: %w", cfg.Name, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, taken := g.rooms[cfg.Name]; taken {
		return nil, errs.RoomExists(cfg.Name)
	}
	g.rooms[cfg.Name] = room

	g.logger.Info().
		Str("room", cfg.Name).
		Str("access", string(room.access)).
		Int("catalog_size", len(items)).
		Msg("Room created")

	return room, nil
}

// Get resolves a room for a joining user, applying the room's access rule and
// rejecting users who are already members.
func (g *Registry) Get(name, requestingUser, credential string) (*Room, error) {
	g.mu.RLock()
	room, ok := g.rooms[name]
	g.mu.RUnlock()

	if !ok {
		return nil, errs.RoomNotFound(name)
	}

	if err := room.authorize(credential, g.keys); err != nil {
		return nil, err
	}

	if room.HasMember(requestingUser) {
		return nil, errs.UserAlreadyJoined(requestingUser, name)
	}

	return room, nil
}

// RoomCount returns the number of active rooms.
func (g *Registry) RoomCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.rooms)
}
