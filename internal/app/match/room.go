/*
Package match, room.

A Room is one shared matching context: its configuration, the membership map
from user name to live session, and the rating ledger. All mutation of a room
goes through its own mutex; different rooms never contend with each other.
*/
package match

import (
	"sync"

	"github.com/rs/zerolog"

	"mediamatch/internal/app/media"
	"mediamatch/internal/pkg/auth/roomkey"
	"mediamatch/internal/pkg/errs"
	"mediamatch/internal/pkg/logx"
)

// AccessMode selects the access rule applied when a user joins a room.
type AccessMode string

const (
	// AccessOpen lets anyone join.
	AccessOpen AccessMode = "open"

	// AccessPassword requires the room password as credential.
	AccessPassword AccessMode = "password"

	// AccessLink requires a signed invite key minted at creation time.
	AccessLink AccessMode = "link"
)

// RoomConfig is the creation-time configuration of a room.
type RoomConfig struct {
	Name     string
	Access   AccessMode
	Password string
	Filters  []media.Filter
}

// Member is a room's handle on a connected session: just enough to deliver
// outbound messages. Deliver must never block; a failed delivery marks the
// member as stale and is the caller's signal to skip it.
type Member interface {
	Deliver(msgType string, payload any) error
}

// Room is one active matching session.
type Room struct {
	// Name is the room's registry key, unique for the process lifetime.
	Name string

	access    AccessMode
	password  string
	inviteKey string

	mu          sync.Mutex
	members     map[string]Member
	ledger      *ratingLedger
	catalog     []media.Media
	catalogByID map[string]media.Media

	logger zerolog.Logger
}

// newRoom builds a room over an already-fetched candidate list. For link-only
// rooms an invite key is minted immediately so the creator can share it.
func newRoom(cfg RoomConfig, items []media.Media, keys *roomkey.Issuer) (*Room, error) {
	r := &Room{
		Name:        cfg.Name,
		access:      cfg.Access,
		password:    cfg.Password,
		members:     make(map[string]Member),
		ledger:      newRatingLedger(),
		catalog:     items,
		catalogByID: make(map[string]media.Media, len(items)),
		logger:      logx.Logger().With().Str("room", cfg.Name).Logger(),
	}
	if r.access == "" {
		r.access = AccessOpen
	}

	for _, m := range items {
		r.catalogByID[m.ID] = m
	}

	if r.access == AccessLink {
		key, err := keys.Mint(cfg.Name)
		if err != nil {
			return nil, err
		}
		r.inviteKey = key
	}

	return r, nil
}

// authorize applies the room's access rule to a join credential.
func (r *Room) authorize(credential string, keys *roomkey.Issuer) error {
	switch r.access {
	case AccessPassword:
		if credential == "" || credential != r.password {
			return errs.AccessDenied(r.Name)
		}
	case AccessLink:
		if err := keys.Validate(credential, r.Name); err != nil {
			return errs.AccessDenied(r.Name)
		}
	}
	return nil
}

// InviteKey returns the shareable key of a link-only room, empty otherwise.
func (r *Room) InviteKey() string {
	return r.inviteKey
}

// AddMember registers a session under userName, overwriting any prior entry so
// a reconnect under the same identity displaces the stale handle.
func (r *Room) AddMember(userName string, m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, existed := r.members[userName]; existed {
		r.logger.Info().Str("user", userName).Msg("Member handle replaced by new connection")
	}
	r.members[userName] = m
}

// RemoveMember drops userName's membership. Removing an absent name is a
// no-op, which tolerates duplicate close events.
func (r *Room) RemoveMember(userName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.members, userName)
}

// HasMember reports whether userName is currently a member.
func (r *Room) HasMember(userName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.members[userName]
	return ok
}

// MemberCount returns the current membership size.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.members)
}

// StoreRating records userName's decision on mediaID. If the rating completes
// a new match, the match is broadcast to every current member exactly once.
// Ratings for titles outside the room's catalog are dropped with a warning.
func (r *Room) StoreRating(userName, mediaID string, liked bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, known := r.catalogByID[mediaID]
	if !known {
		r.logger.Warn().
			Str("user", userName).
			Str("media_id", mediaID).
			Msg("Rating for a title outside the room catalog, ignoring")
		return
	}

	record := r.ledger.store(userName, mediaID, liked)
	if record == nil {
		return
	}

	payload := Match{
		Media:     item,
		Users:     record.users,
		MatchedAt: record.matchedAt.UnixMilli(),
	}

	r.logger.Info().
		Str("media_id", mediaID).
		Strs("users", record.users).
		Msg("New match")

	for name, member := range r.members {
		if err := member.Deliver(TypeMatch, payload); err != nil {
			r.logger.Warn().
				Str("user", name).
				Err(err).
				Msg("Skipping stale member during match broadcast")
		}
	}
}

// Matches returns the room's matched titles for userName, most recent first.
// includeOwn=false hides matches completed by the user's own rating.
func (r *Room) Matches(userName string, includeOwn bool) []Match {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := r.ledger.matches(userName, includeOwn)

	out := make([]Match, 0, len(records))
	for _, record := range records {
		item, ok := r.catalogByID[record.mediaID]
		if !ok {
			continue
		}
		out = append(out, Match{
			Media:     item,
			Users:     record.users,
			MatchedAt: record.matchedAt.UnixMilli(),
		})
	}
	return out
}

// MediaForUser returns the room's candidate list minus titles userName has
// already rated, preserving catalog order.
func (r *Room) MediaForUser(userName string) []media.Media {
	r.mu.Lock()
	defer r.mu.Unlock()

	rated := r.ledger.ratedBy(userName)

	out := make([]media.Media, 0, len(r.catalog))
	for _, m := range r.catalog {
		if _, seen := rated[m.ID]; seen {
			continue
		}
		out = append(out, m)
	}
	return out
}
