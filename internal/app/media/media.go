/*
Package media defines the catalog data model and the contracts of the external
collaborators the matching core depends on: the identity provider that resolves
auth material into a profile, and the catalog provider that supplies candidate
titles for a room.
*/
package media

import "context"

// Media describes one candidate title as it travels over the wire.
type Media struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Year          int      `json:"year"`
	Duration      int      `json:"duration"`
	Rating        float64  `json:"rating"`
	ContentRating string   `json:"contentRating,omitempty"`
	Genres        []string `json:"genres"`
	Description   string   `json:"description"`
	PosterURL     string   `json:"posterUrl"`
	LinkURL       string   `json:"linkUrl"`
	Type          string   `json:"type"`
}

// Auth is the opaque credential a client submits at login. It is only ever
// forwarded to the identity provider, never interpreted by the core.
type Auth struct {
	ClientID  string `json:"clientId"`
	PlexToken string `json:"plexToken"`
}

// Profile is the external identity attached to a session after a successful
// auth resolution.
type Profile struct {
	DisplayName string
	AvatarURL   string
}

// IdentityProvider resolves auth material against an external account service.
// Failures mean invalid or expired credentials; callers degrade to anonymous.
type IdentityProvider interface {
	ResolveUser(ctx context.Context, auth Auth) (*Profile, error)
}

// CatalogProvider supplies the candidate titles for a room, already narrowed
// by the room's filters. Per-user narrowing (hiding titles a user has rated)
// is the room's job, not the provider's.
type CatalogProvider interface {
	MediaForRoom(ctx context.Context, filters []Filter) ([]Media, error)
}
