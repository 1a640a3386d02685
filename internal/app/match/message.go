/*
Package match contains the core logic of the matching server: per-connection
sessions, the room registry, rooms with their membership and rating stores,
and the match computation that decides when a title has been agreed on.

This file defines the wire envelopes and payload shapes exchanged with
clients. Everything travels as JSON text frames with a "type" tag.
*/
package match

import (
	"encoding/json"

	"mediamatch/internal/app/media"
	"mediamatch/internal/pkg/errs"
)

// Inbound message types.
const (
	TypeLogin      = "login"
	TypeCreateRoom = "createRoom"
	TypeJoinRoom   = "joinRoom"
	TypeRate       = "rate"
	TypeSetLocale  = "setLocale"
)

// Outbound message types.
const (
	TypeConfig            = "config"
	TypeLoginSuccess      = "loginSuccess"
	TypeLoginError        = "loginError"
	TypeCreateRoomSuccess = "createRoomSuccess"
	TypeCreateRoomError   = "createRoomError"
	TypeJoinRoomSuccess   = "joinRoomSuccess"
	TypeJoinRoomError     = "joinRoomError"
	TypeTranslations      = "translations"
	TypeMatch             = "match"
)

// inboundEnvelope is the raw shape of every client frame.
type inboundEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// outboundEnvelope is the shape of every server frame.
type outboundEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// ConfigPayload is sent once, before any inbound traffic is processed.
type ConfigPayload struct {
	RequiresConfiguration bool `json:"requiresConfiguration"`
	RequirePlexTvLogin    bool `json:"requirePlexTvLogin"`
}

// LoginRequest carries the chosen user name and optional auth material.
type LoginRequest struct {
	UserName string      `json:"userName"`
	PlexAuth *media.Auth `json:"plexAuth,omitempty"`
}

// LoginSuccessPayload acknowledges a login. AvatarImage stays empty unless the
// auth material resolved; permissions are reserved.
type LoginSuccessPayload struct {
	AvatarImage string   `json:"avatarImage"`
	Permissions []string `json:"permissions"`
}

// CreateRoomRequest configures a new room.
type CreateRoomRequest struct {
	RoomName   string         `json:"roomName"`
	AccessMode string         `json:"accessMode,omitempty"`
	Password   string         `json:"password,omitempty"`
	Filters    []media.Filter `json:"filters,omitempty"`
}

// JoinRoomRequest names the room to join plus the access credential, if any.
// Password doubles as the invite key for link-only rooms.
type JoinRoomRequest struct {
	RoomName string `json:"roomName"`
	Password string `json:"password,omitempty"`
}

// RoomJoinedPayload answers a successful create or join. Media is the
// candidate list minus titles this user has already rated in the room.
// InviteKey is set only on createRoomSuccess for link-only rooms.
type RoomJoinedPayload struct {
	PreviousMatches []Match       `json:"previousMatches"`
	Media           []media.Media `json:"media"`
	InviteKey       string        `json:"inviteKey,omitempty"`
}

// RateRequest records one approve/reject decision.
type RateRequest struct {
	MediaID string `json:"mediaId"`
	Rating  string `json:"rating"`
}

// Rating string values.
const (
	RatingLike    = "like"
	RatingDislike = "dislike"
)

// SetLocaleRequest asks for the string table of a language.
type SetLocaleRequest struct {
	Language string `json:"language"`
}

// Match is a title the room has agreed on, with the users who liked it in the
// order they rated.
type Match struct {
	Media     media.Media `json:"media"`
	Users     []string    `json:"users"`
	MatchedAt int64       `json:"matchedAt"`
}

// ErrorPayload is the body of every *Error message.
type ErrorPayload struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// errorPayloadFor builds an ErrorPayload from any error via the taxonomy.
func errorPayloadFor(err error) ErrorPayload {
	perr := errs.Classify(err)
	return ErrorPayload{Name: perr.Name, Message: perr.Message}
}
