/*
Package errs defines the protocol-visible error taxonomy for the matching server.

Every failure a client may observe is expressed as a *ProtocolError carrying a
stable name drawn from a small closed set. Components below the session layer
return these as ordinary Go errors; only the session translates them into wire
messages.
*/
package errs

import (
	"errors"
	"fmt"
)

// Stable error names understood by clients. These are part of the wire contract
// and must never be renamed.
const (
	NameMalformedMessage  = "MalformedMessage"
	NameNotLoggedIn       = "NotLoggedInError"
	NameRoomExists        = "RoomExistsError"
	NameRoomNotFound      = "RoomNotFoundError"
	NameAccessDenied      = "AccessDeniedError"
	NameUserAlreadyJoined = "UserAlreadyJoinedError"
	NameUnknown           = "UnknownError"
)

// ProtocolError is the error type surfaced to clients.
// Name identifies the error kind; Message is a client-friendly description.
type ProtocolError struct {
	Name    string
	Message string
}

// Error implements the standard error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// MalformedMessage reports a structurally invalid client message.
func MalformedMessage(detail string) *ProtocolError {
	return &ProtocolError{Name: NameMalformedMessage, Message: detail}
}

// NotLoggedIn reports an action that requires a prior login.
func NotLoggedIn(action string) *ProtocolError {
	return &ProtocolError{
		Name:    NameNotLoggedIn,
		Message: fmt.Sprintf("You must be logged in to %s.", action),
	}
}

// RoomExists reports a create for a room name that is already registered.
func RoomExists(name string) *ProtocolError {
	return &ProtocolError{
		Name:    NameRoomExists,
		Message: fmt.Sprintf("A room named %q already exists.", name),
	}
}

// RoomNotFound reports a lookup for an unknown room name.
func RoomNotFound(name string) *ProtocolError {
	return &ProtocolError{
		Name:    NameRoomNotFound,
		Message: fmt.Sprintf("There is no room named %q.", name),
	}
}

// AccessDenied reports a join rejected by the room's access rule.
func AccessDenied(name string) *ProtocolError {
	return &ProtocolError{
		Name:    NameAccessDenied,
		Message: fmt.Sprintf("Access to room %q was denied.", name),
	}
}

// UserAlreadyJoined reports a join by a user who is already a member.
func UserAlreadyJoined(user, room string) *ProtocolError {
	return &ProtocolError{
		Name:    NameUserAlreadyJoined,
		Message: fmt.Sprintf("%q has already joined room %q.", user, room),
	}
}

// Unknown wraps any unclassified failure. Internal detail stays out of the
// client-visible message; callers are expected to log the underlying error.
func Unknown() *ProtocolError {
	return &ProtocolError{
		Name:    NameUnknown,
		Message: "Something went wrong. Please try again.",
	}
}

// Classify maps an arbitrary error onto the protocol taxonomy. Errors that are
// already a *ProtocolError pass through unchanged; everything else collapses
// to UnknownError.
func Classify(err error) *ProtocolError {
	var perr *ProtocolError
	if errors.As(err, &perr) {
		return perr
	}
	return Unknown()
}
