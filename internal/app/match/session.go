/*
Package match, session.

A Session is the server-side state for one live WebSocket connection: the
user's identity, auth profile, locale, and current room, plus the protocol
loop that decodes inbound frames and dispatches them. Reads and writes are
split into pumps in the usual gorilla style; all protocol handling runs on the
read pump goroutine, so session fields need no lock of their own.
*/
package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mediamatch/internal/app/i18n"
	"mediamatch/internal/app/media"
	"mediamatch/internal/pkg/errs"
	"mediamatch/internal/pkg/logx"
)

const (
	// timeout for writing a frame to the connection.
	writeWait = 10 * time.Second

	// maximum wait for a Pong before the connection is considered dead.
	pongWait = 60 * time.Second

	// ping frequency; must be under pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maximum inbound frame size in bytes.
	maxMessageSize = 8192

	// outbound queue capacity per session.
	sendQueueSize = 256

	// bound on external collaborator calls (auth resolution). Failure there
	// degrades the request, never blocks the session.
	externalCallTimeout = 10 * time.Second
)

// errSessionGone is returned by Deliver once the session is shutting down or
// its outbound queue is full. Callers treat it as "stale member, skip".
var errSessionGone = errors.New("session is closed or its send queue is full")

// SessionConfig carries the flags announced in the initial config message.
type SessionConfig struct {
	RequiresConfiguration bool
	RequirePlexTvLogin    bool
}

// Session binds one connection to the room registry and the external
// collaborators.
type Session struct {
	conn       *websocket.Conn
	registry   *Registry
	identity   media.IdentityProvider
	translator *i18n.Translator
	cfg        SessionConfig

	// Protocol state, owned by the read pump goroutine.
	userName string
	plexAuth *media.Auth
	profile  *media.Profile
	locale   string
	room     *Room

	send     chan []byte
	done     chan struct{}
	finished chan struct{}

	logger zerolog.Logger
}

// NewSession wraps an accepted connection. Run must be called to start the
// protocol loop.
func NewSession(conn *websocket.Conn, registry *Registry, identity media.IdentityProvider, translator *i18n.Translator, cfg SessionConfig) *Session {
	return &Session{
		conn:       conn,
		registry:   registry,
		identity:   identity,
		translator: translator,
		cfg:        cfg,
		send:       make(chan []byte, sendQueueSize),
		done:       make(chan struct{}),
		finished:   make(chan struct{}),
		logger:     logx.Logger().With().Str("remote", conn.RemoteAddr().String()).Logger(),
	}
}

// Run sends the config message, starts the write pump, and blocks on the read
// pump until the connection closes. On return the session has fully cleaned up:
// room membership removed, pumps stopped, Finished closed.
func (s *Session) Run() {
	go s.writePump()

	s.reply(TypeConfig, ConfigPayload{
		RequiresConfiguration: s.cfg.RequiresConfiguration,
		RequirePlexTvLogin:    s.cfg.RequirePlexTvLogin,
	})

	s.readPump()
}

// Finished is closed once the session has fully terminated, for callers that
// need to await complete teardown (e.g. graceful shutdown).
func (s *Session) Finished() <-chan struct{} {
	return s.finished
}

// Close aborts the session from outside the read pump by closing the
// underlying connection; the read pump then unwinds and cleans up.
func (s *Session) Close() {
	if err := s.conn.Close(); err != nil {
		s.logger.Info().Err(err).Msg("Connection close on abort")
	}
}

// Deliver implements Member: it queues an outbound message without blocking.
func (s *Session) Deliver(msgType string, payload any) error {
	frame, err := json.Marshal(outboundEnvelope{Type: msgType, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", msgType, err)
	}

	select {
	case <-s.done:
		return errSessionGone
	default:
	}

	select {
	case s.send <- frame:
		return nil
	case <-s.done:
		return errSessionGone
	default:
		return errSessionGone
	}
}

// reply queues a message for this session's own client. Sends to an already
// closed connection are logged, never fatal.
func (s *Session) reply(msgType string, payload any) {
	if err := s.Deliver(msgType, payload); err != nil {
		s.logger.Warn().Str("msg_type", msgType).Err(err).
			Msg("Tried to send a message to a disconnected client")
	}
}

// replyError translates err through the taxonomy and sends it under msgType.
// Unclassified failures are logged with full detail; the client only ever
// sees the generic UnknownError text.
func (s *Session) replyError(msgType string, err error) {
	perr := errs.Classify(err)
	if perr.Name == errs.NameUnknown {
		s.logger.Error().Err(err).Str("msg_type", msgType).Msg("Internal error surfaced as UnknownError")
	}
	s.reply(msgType, ErrorPayload{Name: perr.Name, Message: perr.Message})
}

// readPump consumes inbound frames strictly in arrival order and performs all
// cleanup when the connection ends, normally or not.
func (s *Session) readPump() {
	defer s.cleanup()

	s.conn.SetReadLimit(maxMessageSize)

	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Info().Err(err).Msg("Connection ended unexpectedly")
			}
			return
		}

		s.dispatch(frame)
	}
}

// dispatch decodes one inbound frame and routes it by type tag. Decode
// failures and unknown tags are logged and skipped; the connection stays open.
func (s *Session) dispatch(frame []byte) {
	var msg inboundEnvelope
	if err := json.Unmarshal(frame, &msg); err != nil {
		s.logger.Warn().Err(err).Bytes("frame", frame).Msg("Client sent invalid JSON")
		return
	}

	switch msg.Type {
	case TypeLogin:
		s.handleLogin(msg.Payload)
	case TypeCreateRoom:
		s.handleCreateRoom(msg.Payload)
	case TypeJoinRoom:
		s.handleJoinRoom(msg.Payload)
	case TypeRate:
		s.handleRate(msg.Payload)
	case TypeSetLocale:
		s.handleSetLocale(msg.Payload)
	default:
		s.logger.Info().Str("msg_type", msg.Type).Msg("Unhandled message type")
	}
}

// handleLogin adopts a user name and optionally resolves auth material into a
// profile. Re-login under a different name first removes the old name's room
// membership; the session drops back to the logged-in-without-room state.
func (s *Session) handleLogin(payload json.RawMessage) {
	var req LoginRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.UserName == "" {
		s.reply(TypeLoginError, ErrorPayload{
			Name:    errs.NameMalformedMessage,
			Message: "The login message was not formed correctly.",
		})
		return
	}

	if s.userName != "" && req.UserName != s.userName {
		s.logger.Debug().Str("old", s.userName).Str("new", req.UserName).Msg("Re-login, leaving current room")
		s.leaveRoom()
	}

	s.userName = req.UserName
	s.logger = s.logger.With().Str("user", s.userName).Logger()

	success := LoginSuccessPayload{
		AvatarImage: "",
		Permissions: []string{},
	}

	if req.PlexAuth != nil {
		ctx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
		profile, err := s.identity.ResolveUser(ctx, *req.PlexAuth)
		cancel()

		if err != nil {
			// Login still succeeds; the session just stays anonymous.
			s.logger.Error().Err(err).Msg("Auth material rejected, continuing without a profile")
		} else {
			s.plexAuth = req.PlexAuth
			s.profile = profile
			success.AvatarImage = profile.AvatarURL
		}
	}

	s.reply(TypeLoginSuccess, success)
}

// handleCreateRoom creates a room and joins it as first member. Every failure
// kind is answered: known kinds under their own name, everything else as
// UnknownError.
func (s *Session) handleCreateRoom(payload json.RawMessage) {
	if s.userName == "" {
		s.replyError(TypeCreateRoomError, errs.NotLoggedIn("create a room"))
		return
	}

	var req CreateRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.replyError(TypeCreateRoomError, errs.MalformedMessage("The createRoom message was not formed correctly."))
		return
	}

	cfg := RoomConfig{
		Name:     req.RoomName,
		Access:   AccessMode(req.AccessMode),
		Password: req.Password,
		Filters:  req.Filters,
	}
	// A password with no explicit mode means password protection.
	if cfg.Access == "" && cfg.Password != "" {
		cfg.Access = AccessPassword
	}

	ctx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
	room, err := s.registry.Create(ctx, cfg)
	cancel()

	if err != nil {
		s.replyError(TypeCreateRoomError, err)
		return
	}

	s.moveToRoom(room)

	s.reply(TypeCreateRoomSuccess, RoomJoinedPayload{
		PreviousMatches: room.Matches(s.userName, true),
		Media:           room.MediaForUser(s.userName),
		InviteKey:       room.InviteKey(),
	})
}

// handleJoinRoom joins an existing room, answering the taxonomy errors the
// registry and access rules produce.
func (s *Session) handleJoinRoom(payload json.RawMessage) {
	if s.userName == "" {
		s.replyError(TypeJoinRoomError, errs.NotLoggedIn("join a room"))
		return
	}

	var req JoinRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.replyError(TypeJoinRoomError, errs.MalformedMessage("The joinRoom message was not formed correctly."))
		return
	}

	room, err := s.registry.Get(req.RoomName, s.userName, req.Password)
	if err != nil {
		s.replyError(TypeJoinRoomError, err)
		return
	}

	s.moveToRoom(room)

	s.reply(TypeJoinRoomSuccess, RoomJoinedPayload{
		PreviousMatches: room.Matches(s.userName, true),
		Media:           room.MediaForUser(s.userName),
	})
}

// handleRate forwards a rating to the current room. Without a login and a
// room the message is a no-op.
func (s *Session) handleRate(payload json.RawMessage) {
	if s.userName == "" || s.room == nil {
		s.logger.Debug().Msg("Rate message outside a room, ignoring")
		return
	}

	var req RateRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.MediaID == "" {
		s.logger.Warn().Err(err).Msg("Client sent an invalid rate payload")
		return
	}

	s.room.StoreRating(s.userName, req.MediaID, req.Rating == RatingLike)
}

// handleSetLocale stores the locale preference and answers with the resolved
// string table.
func (s *Session) handleSetLocale(payload json.RawMessage) {
	var req SetLocaleRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.logger.Warn().Err(err).Msg("Client sent an invalid setLocale payload")
		return
	}

	table, chosen := s.translator.TranslationsFor(req.Language)
	s.locale = chosen

	s.reply(TypeTranslations, table)
}

// moveToRoom makes room the session's current room, leaving any previous one
// first so a session is a member of at most one room.
func (s *Session) moveToRoom(room *Room) {
	s.leaveRoom()
	room.AddMember(s.userName, s)
	s.room = room
}

// leaveRoom removes the session's membership entry, if any.
func (s *Session) leaveRoom() {
	if s.room != nil && s.userName != "" {
		s.room.RemoveMember(s.userName)
	}
	s.room = nil
}

// cleanup tears the session down after the read pump ends: membership first,
// so no broadcast can reach a dead handle, then the pumps, then Finished.
func (s *Session) cleanup() {
	name := s.userName
	if name == "" {
		name = "unknown user"
	}
	s.logger.Info().Msgf("%s left", name)

	s.leaveRoom()

	close(s.done)

	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Debug().Err(err).Msg("Connection close during cleanup")
	}

	close(s.finished)
}

// writePump drains the send queue onto the connection and keeps the heartbeat
// going. It exits when the session is done or a write fails.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		if err := s.conn.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Connection close in write pump")
		}
	}()

	for {
		select {
		case frame := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				s.logger.Error().Err(err).Msg("Failed to set write deadline")
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.logger.Warn().Err(err).Msg("Tried to send a message to a disconnected client")
				return
			}

		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				s.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
				s.logger.Debug().Err(err).Msg("Error writing close message")
			}
			return
		}
	}
}
