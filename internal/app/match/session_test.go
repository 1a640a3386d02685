package match_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediamatch/internal/app/i18n"
	"mediamatch/internal/app/match"
	"mediamatch/internal/app/media"
	"mediamatch/internal/pkg/auth/roomkey"
	"mediamatch/internal/pkg/errs"
)

const readTimeout = 3 * time.Second

// fakeIdentity is an identity provider whose outcome the test controls.
type fakeIdentity struct {
	profile *media.Profile
	err     error
}

func (f *fakeIdentity) ResolveUser(context.Context, media.Auth) (*media.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

type testEnv struct {
	registry *match.Registry
	identity *fakeIdentity
	server   *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	translator, err := i18n.NewTranslator()
	require.NoError(t, err)

	catalog := &media.StaticCatalog{Items: []media.Media{
		{ID: "tt1", Title: "The First One", Type: "movie", Genres: []string{"comedy"}},
		{ID: "tt2", Title: "The Second One", Type: "movie", Genres: []string{"drama"}},
		{ID: "tt3", Title: "The Third One", Type: "movie", Genres: []string{"comedy"}},
	}}

	env := &testEnv{
		registry: match.NewRegistry(catalog, roomkey.NewIssuer("test-secret")),
		identity: &fakeIdentity{profile: &media.Profile{DisplayName: "Alice", AvatarURL: "https://plex.tv/avatar.png"}},
	}

	upgrader := websocket.Upgrader{}
	env.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		match.NewSession(conn, env.registry, env.identity, translator, match.SessionConfig{}).Run()
	}))
	t.Cleanup(env.server.Close)

	return env
}

// client is a minimal protocol client for the tests.
type client struct {
	t    *testing.T
	conn *websocket.Conn
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type errorPayload struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

type matchPayload struct {
	Media media.Media `json:"media"`
	Users []string    `json:"users"`
}

type roomJoinedPayload struct {
	PreviousMatches []matchPayload `json:"previousMatches"`
	Media           []media.Media  `json:"media"`
	InviteKey       string         `json:"inviteKey"`
}

// dial connects and consumes the initial config message every session sends.
func (e *testEnv) dial(t *testing.T) *client {
	t.Helper()

	url := "ws" + strings.TrimPrefix(e.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := &client{t: t, conn: conn}
	c.expect(match.TypeConfig)
	return c
}

func (c *client) send(msgType string, payload any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(map[string]any{"type": msgType, "payload": payload}))
}

func (c *client) sendRaw(frame string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// expect reads the next frame and requires its type tag.
func (c *client) expect(msgType string) json.RawMessage {
	c.t.Helper()

	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(readTimeout)))
	var env envelope
	require.NoError(c.t, c.conn.ReadJSON(&env))
	require.Equal(c.t, msgType, env.Type)
	return env.Payload
}

func (c *client) expectError(msgType, errName string) {
	c.t.Helper()

	var payload errorPayload
	require.NoError(c.t, json.Unmarshal(c.expect(msgType), &payload))
	assert.Equal(c.t, errName, payload.Name)
}

func (c *client) login(userName string) {
	c.t.Helper()
	c.send(match.TypeLogin, map[string]any{"userName": userName})
	c.expect(match.TypeLoginSuccess)
}

func TestSessionSendsConfigFirst(t *testing.T) {
	env := newTestEnv(t)

	url := "ws" + strings.TrimPrefix(env.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	var first envelope
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, match.TypeConfig, first.Type)
}

func TestSessionLoginValidation(t *testing.T) {
	env := newTestEnv(t)
	c := env.dial(t)

	c.send(match.TypeLogin, map[string]any{})
	c.expectError(match.TypeLoginError, errs.NameMalformedMessage)

	// The connection stays open; a correct login still works.
	var success struct {
		AvatarImage string   `json:"avatarImage"`
		Permissions []string `json:"permissions"`
	}
	c.send(match.TypeLogin, map[string]any{"userName": "alice"})
	require.NoError(t, json.Unmarshal(c.expect(match.TypeLoginSuccess), &success))
	assert.Empty(t, success.AvatarImage)
	assert.NotNil(t, success.Permissions)
}

func TestSessionLoginResolvesAuthMaterial(t *testing.T) {
	env := newTestEnv(t)
	c := env.dial(t)

	var success struct {
		AvatarImage string `json:"avatarImage"`
	}
	c.send(match.TypeLogin, map[string]any{
		"userName": "alice",
		"plexAuth": map[string]any{"clientId": "cid", "plexToken": "tok"},
	})
	require.NoError(t, json.Unmarshal(c.expect(match.TypeLoginSuccess), &success))
	assert.Equal(t, "https://plex.tv/avatar.png", success.AvatarImage)
}

func TestSessionLoginDegradesOnAuthFailure(t *testing.T) {
	env := newTestEnv(t)
	env.identity.err = errors.New("token expired")
	c := env.dial(t)

	var success struct {
		AvatarImage string `json:"avatarImage"`
	}
	c.send(match.TypeLogin, map[string]any{
		"userName": "alice",
		"plexAuth": map[string]any{"clientId": "cid", "plexToken": "bad"},
	})
	// Login still succeeds anonymously; no error is surfaced.
	require.NoError(t, json.Unmarshal(c.expect(match.TypeLoginSuccess), &success))
	assert.Empty(t, success.AvatarImage)
}

func TestSessionRoomRequiresLogin(t *testing.T) {
	env := newTestEnv(t)
	c := env.dial(t)

	c.send(match.TypeCreateRoom, map[string]any{"roomName": "movie-night"})
	c.expectError(match.TypeCreateRoomError, errs.NameNotLoggedIn)
	assert.Zero(t, env.registry.RoomCount(), "no room may be created without a login")

	c.send(match.TypeJoinRoom, map[string]any{"roomName": "movie-night"})
	c.expectError(match.TypeJoinRoomError, errs.NameNotLoggedIn)
}

func TestSessionCreateAndJoinErrors(t *testing.T) {
	env := newTestEnv(t)

	creator := env.dial(t)
	creator.login("alice")
	creator.send(match.TypeCreateRoom, map[string]any{"roomName": "movie-night", "password": "hunter2"})
	creator.expect(match.TypeCreateRoomSuccess)

	other := env.dial(t)
	other.login("bob")

	other.send(match.TypeCreateRoom, map[string]any{"roomName": "movie-night"})
	other.expectError(match.TypeCreateRoomError, errs.NameRoomExists)

	other.send(match.TypeJoinRoom, map[string]any{"roomName": "no-such-room"})
	other.expectError(match.TypeJoinRoomError, errs.NameRoomNotFound)

	// Password-protected room, no credential supplied.
	other.send(match.TypeJoinRoom, map[string]any{"roomName": "movie-night"})
	other.expectError(match.TypeJoinRoomError, errs.NameAccessDenied)

	other.send(match.TypeJoinRoom, map[string]any{"roomName": "movie-night", "password": "hunter2"})
	other.expect(match.TypeJoinRoomSuccess)

	// Joining a second time under the same name is an error, not a re-join.
	third := env.dial(t)
	third.login("bob")
	third.send(match.TypeJoinRoom, map[string]any{"roomName": "movie-night", "password": "hunter2"})
	third.expectError(match.TypeJoinRoomError, errs.NameUserAlreadyJoined)
}

func TestSessionLinkOnlyRoom(t *testing.T) {
	env := newTestEnv(t)

	creator := env.dial(t)
	creator.login("alice")
	creator.send(match.TypeCreateRoom, map[string]any{"roomName": "secret-night", "accessMode": "link"})

	var created roomJoinedPayload
	require.NoError(t, json.Unmarshal(creator.expect(match.TypeCreateRoomSuccess), &created))
	require.NotEmpty(t, created.InviteKey)

	guest := env.dial(t)
	guest.login("bob")

	guest.send(match.TypeJoinRoom, map[string]any{"roomName": "secret-night"})
	guest.expectError(match.TypeJoinRoomError, errs.NameAccessDenied)

	guest.send(match.TypeJoinRoom, map[string]any{"roomName": "secret-night", "password": created.InviteKey})
	guest.expect(match.TypeJoinRoomSuccess)
}

func TestSessionMatchScenario(t *testing.T) {
	env := newTestEnv(t)

	alice := env.dial(t)
	alice.login("alice")
	alice.send(match.TypeCreateRoom, map[string]any{"roomName": "movie-night"})

	var created roomJoinedPayload
	require.NoError(t, json.Unmarshal(alice.expect(match.TypeCreateRoomSuccess), &created))
	assert.Empty(t, created.PreviousMatches, "a brand-new room has no matches")
	assert.Len(t, created.Media, 3)

	bob := env.dial(t)
	bob.login("bob")
	bob.send(match.TypeJoinRoom, map[string]any{"roomName": "movie-night"})
	bob.expect(match.TypeJoinRoomSuccess)

	alice.send(match.TypeRate, map[string]any{"mediaId": "tt1", "rating": "like"})
	// A round-trip on alice's connection guarantees her rating is stored
	// before bob's arrives, making the liker order deterministic.
	alice.send(match.TypeSetLocale, map[string]any{"language": "en"})
	alice.expect(match.TypeTranslations)

	bob.send(match.TypeRate, map[string]any{"mediaId": "tt1", "rating": "like"})

	// Both members receive the broadcast naming both users, exactly once.
	for _, c := range []*client{alice, bob} {
		var m matchPayload
		require.NoError(t, json.Unmarshal(c.expect(match.TypeMatch), &m))
		assert.Equal(t, "tt1", m.Media.ID)
		assert.Equal(t, []string{"alice", "bob"}, m.Users)
	}

	// No duplicate broadcast for the same title: the next match frame each
	// client sees is for tt2.
	alice.send(match.TypeRate, map[string]any{"mediaId": "tt1", "rating": "like"})
	alice.send(match.TypeRate, map[string]any{"mediaId": "tt2", "rating": "like"})
	bob.send(match.TypeRate, map[string]any{"mediaId": "tt2", "rating": "like"})

	for _, c := range []*client{alice, bob} {
		var m matchPayload
		require.NoError(t, json.Unmarshal(c.expect(match.TypeMatch), &m))
		assert.Equal(t, "tt2", m.Media.ID)
	}

	// A later joiner sees the full match history, newest first.
	carol := env.dial(t)
	carol.login("carol")
	carol.send(match.TypeJoinRoom, map[string]any{"roomName": "movie-night"})

	var joined roomJoinedPayload
	require.NoError(t, json.Unmarshal(carol.expect(match.TypeJoinRoomSuccess), &joined))
	require.Len(t, joined.PreviousMatches, 2)
	assert.Equal(t, "tt2", joined.PreviousMatches[0].Media.ID)
	assert.Equal(t, "tt1", joined.PreviousMatches[1].Media.ID)
}

func TestSessionReloginFreesOldName(t *testing.T) {
	env := newTestEnv(t)

	first := env.dial(t)
	first.login("alice")
	first.send(match.TypeCreateRoom, map[string]any{"roomName": "movie-night"})
	first.expect(match.TypeCreateRoomSuccess)

	// Re-login under a new name removes the old membership before the new
	// name can act.
	first.login("alex")

	second := env.dial(t)
	second.login("alice")
	second.send(match.TypeJoinRoom, map[string]any{"roomName": "movie-night"})
	second.expect(match.TypeJoinRoomSuccess)
}

func TestSessionDisconnectCleansMembership(t *testing.T) {
	env := newTestEnv(t)

	alice := env.dial(t)
	alice.login("alice")
	alice.send(match.TypeCreateRoom, map[string]any{"roomName": "movie-night"})
	alice.expect(match.TypeCreateRoomSuccess)

	bob := env.dial(t)
	bob.login("bob")
	bob.send(match.TypeJoinRoom, map[string]any{"roomName": "movie-night"})
	bob.expect(match.TypeJoinRoomSuccess)
	bob.send(match.TypeRate, map[string]any{"mediaId": "tt1", "rating": "like"})

	// Abrupt drop.
	bob.conn.Close()

	require.Eventually(t, func() bool {
		_, err := env.registry.Get("movie-night", "bob", "")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "bob's membership must be cleaned up after disconnect")

	carol := env.dial(t)
	carol.login("carol")
	carol.send(match.TypeJoinRoom, map[string]any{"roomName": "movie-night"})
	carol.expect(match.TypeJoinRoomSuccess)

	// A match involving the departed member's rating still broadcasts to the
	// remaining members without error.
	carol.send(match.TypeRate, map[string]any{"mediaId": "tt1", "rating": "like"})

	for _, c := range []*client{alice, carol} {
		var m matchPayload
		require.NoError(t, json.Unmarshal(c.expect(match.TypeMatch), &m))
		assert.Equal(t, "tt1", m.Media.ID)
	}
}

func TestSessionSetLocale(t *testing.T) {
	env := newTestEnv(t)
	c := env.dial(t)

	c.send(match.TypeSetLocale, map[string]any{"language": "de"})

	var table map[string]string
	require.NoError(t, json.Unmarshal(c.expect(match.TypeTranslations), &table))
	assert.Equal(t, "Deutsch", table["LANG"])
}

func TestSessionToleratesGarbage(t *testing.T) {
	env := newTestEnv(t)
	c := env.dial(t)

	c.sendRaw("this is not json")
	c.send("definitelyUnknownType", map[string]any{"x": 1})

	// The connection survives both; normal traffic continues.
	c.login("alice")
}

func TestSessionFinishedSignalsTermination(t *testing.T) {
	translator, err := i18n.NewTranslator()
	require.NoError(t, err)

	registry := match.NewRegistry(&media.StaticCatalog{}, roomkey.NewIssuer("test-secret"))

	sessions := make(chan *match.Session, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s := match.NewSession(conn, registry, &fakeIdentity{}, translator, match.SessionConfig{})
		sessions <- s
		s.Run()
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	session := <-sessions
	conn.Close()

	select {
	case <-session.Finished():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not signal completion after the connection closed")
	}
}
