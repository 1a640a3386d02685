package match

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediamatch/internal/app/media"
	"mediamatch/internal/pkg/auth/roomkey"
)

// fakeMember records deliveries; it can be switched to stale to simulate a
// dead connection.
type fakeMember struct {
	mu        sync.Mutex
	delivered []outboundEnvelope
	stale     bool
}

func (f *fakeMember) Deliver(msgType string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stale {
		return errors.New("send queue closed")
	}
	f.delivered = append(f.delivered, outboundEnvelope{Type: msgType, Payload: payload})
	return nil
}

func (f *fakeMember) matchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, env := range f.delivered {
		if env.Type == TypeMatch {
			n++
		}
	}
	return n
}

func testCatalog() []media.Media {
	return []media.Media{
		{ID: "tt1", Title: "The First One", Type: "movie", Genres: []string{"comedy"}},
		{ID: "tt2", Title: "The Second One", Type: "movie", Genres: []string{"drama"}},
		{ID: "tt3", Title: "The Third One", Type: "movie", Genres: []string{"comedy"}},
	}
}

func testRoom(t *testing.T, cfg RoomConfig) *Room {
	t.Helper()

	if cfg.Name == "" {
		cfg.Name = "movie-night"
	}
	room, err := newRoom(cfg, testCatalog(), roomkey.NewIssuer("test-secret"))
	require.NoError(t, err)
	return room
}

func TestRoomMembership(t *testing.T) {
	room := testRoom(t, RoomConfig{})

	first := &fakeMember{}
	second := &fakeMember{}

	room.AddMember("alice", first)
	assert.True(t, room.HasMember("alice"))
	assert.Equal(t, 1, room.MemberCount())

	// Reconnecting under the same name replaces the handle, not adds one.
	room.AddMember("alice", second)
	assert.Equal(t, 1, room.MemberCount())

	room.RemoveMember("alice")
	assert.False(t, room.HasMember("alice"))

	// Duplicate close events are tolerated.
	room.RemoveMember("alice")
	assert.Equal(t, 0, room.MemberCount())
}

func TestRoomMatchBroadcast(t *testing.T) {
	room := testRoom(t, RoomConfig{})

	alice := &fakeMember{}
	bob := &fakeMember{}
	room.AddMember("alice", alice)
	room.AddMember("bob", bob)

	room.StoreRating("alice", "tt1", true)
	assert.Zero(t, alice.matchCount(), "no broadcast below threshold")

	room.StoreRating("bob", "tt1", true)
	assert.Equal(t, 1, alice.matchCount())
	assert.Equal(t, 1, bob.matchCount())

	// Re-rating a matched title does not re-broadcast.
	room.StoreRating("alice", "tt1", true)
	assert.Equal(t, 1, alice.matchCount())

	matches := room.Matches("alice", true)
	require.Len(t, matches, 1)
	assert.Equal(t, "tt1", matches[0].Media.ID)
	assert.Equal(t, []string{"alice", "bob"}, matches[0].Users)
}

func TestRoomBroadcastSkipsRemovedAndStaleMembers(t *testing.T) {
	room := testRoom(t, RoomConfig{})

	alice := &fakeMember{}
	bob := &fakeMember{}
	carol := &fakeMember{stale: true}

	room.AddMember("alice", alice)
	room.AddMember("bob", bob)
	room.AddMember("carol", carol)

	room.StoreRating("alice", "tt1", true)
	room.RemoveMember("alice")
	room.StoreRating("bob", "tt1", true)

	// The removed member gets nothing, the stale member fails quietly, and
	// the broadcast still reaches the live member.
	assert.Zero(t, alice.matchCount())
	assert.Equal(t, 1, bob.matchCount())
	assert.Zero(t, carol.matchCount())
}

func TestRoomIgnoresRatingsOutsideCatalog(t *testing.T) {
	room := testRoom(t, RoomConfig{})

	alice := &fakeMember{}
	bob := &fakeMember{}
	room.AddMember("alice", alice)
	room.AddMember("bob", bob)

	room.StoreRating("alice", "not-in-catalog", true)
	room.StoreRating("bob", "not-in-catalog", true)

	assert.Empty(t, room.Matches("alice", true))
}

func TestRoomMediaForUser(t *testing.T) {
	room := testRoom(t, RoomConfig{})
	room.AddMember("alice", &fakeMember{})

	require.Len(t, room.MediaForUser("alice"), 3)

	room.StoreRating("alice", "tt2", false)

	remaining := room.MediaForUser("alice")
	require.Len(t, remaining, 2)
	assert.Equal(t, "tt1", remaining[0].ID)
	assert.Equal(t, "tt3", remaining[1].ID)

	// Another user's view is unaffected.
	assert.Len(t, room.MediaForUser("bob"), 3)
}

func TestRoomAccessRules(t *testing.T) {
	keys := roomkey.NewIssuer("test-secret")

	open := testRoom(t, RoomConfig{Name: "open-room"})
	assert.NoError(t, open.authorize("", keys))
	assert.NoError(t, open.authorize("anything", keys))

	protected := testRoom(t, RoomConfig{Name: "protected", Access: AccessPassword, Password: "hunter2"})
	assert.NoError(t, protected.authorize("hunter2", keys))
	assert.Error(t, protected.authorize("", keys))
	assert.Error(t, protected.authorize("wrong", keys))

	linked := testRoom(t, RoomConfig{Name: "linked", Access: AccessLink})
	require.NotEmpty(t, linked.InviteKey())
	assert.NoError(t, linked.authorize(linked.InviteKey(), keys))
	assert.Error(t, linked.authorize("", keys))

	// A key minted for a different room must not open this one.
	otherKey, err := keys.Mint("some-other-room")
	require.NoError(t, err)
	assert.Error(t, linked.authorize(otherKey, keys))
}
