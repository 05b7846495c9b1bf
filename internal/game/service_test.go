package game

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonashappcreative/hotelgame/internal/engine"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu        sync.Mutex
	turns     []string
	reminders []string
	finished  []string
}

func (n *recordingNotifier) TurnStarted(_ context.Context, _ Room, p engine.Player) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.turns = append(n.turns, p.ID)
	return nil
}

func (n *recordingNotifier) TurnReminder(_ context.Context, _ Room, p engine.Player, _ time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reminders = append(n.reminders, p.ID)
	return nil
}

func (n *recordingNotifier) GameOver(_ context.Context, r Room) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.finished = append(n.finished, r.Code)
	return nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	versions map[string]int64
}

func (p *recordingPublisher) Publish(code string, version int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.versions == nil {
		p.versions = map[string]int64{}
	}
	p.versions[code] = version
}

type fixture struct {
	svc      *Service
	clock    *testClock
	notifier *recordingNotifier
	pub      *recordingPublisher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		clock:    &testClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		notifier: &recordingNotifier{},
		pub:      &recordingPublisher{},
	}
	f.svc = NewService(NewMemoryStore(), nil,
		WithClock(f.clock.now), WithSeed(11), WithNotifier(f.notifier), WithPublisher(f.pub))
	return f
}

var users = []string{"u-ana", "u-ben", "u-cai", "u-dee", "u-eve"}

// startedRoom seats four players, readies them all and returns the room code.
func (f fixture) startedRoom(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	room, err := f.svc.CreateRoom(ctx, CreateRoomInput{UserID: users[0], Name: "Ana"})
	require.NoError(t, err)
	for i, u := range users[1:4] {
		_, err := f.svc.JoinRoom(ctx, JoinRoomInput{UserID: u, Code: room.Code, Name: []string{"Ben", "Cai", "Dee"}[i]})
		require.NoError(t, err)
	}
	for _, u := range users[:4] {
		_, err := f.svc.SetReady(ctx, u, room.Code, true)
		require.NoError(t, err)
	}
	return room.Code
}

func TestCreateRoomValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateRoom(ctx, CreateRoomInput{UserID: users[0], Name: "  "})
	require.ErrorIs(t, err, ErrInvalidName)
	_, err = f.svc.CreateRoom(ctx, CreateRoomInput{UserID: users[0], Name: "Ana", MaxPlayers: 7})
	require.ErrorIs(t, err, ErrInvalidRoomSize)

	room, err := f.svc.CreateRoom(ctx, CreateRoomInput{UserID: users[0], Name: "Ana"})
	require.NoError(t, err)
	code, err := NormalizeRoomCode(room.Code)
	require.NoError(t, err)
	assert.Equal(t, room.Code, code)
	assert.Equal(t, RoomWaiting, room.Status)
	assert.Equal(t, DefaultRoomPlayers, room.MaxPlayers)
	require.Len(t, room.Seats, 1)
	assert.True(t, room.Seats[0].IsHost)
	assert.True(t, room.Seats[0].IsYou)
	assert.Nil(t, room.Game)
}

func TestJoinRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.svc.CreateRoom(ctx, CreateRoomInput{UserID: users[0], Name: "Ana", Passcode: "sesame"})
	require.NoError(t, err)
	assert.True(t, room.HasPasscode)

	_, err = f.svc.JoinRoom(ctx, JoinRoomInput{UserID: users[1], Code: room.Code, Name: "Ben", Passcode: "nope"})
	require.ErrorIs(t, err, ErrBadPasscode)

	for i, u := range users[1:4] {
		_, err := f.svc.JoinRoom(ctx, JoinRoomInput{UserID: u, Code: room.Code, Name: []string{"Ben", "Cai", "Dee"}[i], Passcode: "sesame"})
		require.NoError(t, err)
	}
	again, err := f.svc.JoinRoom(ctx, JoinRoomInput{UserID: users[1], Code: room.Code, Name: "Ben"})
	require.NoError(t, err, "rejoining is a no-op")
	assert.Len(t, again.Seats, 4)

	_, err = f.svc.JoinRoom(ctx, JoinRoomInput{UserID: users[4], Code: room.Code, Name: "Eve", Passcode: "sesame"})
	require.ErrorIs(t, err, ErrRoomFull)

	_, err = f.svc.JoinRoom(ctx, JoinRoomInput{UserID: users[4], Code: "ZZZZZZ", Name: "Eve"})
	require.ErrorIs(t, err, ErrRoomNotFound)
	_, err = f.svc.JoinRoom(ctx, JoinRoomInput{UserID: users[4], Code: "io", Name: "Eve"})
	require.ErrorIs(t, err, ErrInvalidRoomCode)
}

func TestLeaveRoomPassesHost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.svc.CreateRoom(ctx, CreateRoomInput{UserID: users[0], Name: "Ana"})
	require.NoError(t, err)
	_, err = f.svc.JoinRoom(ctx, JoinRoomInput{UserID: users[1], Code: room.Code, Name: "Ben"})
	require.NoError(t, err)

	after, err := f.svc.LeaveRoom(ctx, users[0], room.Code)
	require.NoError(t, err)
	assert.Equal(t, users[1], after.HostID)
	require.Len(t, after.Seats, 1)

	_, err = f.svc.LeaveRoom(ctx, users[0], room.Code)
	require.ErrorIs(t, err, ErrNotSeated)

	empty, err := f.svc.LeaveRoom(ctx, users[1], room.Code)
	require.NoError(t, err)
	assert.Equal(t, RoomAbandoned, empty.Status)
}

func TestReadyStartsGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.startedRoom(t)

	room, err := f.svc.Room(ctx, users[0], code)
	require.NoError(t, err)
	assert.Equal(t, RoomPlaying, room.Status)
	require.NotNil(t, room.Game)
	assert.Equal(t, engine.PhasePlaceTile, room.Game.Phase)
	assert.Equal(t, 0, room.Game.YourIndex)
	assert.Equal(t, []string{users[0]}, f.notifier.turns)
	assert.Equal(t, room.Version, f.pub.versions[code])

	_, err = f.svc.JoinRoom(ctx, JoinRoomInput{UserID: users[4], Code: code, Name: "Eve"})
	require.ErrorIs(t, err, ErrRoomStarted)
	_, err = f.svc.LeaveRoom(ctx, users[1], code)
	require.ErrorIs(t, err, ErrRoomStarted)
}

func TestRoomViewHidesOtherHands(t *testing.T) {
	f := newFixture(t)
	code := f.startedRoom(t)

	room, err := f.svc.Room(context.Background(), users[2], code)
	require.NoError(t, err)
	g := room.Game
	require.NotNil(t, g)
	assert.Equal(t, 2, g.YourIndex)
	assert.Len(t, g.YourTiles, engine.TilesPerPlayer)
	assert.Empty(t, g.PlayableTiles, "not this player's turn")
	assert.Equal(t, engine.BoardRows*engine.BoardCols-1-4*engine.TilesPerPlayer, g.TileBagCount)
	for _, p := range g.Players {
		assert.Equal(t, engine.TilesPerPlayer, p.TileCount)
		assert.Equal(t, engine.InitialCash, p.NetWorth)
	}

	raw, err := json.Marshal(room)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "tile_bag\"")
	assert.Len(t, g.Chains, len(engine.ChainOrder))
}

func TestApplyPlaceTile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.startedRoom(t)

	playable, err := f.svc.Playable(ctx, users[0], code)
	require.NoError(t, err)
	require.True(t, playable.CanPlace)
	tile := playable.Playable[0]

	payload, err := json.Marshal(map[string]string{"tile": string(tile)})
	require.NoError(t, err)

	_, err = f.svc.Apply(ctx, ActionInput{UserID: users[1], Code: code, Action: ActionPlaceTile, Payload: payload})
	require.ErrorIs(t, err, engine.ErrNotYourTurn)

	res, err := f.svc.Apply(ctx, ActionInput{UserID: users[0], Code: code, Action: ActionPlaceTile, Payload: payload, IdempotencyKey: "k1"})
	require.NoError(t, err)
	require.NotNil(t, res.Room.Game)
	assert.NotEqual(t, engine.PhasePlaceTile, res.Room.Game.Phase)
	assert.True(t, res.Room.Game.Board[tile].Placed)
	assert.NotContains(t, res.Room.Game.YourTiles, tile)

	_, err = f.svc.Apply(ctx, ActionInput{UserID: users[0], Code: code, Action: ActionPlaceTile, Payload: payload, IdempotencyKey: "k1"})
	require.ErrorIs(t, err, ErrDuplicateIdempotency)
}

func TestApplyRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.startedRoom(t)

	_, err := f.svc.Apply(ctx, ActionInput{UserID: users[0], Code: code, Action: "teleport"})
	require.ErrorIs(t, err, ErrUnknownAction)

	_, err = f.svc.Apply(ctx, ActionInput{UserID: users[0], Code: code, Action: ActionPlaceTile})
	require.ErrorIs(t, err, ErrInvalidPayload)

	_, err = f.svc.Apply(ctx, ActionInput{UserID: users[0], Code: code, Action: ActionPlaceTile, Payload: json.RawMessage(`{"tile":"Z9"}`)})
	require.ErrorIs(t, err, engine.ErrInvalidCoordinate)

	_, err = f.svc.Apply(ctx, ActionInput{UserID: users[0], Code: code, Action: ActionFoundChain, Payload: json.RawMessage(`{"chain":"plaza"}`)})
	require.ErrorIs(t, err, engine.ErrUnknownChain)

	_, err = f.svc.Apply(ctx, ActionInput{UserID: users[4], Code: code, Action: ActionEndTurn})
	require.ErrorIs(t, err, ErrNotSeated)

	_, err = f.svc.Apply(ctx, ActionInput{UserID: users[0], Code: code, Action: ActionPayBonuses})
	require.ErrorIs(t, err, engine.ErrInvalidMergerState)
}

func TestApplyBeforeStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.svc.CreateRoom(ctx, CreateRoomInput{UserID: users[0], Name: "Ana"})
	require.NoError(t, err)

	_, err = f.svc.Apply(ctx, ActionInput{UserID: users[0], Code: room.Code, Action: ActionEndTurn})
	require.ErrorIs(t, err, ErrRoomNotPlaying)
	_, err = f.svc.Scores(ctx, room.Code)
	require.ErrorIs(t, err, ErrRoomNotPlaying)
}

func TestScoresProjection(t *testing.T) {
	f := newFixture(t)
	code := f.startedRoom(t)

	scores, err := f.svc.Scores(context.Background(), code)
	require.NoError(t, err)
	assert.False(t, scores.Final)
	require.Len(t, scores.Standings, 4)
	for _, st := range scores.Standings {
		assert.Equal(t, engine.InitialCash, st.Cash)
		assert.Equal(t, 1, st.Rank)
	}
}

func TestExpireIdleRooms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lobby, err := f.svc.CreateRoom(ctx, CreateRoomInput{UserID: users[0], Name: "Ana"})
	require.NoError(t, err)

	n, err := f.svc.ExpireIdleRooms(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.advance(2 * time.Hour)
	n, err = f.svc.ExpireIdleRooms(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	room, err := f.svc.Room(ctx, users[0], lobby.Code)
	require.NoError(t, err)
	assert.Equal(t, RoomAbandoned, room.Status)

	_, err = f.svc.JoinRoom(ctx, JoinRoomInput{UserID: users[1], Code: lobby.Code, Name: "Ben"})
	require.ErrorIs(t, err, ErrRoomClosed)
}

func TestRemindStalledTurns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startedRoom(t)

	n, err := f.svc.RemindStalledTurns(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.advance(15 * time.Minute)
	n, err = f.svc.RemindStalledTurns(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{users[0]}, f.notifier.reminders)

	n, err = f.svc.RemindStalledTurns(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n, "one reminder per stall")
}

func TestMemoryStoreRollsBackFailedUpdate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateRoom(ctx, Room{Code: "ABCDEF", Status: RoomWaiting}))
	require.ErrorIs(t, store.CreateRoom(ctx, Room{Code: "ABCDEF"}), ErrDuplicateRoomCode)

	claim := &Claim{UserID: "u", Key: "k", Action: "x"}
	_, err := store.UpdateRoom(ctx, "ABCDEF", claim, func(r *Room) error {
		r.Status = RoomPlaying
		return ErrRoomFull
	})
	require.ErrorIs(t, err, ErrRoomFull)

	room, err := store.GetRoom(ctx, "ABCDEF")
	require.NoError(t, err)
	assert.Equal(t, RoomWaiting, room.Status)
	assert.Zero(t, room.Version)

	updated, err := store.UpdateRoom(ctx, "ABCDEF", claim, func(r *Room) error {
		r.Status = RoomPlaying
		return nil
	})
	require.NoError(t, err, "failed update must not burn the key")
	assert.Equal(t, int64(1), updated.Version)
}
