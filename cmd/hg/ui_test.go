package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonashappcreative/hotelgame/internal/engine"
	"github.com/jonashappcreative/hotelgame/internal/game"
)

func TestParsePurchases(t *testing.T) {
	got, err := parsePurchases([]string{"tower:2", "American"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "tower", got[0]["chain"])
	assert.Equal(t, 2, got[0]["quantity"])
	assert.Equal(t, "american", got[1]["chain"])
	assert.Equal(t, 1, got[1]["quantity"])

	_, err = parsePurchases([]string{"hilton:1"})
	require.ErrorIs(t, err, engine.ErrUnknownChain)

	_, err = parsePurchases([]string{"tower:0"})
	require.Error(t, err)
}

func TestNormalizeTile(t *testing.T) {
	tile, err := normalizeTile(" 5e ")
	require.NoError(t, err)
	assert.Equal(t, "5E", tile)

	_, err = normalizeTile("10A")
	require.ErrorIs(t, err, engine.ErrInvalidCoordinate)
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "$6,000", money(6000))
	assert.Equal(t, "$300", money(300))
	assert.Equal(t, "$1,234,567", money(1234567))
	assert.Equal(t, "-$1,500", money(-1500))
}

func TestRenderRoomLobbyAndGame(t *testing.T) {
	lobby := game.RoomView{Code: "ABCDEF", Status: game.RoomWaiting, MaxPlayers: 4, Seats: []game.SeatView{
		{Name: "Ana", IsHost: true, IsYou: true, Ready: true},
		{Name: "Ben"},
	}}
	out := renderRoom(lobby, 0)
	assert.Contains(t, out, "ABCDEF")
	assert.Contains(t, out, "Ana (host) *")
	assert.Contains(t, out, "2/4 seats")

	board := map[engine.TileID]engine.Tile{}
	for _, id := range engine.AllTiles() {
		board[id] = engine.Tile{ID: id}
	}
	board["1A"] = engine.Tile{ID: "1A", Placed: true, Chain: engine.Tower}
	gv := &game.GameView{
		Board:     board,
		Phase:     engine.PhasePlaceTile,
		Players:   []game.PlayerView{{Name: "Ana", Cash: 6000, NetWorth: 6000}},
		YourTiles: []engine.TileID{"2B"},
	}
	lobby.Status = game.RoomPlaying
	lobby.Game = gv
	out = renderRoom(lobby, 4)
	assert.Contains(t, out, "Ana places a tile")
	assert.Contains(t, out, "9A")
	assert.Contains(t, out, "Your tiles: ")
	assert.True(t, strings.Contains(out, "2Bx"))
}
