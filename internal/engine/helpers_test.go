package engine

import (
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testNames = []string{"Ana", "Ben", "Cai", "Dee", "Eve", "Fay"}

func testEngine() *Engine {
	return New(WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) }))
}

// blankGame returns a freshly dealt game with an empty board.
func blankGame(t *testing.T, players int) State {
	t.Helper()
	s, err := testEngine().NewGame(testNames[:players], 42)
	require.NoError(t, err)
	for id := range s.Board {
		s.Board[id] = Tile{ID: id}
	}
	return s
}

func span(row int, from, to byte) []TileID {
	var out []TileID
	for c := from; c <= to; c++ {
		out = append(out, NewTileID(row, c))
	}
	return out
}

func withChain(s *State, chain ChainName, tiles ...TileID) {
	for _, id := range tiles {
		s.Board[id] = Tile{ID: id, Placed: true, Chain: chain}
	}
	s.Chains[chain] = ChainState{
		Name:   chain,
		Tiles:  slices.Clone(tiles),
		Active: true,
		Safe:   len(tiles) >= SafeChainSize,
	}
}

func withLoose(s *State, tiles ...TileID) {
	for _, id := range tiles {
		s.Board[id] = Tile{ID: id, Placed: true}
	}
}

func withHand(s *State, idx int, tiles ...TileID) {
	s.Players[idx].Tiles = slices.Clone(tiles)
}

// withShares moves shares between the bank and a player so conservation holds.
func withShares(s *State, idx int, chain ChainName, n int) {
	delta := n - s.Players[idx].Stocks[chain]
	s.Players[idx].Stocks[chain] = n
	s.StockBank[chain] -= delta
}

func actor(s State, idx int) string {
	return s.Players[idx].ID
}

// sameState reports whether b is the very snapshot a, not a copy.
func sameState(a, b State) bool {
	return reflect.ValueOf(a.Board).Pointer() == reflect.ValueOf(b.Board).Pointer() &&
		reflect.ValueOf(a.StockBank).Pointer() == reflect.ValueOf(b.StockBank).Pointer() &&
		reflect.DeepEqual(a, b)
}

func requireConservation(t *testing.T, s State) {
	t.Helper()
	for _, c := range ChainOrder {
		held := 0
		for _, p := range s.Players {
			held += p.Stocks[c]
		}
		require.Equal(t, SharesPerChain, s.StockBank[c]+held, "chain %s", c)
	}
}
