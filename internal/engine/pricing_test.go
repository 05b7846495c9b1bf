package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockPrice(t *testing.T) {
	tests := []struct {
		chain ChainName
		size  int
		want  int
	}{
		{Sackson, 0, 0},
		{Sackson, 2, 200},
		{Tower, 3, 300},
		{Tower, 6, 500},
		{Worldwide, 3, 400},
		{American, 11, 700},
		{Imperial, 11, 800},
		{Continental, 40, 1000},
		{Continental, 41, 1100},
		{Festival, 108, 1000},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, StockPrice(tc.chain, tc.size), "%s size %d", tc.chain, tc.size)
	}
}

func TestStockPriceMonotonic(t *testing.T) {
	for _, c := range ChainOrder {
		prev := 0
		for size := 0; size <= BoardRows*BoardCols; size++ {
			p := StockPrice(c, size)
			require.GreaterOrEqual(t, p, prev, "%s size %d", c, size)
			prev = p
		}
	}
	for size := 1; size <= 60; size++ {
		budget, mid, premium := StockPrice(Sackson, size), StockPrice(Worldwide, size), StockPrice(Imperial, size)
		require.GreaterOrEqual(t, premium, mid)
		require.GreaterOrEqual(t, mid, budget)
	}
}

func TestBonuses(t *testing.T) {
	b := Bonuses(Worldwide, 3)
	assert.Equal(t, Bonus{Majority: 4000, Minority: 2000}, b)
	assert.Equal(t, Bonus{}, Bonuses(Imperial, 0))
}

func holders(counts ...int) []Player {
	out := make([]Player, len(counts))
	for i, n := range counts {
		out[i] = Player{ID: string(rune('a' + i)), Name: string(rune('A' + i)), Stocks: map[ChainName]int{Tower: n}}
	}
	return out
}

func TestStockholderRankings(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		want   Rankings
	}{
		{"nobody", []int{0, 0, 0, 0}, Rankings{}},
		{"single holder", []int{0, 3, 0, 0}, Rankings{Majority: []int{1}}},
		{"everyone tied", []int{4, 4, 0, 0}, Rankings{Majority: []int{0, 1}}},
		{"clear order", []int{1, 5, 3, 0}, Rankings{Majority: []int{1}, Minority: []int{2}}},
		{"tied minority", []int{2, 6, 2, 1}, Rankings{Majority: []int{1}, Minority: []int{0, 2}}},
		{"tied majority with runner up", []int{5, 5, 3, 0}, Rankings{Majority: []int{0, 1}, Minority: []int{2}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StockholderRankings(holders(tc.counts...), Tower))
		})
	}
}

func TestPayBonusesFullTieSplitsBothPools(t *testing.T) {
	players := holders(4, 4, 0, 0)
	for i := range players {
		players[i].Stocks = map[ChainName]int{Worldwide: players[i].Stocks[Tower]}
	}
	payouts := payBonuses(players, Worldwide, 3)

	pool := Bonuses(Worldwide, 3)
	total := pool.Majority + pool.Minority
	paid := 0
	for _, p := range payouts {
		paid += p.Amount
		assert.Equal(t, "majority+minority", p.Kind)
	}
	assert.Equal(t, 3000, players[0].Cash)
	assert.Equal(t, 3000, players[1].Cash)
	assert.Equal(t, 0, players[2].Cash)
	assert.LessOrEqual(t, paid, total)
	assert.LessOrEqual(t, total-paid, 1)
}

func TestPayBonusesDiscardsRemainder(t *testing.T) {
	players := holders(3, 3, 3, 1)
	payouts := payBonuses(players, Tower, 2)

	// 2000 / 3 leaves 2 unpaid.
	assert.Equal(t, 666, players[0].Cash)
	assert.Equal(t, 666, players[1].Cash)
	assert.Equal(t, 666, players[2].Cash)
	assert.Equal(t, 1000, players[3].Cash)
	assert.Len(t, payouts, 4)
}

func TestPayBonusesNoHolders(t *testing.T) {
	players := holders(0, 0, 0, 0)
	assert.Empty(t, payBonuses(players, Tower, 5))
	for _, p := range players {
		assert.Zero(t, p.Cash)
	}
}
