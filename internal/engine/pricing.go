package engine

const (
	MajorityBonusMultiplier = 10
	MinorityBonusMultiplier = 5
)

var sizeBrackets = []int{2, 3, 5, 10, 20, 30, 40}

var basePrices = map[Tier][8]int{
	TierBudget:   {200, 300, 400, 500, 600, 700, 800, 900},
	TierMidrange: {300, 400, 500, 600, 700, 800, 900, 1000},
	TierPremium:  {400, 500, 600, 700, 800, 900, 1000, 1100},
}

// StockPrice is the per-share price of a chain holding size tiles.
func StockPrice(chain ChainName, size int) int {
	if size <= 0 {
		return 0
	}
	prices, ok := basePrices[chain.Tier()]
	if !ok {
		return 0
	}
	for i, limit := range sizeBrackets {
		if size <= limit {
			return prices[i]
		}
	}
	return prices[len(prices)-1]
}

type Bonus struct {
	Majority int `json:"majority"`
	Minority int `json:"minority"`
}

func Bonuses(chain ChainName, size int) Bonus {
	price := StockPrice(chain, size)
	return Bonus{
		Majority: price * MajorityBonusMultiplier,
		Minority: price * MinorityBonusMultiplier,
	}
}

// Rankings holds player indices. Minority is empty when every holder is tied.
type Rankings struct {
	Majority []int `json:"majority"`
	Minority []int `json:"minority"`
}

func StockholderRankings(players []Player, chain ChainName) Rankings {
	top, second := 0, 0
	for _, p := range players {
		n := p.Stocks[chain]
		switch {
		case n > top:
			second = top
			top = n
		case n < top && n > second:
			second = n
		}
	}
	var out Rankings
	if top == 0 {
		return out
	}
	for i, p := range players {
		switch n := p.Stocks[chain]; {
		case n == top:
			out.Majority = append(out.Majority, i)
		case second > 0 && n == second:
			out.Minority = append(out.Minority, i)
		}
	}
	return out
}

type Payout struct {
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Chain      ChainName `json:"chain"`
	Kind       string    `json:"kind"`
	Amount     int       `json:"amount"`
}

// payBonuses credits majority and minority holders of chain in place.
// Split remainders are not paid to anyone.
func payBonuses(players []Player, chain ChainName, size int) []Payout {
	ranks := StockholderRankings(players, chain)
	if len(ranks.Majority) == 0 {
		return nil
	}
	bonus := Bonuses(chain, size)
	var out []Payout
	credit := func(idx []int, pool int, kind string) {
		share := pool / len(idx)
		for _, i := range idx {
			players[i].Cash += share
			out = append(out, Payout{
				PlayerID:   players[i].ID,
				PlayerName: players[i].Name,
				Chain:      chain,
				Kind:       kind,
				Amount:     share,
			})
		}
	}
	if len(ranks.Minority) == 0 {
		credit(ranks.Majority, bonus.Majority+bonus.Minority, "majority+minority")
		return out
	}
	credit(ranks.Majority, bonus.Majority, "majority")
	credit(ranks.Minority, bonus.Minority, "minority")
	return out
}
