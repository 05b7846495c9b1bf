package engine

import (
	"maps"
	"slices"
	"time"
)

const (
	InitialCash        = 6000
	TilesPerPlayer     = 6
	SharesPerChain     = 25
	MaxSharesPerTurn   = 3
	SafeChainSize      = 11
	EndGameChainSize   = 41
	MinPlayers         = 4
	MaxPlayers         = 6
	TradeRatio         = 2
	SystemActorID      = "system"
	systemActorDisplay = "System"
)

type Phase string

const (
	PhaseWaiting              Phase = "waiting"
	PhasePlaceTile            Phase = "place_tile"
	PhaseFoundChain           Phase = "found_chain"
	PhaseBuyStock             Phase = "buy_stock"
	PhaseMergerChooseSurvivor Phase = "merger_choose_survivor"
	PhaseMergerPayBonuses     Phase = "merger_pay_bonuses"
	PhaseMergerHandleStock    Phase = "merger_handle_stock"
	PhaseGameOver             Phase = "game_over"
)

func (p Phase) IsMerger() bool {
	switch p {
	case PhaseMergerChooseSurvivor, PhaseMergerPayBonuses, PhaseMergerHandleStock:
		return true
	}
	return false
}

type Tile struct {
	ID     TileID    `json:"id"`
	Placed bool      `json:"placed"`
	Chain  ChainName `json:"chain,omitempty"`
}

type ChainState struct {
	Name   ChainName `json:"name"`
	Tiles  []TileID  `json:"tiles"`
	Active bool      `json:"is_active"`
	Safe   bool      `json:"is_safe"`
}

func (c ChainState) Size() int { return len(c.Tiles) }

type Player struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Cash   int               `json:"cash"`
	Tiles  []TileID          `json:"tiles"`
	Stocks map[ChainName]int `json:"stocks"`
}

func (p Player) HasTile(id TileID) bool {
	return slices.Contains(p.Tiles, id)
}

// MergerState exists only while a merger is being resolved.
type MergerState struct {
	SurvivingChain      ChainName   `json:"surviving_chain"`
	DefunctChains       []ChainName `json:"defunct_chains"`
	CurrentDefunctChain ChainName   `json:"current_defunct_chain"`
	CurrentPlayerIndex  int         `json:"current_player_index"`
	BonusesPaid         bool        `json:"bonuses_paid"`
	Payouts             []Payout    `json:"payouts,omitempty"`
}

type LogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Action     string    `json:"action"`
	Details    string    `json:"details,omitempty"`
}

type Standing struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Cash     int    `json:"cash"`
}

// State is a full game snapshot. Engine operations never mutate a State
// they receive; they return a new one.
type State struct {
	Board                   map[TileID]Tile          `json:"board"`
	Chains                  map[ChainName]ChainState `json:"chains"`
	StockBank               map[ChainName]int        `json:"stock_bank"`
	TileBag                 []TileID                 `json:"tile_bag"`
	Players                 []Player                 `json:"players"`
	CurrentPlayerIndex      int                      `json:"current_player_index"`
	Phase                   Phase                    `json:"phase"`
	LastPlacedTile          TileID                   `json:"last_placed_tile,omitempty"`
	PendingChainFoundation  []TileID                 `json:"pending_chain_foundation,omitempty"`
	MergerChains            []ChainName              `json:"merger_chains,omitempty"`
	SurvivorCandidates      []ChainName              `json:"survivor_candidates,omitempty"`
	Merger                  *MergerState             `json:"merger,omitempty"`
	StocksPurchasedThisTurn int                      `json:"stocks_purchased_this_turn"`
	EndGameVotes            []string                 `json:"end_game_votes,omitempty"`
	Log                     []LogEntry               `json:"log"`
	Winner                  string                   `json:"winner,omitempty"`
	Standings               []Standing               `json:"standings,omitempty"`
}

func (s State) Clone() State {
	out := s
	out.Board = maps.Clone(s.Board)
	out.Chains = make(map[ChainName]ChainState, len(s.Chains))
	for k, v := range s.Chains {
		v.Tiles = slices.Clone(v.Tiles)
		out.Chains[k] = v
	}
	out.StockBank = maps.Clone(s.StockBank)
	out.TileBag = slices.Clone(s.TileBag)
	out.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		p.Tiles = slices.Clone(p.Tiles)
		p.Stocks = maps.Clone(p.Stocks)
		out.Players[i] = p
	}
	out.PendingChainFoundation = slices.Clone(s.PendingChainFoundation)
	out.MergerChains = slices.Clone(s.MergerChains)
	out.SurvivorCandidates = slices.Clone(s.SurvivorCandidates)
	if s.Merger != nil {
		m := *s.Merger
		m.DefunctChains = slices.Clone(m.DefunctChains)
		m.Payouts = slices.Clone(m.Payouts)
		out.Merger = &m
	}
	out.EndGameVotes = slices.Clone(s.EndGameVotes)
	out.Log = slices.Clone(s.Log)
	out.Standings = slices.Clone(s.Standings)
	return out
}

func (s State) CurrentPlayer() Player {
	return s.Players[s.CurrentPlayerIndex]
}

func (s State) PlayerIndex(id string) (int, bool) {
	for i, p := range s.Players {
		if p.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (s State) ActiveChains() []ChainName {
	var out []ChainName
	for _, c := range ChainOrder {
		if s.Chains[c].Active {
			out = append(out, c)
		}
	}
	return out
}

// AvailableChains lists chains that may be founded right now.
func (s State) AvailableChains() []ChainName {
	var out []ChainName
	for _, c := range ChainOrder {
		if !s.Chains[c].Active {
			out = append(out, c)
		}
	}
	return out
}

func (s State) Price(chain ChainName) int {
	return StockPrice(chain, s.Chains[chain].Size())
}

// NetWorth values a player's cash plus holdings in active chains at current prices.
func (s State) NetWorth(playerIdx int) int {
	p := s.Players[playerIdx]
	total := p.Cash
	for _, c := range s.ActiveChains() {
		total += p.Stocks[c] * s.Price(c)
	}
	return total
}
