package game

import (
	"encoding/json"
	"time"

	"github.com/jonashappcreative/hotelgame/internal/engine"
)

type CreateRoomInput struct {
	UserID     string
	Name       string
	MaxPlayers int
	Passcode   string
}

type JoinRoomInput struct {
	UserID   string
	Code     string
	Name     string
	Passcode string
}

type ActionInput struct {
	UserID         string
	Code           string
	Action         string
	Payload        json.RawMessage
	IdempotencyKey string
}

type ActionResult struct {
	Room    RoomView `json:"room"`
	Version int64    `json:"version"`
}

type RoomView struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	Status      RoomStatus `json:"status"`
	HostID      string     `json:"host_id"`
	MaxPlayers  int        `json:"max_players"`
	HasPasscode bool       `json:"has_passcode"`
	Seats       []SeatView `json:"seats"`
	Version     int64      `json:"version"`
	Game        *GameView  `json:"game,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type SeatView struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	IsHost bool   `json:"is_host"`
	IsYou  bool   `json:"is_you"`
}

// GameView is one player's window on the game: other hands and the bag
// order are hidden.
type GameView struct {
	Board                   map[engine.TileID]engine.Tile `json:"board"`
	Chains                  []ChainView                   `json:"chains"`
	Players                 []PlayerView                  `json:"players"`
	CurrentPlayerIndex      int                           `json:"current_player_index"`
	Phase                   engine.Phase                  `json:"phase"`
	LastPlacedTile          engine.TileID                 `json:"last_placed_tile,omitempty"`
	PendingChainFoundation  []engine.TileID               `json:"pending_chain_foundation,omitempty"`
	SurvivorCandidates      []engine.ChainName            `json:"survivor_candidates,omitempty"`
	Merger                  *engine.MergerState           `json:"merger,omitempty"`
	StocksPurchasedThisTurn int                           `json:"stocks_purchased_this_turn"`
	TileBagCount            int                           `json:"tile_bag_count"`
	EndGameVotes            []string                      `json:"end_game_votes,omitempty"`
	VotesNeeded             int                           `json:"votes_needed"`
	Log                     []engine.LogEntry             `json:"log"`
	Winner                  string                        `json:"winner,omitempty"`
	Standings               []engine.Standing             `json:"standings,omitempty"`
	YourIndex               int                           `json:"your_index"`
	YourTiles               []engine.TileID               `json:"your_tiles,omitempty"`
	PlayableTiles           []engine.TileID               `json:"playable_tiles,omitempty"`
}

type ChainView struct {
	Name        engine.ChainName `json:"name"`
	DisplayName string           `json:"display_name"`
	Tier        engine.Tier      `json:"tier"`
	Size        int              `json:"size"`
	Active      bool             `json:"is_active"`
	Safe        bool             `json:"is_safe"`
	Price       int              `json:"price"`
	BankShares  int              `json:"bank_shares"`
	Bonus       engine.Bonus     `json:"bonus"`
}

type PlayerView struct {
	ID        string                   `json:"id"`
	Name      string                   `json:"name"`
	Cash      int                      `json:"cash"`
	Stocks    map[engine.ChainName]int `json:"stocks"`
	TileCount int                      `json:"tile_count"`
	NetWorth  int                      `json:"net_worth"`
}

type PlayableView struct {
	Tiles    []engine.TileID `json:"tiles"`
	Playable []engine.TileID `json:"playable"`
	CanPlace bool            `json:"can_place"`
}

type ScoresView struct {
	Final     bool              `json:"final"`
	Standings []engine.Standing `json:"standings"`
}

type tilePayload struct {
	Tile string `json:"tile"`
}

type chainPayload struct {
	Chain string `json:"chain"`
}

type buyPayload struct {
	Purchases []struct {
		Chain    string `json:"chain"`
		Quantity int    `json:"quantity"`
	} `json:"purchases"`
}
