package engine

import (
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"time"
)

// Engine applies player intents to game snapshots. It holds no game state;
// the only thing it carries is the clock used to stamp log entries.
type Engine struct {
	now func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type Seat struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewGame seats players as player-0..player-N in the given order.
func (e *Engine) NewGame(names []string, seed int64) (State, error) {
	seats := make([]Seat, len(names))
	for i, name := range names {
		seats[i] = Seat{ID: fmt.Sprintf("player-%d", i), Name: name}
	}
	return e.NewGameWithSeats(seats, seed)
}

func (e *Engine) NewGameWithSeats(seats []Seat, seed int64) (State, error) {
	if len(seats) < MinPlayers || len(seats) > MaxPlayers {
		return State{}, fmt.Errorf("%w: got %d", ErrInvalidPlayerCount, len(seats))
	}
	seen := make(map[string]bool, len(seats))
	for _, seat := range seats {
		if strings.TrimSpace(seat.ID) == "" || seen[seat.ID] {
			return State{}, fmt.Errorf("%w: seat ids must be unique and non-empty", ErrInvalidPlayerCount)
		}
		seen[seat.ID] = true
	}

	rng := rand.New(rand.NewSource(seed))
	all := AllTiles()
	s := State{
		Board:     make(map[TileID]Tile, len(all)),
		Chains:    make(map[ChainName]ChainState, len(ChainOrder)),
		StockBank: make(map[ChainName]int, len(ChainOrder)),
		Phase:     PhasePlaceTile,
	}
	for _, id := range all {
		s.Board[id] = Tile{ID: id}
	}
	for _, c := range ChainOrder {
		s.Chains[c] = ChainState{Name: c, Tiles: []TileID{}}
		s.StockBank[c] = SharesPerChain
	}

	s.TileBag = slices.Clone(all)
	rng.Shuffle(len(s.TileBag), func(i, j int) { s.TileBag[i], s.TileBag[j] = s.TileBag[j], s.TileBag[i] })

	start := s.TileBag[len(s.TileBag)-1]
	s.TileBag = s.TileBag[:len(s.TileBag)-1]
	s.Board[start] = Tile{ID: start, Placed: true}

	s.Players = make([]Player, len(seats))
	for i, seat := range seats {
		p := Player{
			ID:     seat.ID,
			Name:   seat.Name,
			Cash:   InitialCash,
			Tiles:  make([]TileID, 0, TilesPerPlayer+1),
			Stocks: make(map[ChainName]int, len(ChainOrder)),
		}
		for _, c := range ChainOrder {
			p.Stocks[c] = 0
		}
		s.Players[i] = p
		for j := 0; j < TilesPerPlayer; j++ {
			drawTile(&s, i)
		}
	}
	e.logSystem(&s, "Game started", fmt.Sprintf("Starting tile %s placed; %s goes first", start, s.Players[0].Name))
	return s, nil
}

// PlaceTile puts a tile from the current player's hand on the board and
// resolves its immediate consequence.
func (e *Engine) PlaceTile(s State, actor string, tile TileID) (State, error) {
	idx, err := s.turnActor(actor, PhasePlaceTile)
	if err != nil {
		return s, err
	}
	if !tile.Valid() {
		return s, fmt.Errorf("%w: %q", ErrInvalidCoordinate, tile)
	}
	if !s.Players[idx].HasTile(tile) {
		return s, fmt.Errorf("%w: %s", ErrTileNotInHand, tile)
	}
	placement := Classify(s, tile)
	if !placement.Valid() {
		return s, placement.Err
	}

	next := s.Clone()
	next.Board[tile] = Tile{ID: tile, Placed: true}
	next.Players[idx].Tiles = slices.DeleteFunc(next.Players[idx].Tiles, func(t TileID) bool { return t == tile })
	next.LastPlacedTile = tile
	e.logPlayer(&next, idx, "Placed tile", string(tile))

	switch placement.Action {
	case ActionPlaceOnly:
		next.Phase = PhaseBuyStock
	case ActionFormChain:
		next.PendingChainFoundation = append([]TileID{tile}, placement.Unincorporated...)
		next.Phase = PhaseFoundChain
	case ActionGrowChain:
		e.growChain(&next, placement.Chains[0], tile, placement.Unincorporated)
		next.Phase = PhaseBuyStock
	case ActionMergeChains:
		survivors := survivorCandidates(next, placement.Chains)
		if len(survivors) == 1 {
			e.beginMerger(&next, survivors[0], placement.Chains)
		} else {
			next.MergerChains = slices.Clone(placement.Chains)
			next.SurvivorCandidates = survivors
			next.Phase = PhaseMergerChooseSurvivor
			e.logSystem(&next, "Merger tie", fmt.Sprintf("%s must choose the surviving chain among %s", next.Players[idx].Name, joinChains(survivors)))
		}
	}
	e.settle(&next)
	checkInvariants(s, next)
	return next, nil
}

// FoundChain names the pending group of tiles and grants the founder a free share.
func (e *Engine) FoundChain(s State, actor string, chain ChainName) (State, error) {
	idx, err := s.turnActor(actor, PhaseFoundChain)
	if err != nil {
		return s, err
	}
	if _, ok := Info(chain); !ok {
		return s, fmt.Errorf("%w: %q", ErrUnknownChain, chain)
	}
	if s.Chains[chain].Active {
		return s, fmt.Errorf("%w: %s", ErrChainAlreadyActive, chain.DisplayName())
	}
	if len(s.PendingChainFoundation) == 0 {
		return s, fmt.Errorf("%w: no tiles waiting for a chain", ErrWrongPhase)
	}

	next := s.Clone()
	cs := next.Chains[chain]
	cs.Tiles = []TileID{}
	for _, id := range next.PendingChainFoundation {
		t := next.Board[id]
		t.Chain = chain
		next.Board[id] = t
		cs.Tiles = append(cs.Tiles, id)
	}
	cs.Active = true
	cs.Safe = len(cs.Tiles) >= SafeChainSize
	next.Chains[chain] = cs
	next.PendingChainFoundation = nil

	details := fmt.Sprintf("%s founded with %d tiles", chain.DisplayName(), len(cs.Tiles))
	if next.StockBank[chain] > 0 {
		next.StockBank[chain]--
		next.Players[idx].Stocks[chain]++
		details += "; founder receives 1 free share"
	}
	e.logPlayer(&next, idx, "Founded chain", details)
	next.Phase = PhaseBuyStock
	e.settle(&next)
	checkInvariants(s, next)
	return next, nil
}

// EndTurn draws a replacement tile and passes play to the next seat. It is
// accepted in the buy phase, or in the place phase when no tile in hand can
// legally be placed.
func (e *Engine) EndTurn(s State, actor string) (State, error) {
	idx, err := s.turnActor(actor, PhaseBuyStock, PhasePlaceTile)
	if err != nil {
		return s, err
	}
	if s.Phase == PhasePlaceTile && HasPlayableTiles(s, idx) {
		return s, ErrTilesPlayable
	}

	next := s.Clone()
	drawTile(&next, idx)
	if next.StocksPurchasedThisTurn == 0 && s.Phase == PhaseBuyStock {
		e.logPlayer(&next, idx, "Skipped buying", "")
	}
	next.CurrentPlayerIndex = (idx + 1) % len(next.Players)
	next.Phase = PhasePlaceTile
	next.StocksPurchasedThisTurn = 0
	next.LastPlacedTile = ""
	e.logPlayer(&next, idx, "Ended turn", fmt.Sprintf("%s is up", next.CurrentPlayer().Name))
	e.settle(&next)
	checkInvariants(s, next)
	return next, nil
}

// DiscardTile swaps one dead tile for a fresh draw. The discarded tile goes
// to the bottom of the bag; draws come from the top.
func (e *Engine) DiscardTile(s State, actor string, tile TileID) (State, error) {
	idx, err := s.turnActor(actor, PhasePlaceTile)
	if err != nil {
		return s, err
	}
	if !tile.Valid() {
		return s, fmt.Errorf("%w: %q", ErrInvalidCoordinate, tile)
	}
	if !s.Players[idx].HasTile(tile) {
		return s, fmt.Errorf("%w: %s", ErrTileNotInHand, tile)
	}
	if HasPlayableTiles(s, idx) {
		return s, ErrTilesPlayable
	}
	if len(s.TileBag) == 0 {
		return s, ErrTileBagEmpty
	}

	next := s.Clone()
	next.Players[idx].Tiles = slices.DeleteFunc(next.Players[idx].Tiles, func(t TileID) bool { return t == tile })
	next.TileBag = append([]TileID{tile}, next.TileBag...)
	drawTile(&next, idx)
	e.logPlayer(&next, idx, "Discarded tile", string(tile))
	checkInvariants(s, next)
	return next, nil
}

// Restart deals a fresh game for the same seats once the current one is over.
func (e *Engine) Restart(s State, actor string, seed int64) (State, error) {
	if len(s.Players) == 0 || s.Players[0].ID != actor {
		if _, ok := s.PlayerIndex(actor); !ok {
			return s, fmt.Errorf("%w: %s", ErrUnknownPlayer, actor)
		}
		return s, ErrNotHost
	}
	if s.Phase != PhaseGameOver {
		return s, fmt.Errorf("%w: game is still running", ErrWrongPhase)
	}
	seats := make([]Seat, len(s.Players))
	for i, p := range s.Players {
		seats[i] = Seat{ID: p.ID, Name: p.Name}
	}
	return e.NewGameWithSeats(seats, seed)
}

func (e *Engine) growChain(s *State, chain ChainName, tile TileID, extra []TileID) {
	cs := s.Chains[chain]
	for _, id := range append([]TileID{tile}, extra...) {
		t := s.Board[id]
		t.Chain = chain
		s.Board[id] = t
		if !slices.Contains(cs.Tiles, id) {
			cs.Tiles = append(cs.Tiles, id)
		}
	}
	cs.Safe = len(cs.Tiles) >= SafeChainSize
	s.Chains[chain] = cs
	e.logSystem(s, "Chain grew", fmt.Sprintf("%s now has %d tiles", chain.DisplayName(), len(cs.Tiles)))
}

// settle ends the game when a board end condition holds at a turn boundary.
func (e *Engine) settle(s *State) {
	if s.Phase != PhaseBuyStock && s.Phase != PhasePlaceTile {
		return
	}
	if CheckGameEnd(*s) {
		e.endGame(s, "End condition reached")
	}
}

// turnActor checks phase then turn order and returns the actor's seat.
func (s State) turnActor(actor string, phases ...Phase) (int, error) {
	if s.Phase == PhaseGameOver {
		return -1, ErrGameOver
	}
	if !slices.Contains(phases, s.Phase) {
		return -1, fmt.Errorf("%w: %s", ErrWrongPhase, s.Phase)
	}
	idx, ok := s.PlayerIndex(actor)
	if !ok {
		return -1, fmt.Errorf("%w: %s", ErrUnknownPlayer, actor)
	}
	if idx != s.CurrentPlayerIndex {
		return -1, ErrNotYourTurn
	}
	return idx, nil
}

// drawTile moves the top of the bag into a player's hand. An empty bag is a no-op.
func drawTile(s *State, playerIdx int) {
	if len(s.TileBag) == 0 {
		return
	}
	last := len(s.TileBag) - 1
	s.Players[playerIdx].Tiles = append(s.Players[playerIdx].Tiles, s.TileBag[last])
	s.TileBag = s.TileBag[:last]
}

func (e *Engine) logPlayer(s *State, idx int, action, details string) {
	p := s.Players[idx]
	s.Log = append(s.Log, LogEntry{Timestamp: e.now().UTC(), PlayerID: p.ID, PlayerName: p.Name, Action: action, Details: details})
}

func (e *Engine) logSystem(s *State, action, details string) {
	s.Log = append(s.Log, LogEntry{Timestamp: e.now().UTC(), PlayerID: SystemActorID, PlayerName: systemActorDisplay, Action: action, Details: details})
}

func joinChains(chains []ChainName) string {
	names := make([]string, len(chains))
	for i, c := range chains {
		names[i] = c.DisplayName()
	}
	return strings.Join(names, ", ")
}
