package engine

import (
	"fmt"
	"slices"
	"strings"
)

// StockDecision is one holder's disposal of shares in the defunct chain.
type StockDecision struct {
	Sell  int `json:"sell"`
	Trade int `json:"trade"`
	Keep  int `json:"keep"`
}

// survivorCandidates returns the single chain that must survive, or the
// chains tied for largest when a choice is needed.
func survivorCandidates(s State, touched []ChainName) []ChainName {
	for _, c := range touched {
		if s.Chains[c].Safe {
			return []ChainName{c}
		}
	}
	largest := 0
	for _, c := range touched {
		largest = max(largest, s.Chains[c].Size())
	}
	var out []ChainName
	for _, c := range touched {
		if s.Chains[c].Size() == largest {
			out = append(out, c)
		}
	}
	return out
}

// defunctOrder sorts the absorbed chains largest first; equal sizes keep
// the fixed chain order.
func defunctOrder(s State, survivor ChainName, touched []ChainName) []ChainName {
	var out []ChainName
	for _, c := range touched {
		if c != survivor {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b ChainName) int {
		if d := s.Chains[b].Size() - s.Chains[a].Size(); d != 0 {
			return d
		}
		return chainRank(a) - chainRank(b)
	})
	return out
}

func (e *Engine) beginMerger(s *State, survivor ChainName, touched []ChainName) {
	defunct := defunctOrder(*s, survivor, touched)
	s.Merger = &MergerState{
		SurvivingChain:      survivor,
		DefunctChains:       defunct,
		CurrentDefunctChain: defunct[0],
		CurrentPlayerIndex:  s.CurrentPlayerIndex,
	}
	s.MergerChains = nil
	s.SurvivorCandidates = nil
	s.Phase = PhaseMergerPayBonuses
	e.logSystem(s, "Merger", fmt.Sprintf("%s absorbs %s", survivor.DisplayName(), joinChains(defunct)))
}

// ChooseSurvivor resolves a size tie between merging chains.
func (e *Engine) ChooseSurvivor(s State, actor string, chain ChainName) (State, error) {
	idx, err := s.mergerActor(actor, PhaseMergerChooseSurvivor)
	if err != nil {
		return s, err
	}
	if _, ok := Info(chain); !ok {
		return s, fmt.Errorf("%w: %q", ErrUnknownChain, chain)
	}
	if !slices.Contains(s.SurvivorCandidates, chain) {
		return s, fmt.Errorf("%w: %s is not tied for largest", ErrInvalidMergerState, chain.DisplayName())
	}

	next := s.Clone()
	e.logPlayer(&next, idx, "Chose survivor", chain.DisplayName())
	e.beginMerger(&next, chain, next.MergerChains)
	checkInvariants(s, next)
	return next, nil
}

// PayMergerBonuses pays the holders of the current defunct chain and moves
// on to its first shareholder, or past the chain entirely if nobody holds it.
func (e *Engine) PayMergerBonuses(s State, actor string) (State, error) {
	if _, err := s.mergerActor(actor, PhaseMergerPayBonuses); err != nil {
		return s, err
	}
	if s.Merger.BonusesPaid {
		return s, fmt.Errorf("%w: bonuses already paid for %s", ErrInvalidMergerState, s.Merger.CurrentDefunctChain.DisplayName())
	}

	next := s.Clone()
	m := next.Merger
	chain := m.CurrentDefunctChain
	m.Payouts = payBonuses(next.Players, chain, next.Chains[chain].Size())
	m.BonusesPaid = true
	e.logSystem(&next, chain.DisplayName()+" bonuses paid", describePayouts(m.Payouts))

	if holder, ok := nextHolder(next.Players, chain, next.CurrentPlayerIndex, 0); ok {
		m.CurrentPlayerIndex = holder
		next.Phase = PhaseMergerHandleStock
	} else {
		e.advanceDefunct(&next)
	}
	e.settle(&next)
	checkInvariants(s, next)
	return next, nil
}

// SubmitStockDecision applies one holder's sell/trade/keep split.
func (e *Engine) SubmitStockDecision(s State, actor string, d StockDecision) (State, error) {
	if s.Phase == PhaseGameOver {
		return s, ErrGameOver
	}
	if s.Phase != PhaseMergerHandleStock || s.Merger == nil {
		return s, fmt.Errorf("%w: %w: %s", ErrInvalidMergerState, ErrWrongPhase, s.Phase)
	}
	idx, ok := s.PlayerIndex(actor)
	if !ok {
		return s, fmt.Errorf("%w: %s", ErrUnknownPlayer, actor)
	}
	if idx != s.Merger.CurrentPlayerIndex {
		return s, ErrNotYourTurn
	}
	defunct, survivor := s.Merger.CurrentDefunctChain, s.Merger.SurvivingChain
	held := s.Players[idx].Stocks[defunct]
	switch {
	case d.Sell < 0 || d.Trade < 0 || d.Keep < 0:
		return s, fmt.Errorf("%w: quantities must not be negative", ErrInvalidMergerState)
	case d.Sell+d.Trade+d.Keep != held:
		return s, fmt.Errorf("%w: decision covers %d shares, player holds %d", ErrInvalidMergerState, d.Sell+d.Trade+d.Keep, held)
	case d.Trade%TradeRatio != 0:
		return s, fmt.Errorf("%w: trade must be even", ErrInvalidMergerState)
	}

	next := s.Clone()
	p := &next.Players[idx]
	price := next.Price(defunct)
	p.Cash += d.Sell * price
	p.Stocks[defunct] -= d.Sell + d.Trade
	next.StockBank[defunct] += d.Sell + d.Trade
	received := min(d.Trade/TradeRatio, next.StockBank[survivor])
	p.Stocks[survivor] += received
	next.StockBank[survivor] -= received

	var parts []string
	if d.Sell > 0 {
		parts = append(parts, fmt.Sprintf("sold %d for $%d", d.Sell, d.Sell*price))
	}
	if d.Trade > 0 {
		parts = append(parts, fmt.Sprintf("traded %d for %d %s", d.Trade, received, survivor.DisplayName()))
	}
	if d.Keep > 0 {
		parts = append(parts, fmt.Sprintf("kept %d", d.Keep))
	}
	e.logPlayer(&next, idx, defunct.DisplayName()+" stock decision", strings.Join(parts, ", "))

	offset := (idx-next.CurrentPlayerIndex+len(next.Players))%len(next.Players) + 1
	if holder, ok := nextHolder(next.Players, defunct, next.CurrentPlayerIndex, offset); ok {
		next.Merger.CurrentPlayerIndex = holder
	} else {
		e.advanceDefunct(&next)
	}
	e.settle(&next)
	checkInvariants(s, next)
	return next, nil
}

// nextHolder scans seats anchor+offset, anchor+offset+1, ... up to but not
// including anchor again, returning the first seat holding chain shares.
func nextHolder(players []Player, chain ChainName, anchor, offset int) (int, bool) {
	n := len(players)
	for k := offset; k < n; k++ {
		i := (anchor + k) % n
		if players[i].Stocks[chain] > 0 {
			return i, true
		}
	}
	return -1, false
}

func (e *Engine) advanceDefunct(s *State) {
	m := s.Merger
	pos := slices.Index(m.DefunctChains, m.CurrentDefunctChain)
	if pos >= 0 && pos+1 < len(m.DefunctChains) {
		m.CurrentDefunctChain = m.DefunctChains[pos+1]
		m.CurrentPlayerIndex = s.CurrentPlayerIndex
		m.BonusesPaid = false
		m.Payouts = nil
		s.Phase = PhaseMergerPayBonuses
		return
	}
	e.completeMerger(s)
}

// completeMerger folds the trigger tile, its loose neighbours and every
// defunct chain into the survivor.
func (e *Engine) completeMerger(s *State) {
	m := s.Merger
	survivor := s.Chains[m.SurvivingChain]
	absorb := []TileID{s.LastPlacedTile}
	for _, id := range neighbours(s.LastPlacedTile) {
		if t := s.Board[id]; t.Placed && t.Chain == "" {
			absorb = append(absorb, id)
		}
	}
	for _, c := range m.DefunctChains {
		absorb = append(absorb, s.Chains[c].Tiles...)
	}
	for _, id := range absorb {
		t := s.Board[id]
		t.Chain = m.SurvivingChain
		s.Board[id] = t
		if !slices.Contains(survivor.Tiles, id) {
			survivor.Tiles = append(survivor.Tiles, id)
		}
	}
	survivor.Safe = len(survivor.Tiles) >= SafeChainSize
	s.Chains[m.SurvivingChain] = survivor
	for _, c := range m.DefunctChains {
		s.Chains[c] = ChainState{Name: c, Tiles: []TileID{}}
	}

	e.logSystem(s, "Merger complete", fmt.Sprintf("%s absorbed %s and now has %d tiles",
		m.SurvivingChain.DisplayName(), joinChains(m.DefunctChains), len(survivor.Tiles)))
	s.Merger = nil
	s.Phase = PhaseBuyStock
}

func describePayouts(payouts []Payout) string {
	if len(payouts) == 0 {
		return "no shareholders"
	}
	parts := make([]string, len(payouts))
	for i, p := range payouts {
		parts[i] = fmt.Sprintf("%s $%d (%s)", p.PlayerName, p.Amount, p.Kind)
	}
	return strings.Join(parts, ", ")
}

// mergerActor gates the survivor and bonus steps, which belong to the
// player whose tile triggered the merger.
func (s State) mergerActor(actor string, phase Phase) (int, error) {
	if s.Phase == PhaseGameOver {
		return -1, ErrGameOver
	}
	if s.Phase != phase || (phase != PhaseMergerChooseSurvivor && s.Merger == nil) {
		return -1, fmt.Errorf("%w: %w: %s", ErrInvalidMergerState, ErrWrongPhase, s.Phase)
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
