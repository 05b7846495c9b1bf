package engine

import (
	"fmt"
	"slices"
	"strings"
)

type Purchase struct {
	Chain    ChainName `json:"chain"`
	Quantity int       `json:"quantity"`
}

// BuyStocks applies a batch of purchases atomically. The per-turn cap counts
// shares bought by earlier calls in the same turn.
func (e *Engine) BuyStocks(s State, actor string, purchases []Purchase) (State, error) {
	idx, err := s.turnActor(actor, PhaseBuyStock)
	if err != nil {
		return s, err
	}
	if len(purchases) == 0 {
		return s, fmt.Errorf("%w: nothing to buy", ErrInvalidQuantity)
	}

	wanted := make(map[ChainName]int, len(purchases))
	total, cost := 0, 0
	for _, p := range purchases {
		if _, ok := Info(p.Chain); !ok {
			return s, fmt.Errorf("%w: %q", ErrUnknownChain, p.Chain)
		}
		if p.Quantity <= 0 {
			return s, fmt.Errorf("%w: %d %s", ErrInvalidQuantity, p.Quantity, p.Chain)
		}
		if !s.Chains[p.Chain].Active {
			return s, fmt.Errorf("%w: %s", ErrChainNotActive, p.Chain.DisplayName())
		}
		wanted[p.Chain] += p.Quantity
		total += p.Quantity
		cost += s.Price(p.Chain) * p.Quantity
	}
	if s.StocksPurchasedThisTurn+total > MaxSharesPerTurn {
		return s, fmt.Errorf("%w: %d already bought this turn, %d requested, max %d", ErrOverPurchaseLimit, s.StocksPurchasedThisTurn, total, MaxSharesPerTurn)
	}
	for _, c := range ChainOrder {
		if wanted[c] > s.StockBank[c] {
			return s, fmt.Errorf("%w: %s has %d left", ErrInsufficientBankShares, c.DisplayName(), s.StockBank[c])
		}
	}
	if cost > s.Players[idx].Cash {
		return s, fmt.Errorf("%w: costs $%d, has $%d", ErrInsufficientFunds, cost, s.Players[idx].Cash)
	}

	next := s.Clone()
	var parts []string
	for _, c := range ChainOrder {
		n := wanted[c]
		if n == 0 {
			continue
		}
		next.StockBank[c] -= n
		next.Players[idx].Stocks[c] += n
		parts = append(parts, fmt.Sprintf("%d %s", n, c.DisplayName()))
	}
	next.Players[idx].Cash -= cost
	next.StocksPurchasedThisTurn += total
	e.logPlayer(&next, idx, "Bought stocks", fmt.Sprintf("%s for $%d", strings.Join(parts, ", "), cost))
	checkInvariants(s, next)
	return next, nil
}

// CheckGameEnd reports whether some active chain reached 41 tiles or every
// active chain is safe.
func CheckGameEnd(s State) bool {
	active := s.ActiveChains()
	if len(active) == 0 {
		return false
	}
	allSafe := true
	for _, c := range active {
		cs := s.Chains[c]
		if cs.Size() >= EndGameChainSize {
			return true
		}
		if !cs.Safe {
			allSafe = false
		}
	}
	return allSafe
}

// CastEndGameVote records a vote to stop now. Once half the table (rounded
// up) agrees, the game is scored immediately.
func (e *Engine) CastEndGameVote(s State, actor string) (State, error) {
	if s.Phase == PhaseGameOver {
		return s, ErrGameOver
	}
	if s.Phase != PhasePlaceTile && s.Phase != PhaseBuyStock {
		return s, fmt.Errorf("%w: %s", ErrWrongPhase, s.Phase)
	}
	idx, ok := s.PlayerIndex(actor)
	if !ok {
		return s, fmt.Errorf("%w: %s", ErrUnknownPlayer, actor)
	}
	if slices.Contains(s.EndGameVotes, actor) {
		return s, ErrAlreadyVoted
	}
	hasSafe := false
	for _, c := range s.ActiveChains() {
		hasSafe = hasSafe || s.Chains[c].Safe
	}
	if !hasSafe {
		return s, ErrNoSafeChain
	}

	next := s.Clone()
	next.EndGameVotes = append(next.EndGameVotes, actor)
	needed := VotesNeeded(len(next.Players))
	e.logPlayer(&next, idx, "Voted to end the game", fmt.Sprintf("%d of %d votes", len(next.EndGameVotes), needed))
	if len(next.EndGameVotes) >= needed {
		e.endGame(&next, "Players voted to end the game")
	}
	checkInvariants(s, next)
	return next, nil
}

func VotesNeeded(players int) int {
	return (players + 1) / 2
}

// FinalScores computes the standings that scoring s right now would produce.
func FinalScores(s State) []Standing {
	next := s.Clone()
	scoreFinal(&next)
	return rankPlayers(next.Players)
}

func (e *Engine) endGame(s *State, reason string) {
	payouts := scoreFinal(s)
	s.Standings = rankPlayers(s.Players)
	s.Winner = s.Standings[0].Name
	s.Phase = PhaseGameOver
	s.Merger = nil
	s.PendingChainFoundation = nil
	s.MergerChains = nil
	s.SurvivorCandidates = nil
	e.logSystem(s, "Game over", reason)
	if len(payouts) > 0 {
		e.logSystem(s, "Final bonuses", describePayouts(payouts))
	}
	e.logSystem(s, "Winner", fmt.Sprintf("%s with $%d", s.Winner, s.Standings[0].Cash))
}

// scoreFinal pays bonuses on every active chain and sells all holdings in
// them back to the bank at the final price.
func scoreFinal(s *State) []Payout {
	var payouts []Payout
	for _, c := range s.ActiveChains() {
		size := s.Chains[c].Size()
		payouts = append(payouts, payBonuses(s.Players, c, size)...)
		price := StockPrice(c, size)
		for i := range s.Players {
			n := s.Players[i].Stocks[c]
			if n == 0 {
				continue
			}
			s.Players[i].Cash += n * price
			s.Players[i].Stocks[c] = 0
			s.StockBank[c] += n
		}
	}
	return payouts
}

func rankPlayers(players []Player) []Standing {
	out := make([]Standing, len(players))
	for i, p := range players {
		out[i] = Standing{PlayerID: p.ID, Name: p.Name, Cash: p.Cash}
	}
	slices.SortStableFunc(out, func(a, b Standing) int { return b.Cash - a.Cash })
	for i := range out {
		out[i].Rank = i + 1
		if i > 0 && out[i].Cash == out[i-1].Cash {
			out[i].Rank = out[i-1].Rank
		}
	}
	return out
}
