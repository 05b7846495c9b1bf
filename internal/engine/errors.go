package engine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCoordinate      = errors.New("invalid coordinate")
	ErrNotYourTurn            = errors.New("not your turn")
	ErrTileNotInHand          = errors.New("tile not in hand")
	ErrInvalidPlacement       = errors.New("invalid placement")
	ErrInvalidMergerState     = errors.New("invalid merger state")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInsufficientBankShares = errors.New("insufficient bank shares")
	ErrOverPurchaseLimit      = errors.New("over purchase limit")
	ErrChainAlreadyActive     = errors.New("chain already active")
	ErrUnknownChain           = errors.New("unknown chain")

	ErrWrongPhase         = errors.New("action not allowed in current phase")
	ErrChainNotActive     = errors.New("chain not active")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrTilesPlayable      = errors.New("hand still has a playable tile")
	ErrTileBagEmpty       = errors.New("tile bag is empty")
	ErrNoSafeChain        = errors.New("no safe chain on the board")
	ErrAlreadyVoted       = errors.New("already voted to end the game")
	ErrUnknownPlayer      = errors.New("unknown player")
	ErrInvalidPlayerCount = errors.New("game requires 4 to 6 players")
	ErrNotHost            = errors.New("only the host can do that")
	ErrGameOver           = errors.New("game is over")
)

var (
	ErrCannotMergeSafeChains = fmt.Errorf("%w: cannot merge two or more safe chains", ErrInvalidPlacement)
	ErrMaxChainsReached      = fmt.Errorf("%w: all chains are already active", ErrInvalidPlacement)
)

var reasonCodes = []struct {
	err  error
	code string
}{
	{ErrCannotMergeSafeChains, "cannot_merge_safe_chains"},
	{ErrMaxChainsReached, "max_chains_reached"},
	{ErrInvalidCoordinate, "invalid_coordinate"},
	{ErrNotYourTurn, "not_your_turn"},
	{ErrTileNotInHand, "tile_not_in_hand"},
	{ErrInvalidPlacement, "invalid_placement"},
	{ErrInvalidMergerState, "invalid_merger_state"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrInsufficientBankShares, "insufficient_bank_shares"},
	{ErrOverPurchaseLimit, "over_purchase_limit"},
	{ErrChainAlreadyActive, "chain_already_active"},
	{ErrUnknownChain, "unknown_chain"},
	{ErrWrongPhase, "wrong_phase"},
	{ErrChainNotActive, "chain_not_active"},
	{ErrInvalidQuantity, "invalid_quantity"},
	{ErrTilesPlayable, "tiles_playable"},
	{ErrTileBagEmpty, "tile_bag_empty"},
	{ErrNoSafeChain, "no_safe_chain"},
	{ErrAlreadyVoted, "already_voted"},
	{ErrUnknownPlayer, "unknown_player"},
	{ErrInvalidPlayerCount, "invalid_player_count"},
	{ErrNotHost, "not_host"},
	{ErrGameOver, "game_over"},
}

// ReasonCode maps a rejection to a stable machine-readable string.
// Unrecognised errors yield "".
func ReasonCode(err error) string {
	if err == nil {
		return ""
	}
	for _, rc := range reasonCodes {
		if errors.Is(err, rc.err) {
			return rc.code
		}
	}
	return ""
}

// InvariantError reports a state transition that broke an economic or board
// invariant. It is raised with panic: it is a defect, never a rejection.
type InvariantError struct {
	Rule   string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("engine invariant %s violated: %s", e.Rule, e.Detail)
}

func violation(rule, format string, args ...any) {
	panic(&InvariantError{Rule: rule, Detail: fmt.Sprintf(format, args...)})
}

// checkInvariants panics when next is not a legal successor of prev.
func checkInvariants(prev, next State) {
	for _, p := range next.Players {
		if p.Cash < 0 {
			violation("cash", "player %s has cash %d", p.ID, p.Cash)
		}
	}
	for _, chain := range ChainOrder {
		bank := next.StockBank[chain]
		if bank < 0 {
			violation("bank", "%s bank is %d", chain, bank)
		}
		held := 0
		for _, p := range next.Players {
			if p.Stocks[chain] < 0 {
				violation("holding", "player %s holds %d %s", p.ID, p.Stocks[chain], chain)
			}
			held += p.Stocks[chain]
		}
		if bank+held != SharesPerChain {
			violation("conservation", "%s bank %d + held %d != %d", chain, bank, held, SharesPerChain)
		}
		before, after := prev.Chains[chain], next.Chains[chain]
		if before.Active && after.Active && len(after.Tiles) < len(before.Tiles) {
			violation("shrink", "%s went from %d to %d tiles", chain, len(before.Tiles), len(after.Tiles))
		}
	}
	for id, t := range prev.Board {
		if t.Placed && !next.Board[id].Placed {
			violation("placed", "tile %s was un-placed", id)
		}
	}
}
