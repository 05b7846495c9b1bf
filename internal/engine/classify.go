package engine

import (
	"fmt"
	"slices"
)

type PlacementAction string

const (
	ActionPlaceOnly   PlacementAction = "place_only"
	ActionFormChain   PlacementAction = "form_chain"
	ActionGrowChain   PlacementAction = "grow_chain"
	ActionMergeChains PlacementAction = "merge_chains"
)

// Placement is the classifier's verdict for putting one tile on the board.
type Placement struct {
	Tile           TileID          `json:"tile"`
	Action         PlacementAction `json:"action,omitempty"`
	Chains         []ChainName     `json:"chains,omitempty"`
	Unincorporated []TileID        `json:"unincorporated,omitempty"`
	Err            error           `json:"-"`
}

func (p Placement) Valid() bool { return p.Err == nil }

// Classify decides what placing tile would do to the board. It does not
// check whose hand the tile is in.
func Classify(s State, tile TileID) Placement {
	out := Placement{Tile: tile}
	adj, err := AdjacentTiles(tile)
	if err != nil {
		out.Err = err
		return out
	}
	if s.Board[tile].Placed {
		out.Err = fmt.Errorf("%w: %s is already on the board", ErrInvalidPlacement, tile)
		return out
	}

	for _, id := range adj {
		t := s.Board[id]
		if !t.Placed {
			continue
		}
		if t.Chain != "" && s.Chains[t.Chain].Active {
			if !slices.Contains(out.Chains, t.Chain) {
				out.Chains = append(out.Chains, t.Chain)
			}
			continue
		}
		out.Unincorporated = append(out.Unincorporated, id)
	}
	slices.SortFunc(out.Chains, func(a, b ChainName) int { return chainRank(a) - chainRank(b) })

	if len(out.Chains) >= 2 {
		safe := 0
		for _, c := range out.Chains {
			if s.Chains[c].Safe {
				safe++
			}
		}
		if safe >= 2 {
			out.Err = ErrCannotMergeSafeChains
			return out
		}
	}
	if len(out.Chains) == 0 && len(out.Unincorporated) > 0 && len(s.ActiveChains()) >= len(ChainOrder) {
		out.Err = ErrMaxChainsReached
		return out
	}

	switch {
	case len(out.Chains) >= 2:
		out.Action = ActionMergeChains
	case len(out.Chains) == 1:
		out.Action = ActionGrowChain
	case len(out.Unincorporated) > 0:
		out.Action = ActionFormChain
	default:
		out.Action = ActionPlaceOnly
	}
	return out
}

// PlayableTiles returns the tiles in a player's hand that may legally be placed.
func PlayableTiles(s State, playerIdx int) []TileID {
	if playerIdx < 0 || playerIdx >= len(s.Players) {
		return nil
	}
	var out []TileID
	for _, id := range s.Players[playerIdx].Tiles {
		if Classify(s, id).Valid() {
			out = append(out, id)
		}
	}
	return out
}

func HasPlayableTiles(s State, playerIdx int) bool {
	return len(PlayableTiles(s, playerIdx)) > 0
}
