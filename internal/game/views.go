package game

import (
	"maps"
	"slices"

	"github.com/jonashappcreative/hotelgame/internal/engine"
)

const viewLogLimit = 60

func (s *Service) view(r Room, viewer string) RoomView {
	out := RoomView{
		ID:          r.ID,
		Code:        r.Code,
		Status:      r.Status,
		HostID:      r.HostID,
		MaxPlayers:  r.MaxPlayers,
		HasPasscode: r.PasscodeHash != "",
		Version:     r.Version,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	for _, seat := range r.Seats {
		out.Seats = append(out.Seats, SeatView{
			UserID: seat.UserID,
			Name:   seat.Name,
			Ready:  seat.Ready,
			IsHost: seat.UserID == r.HostID,
			IsYou:  seat.UserID == viewer,
		})
	}
	if r.State != nil {
		gv := gameView(*r.State, viewer)
		out.Game = &gv
	}
	return out
}

// gameView projects st for viewer. Only the viewer's own hand is exposed.
func gameView(st engine.State, viewer string) GameView {
	gv := GameView{
		Board:                   maps.Clone(st.Board),
		CurrentPlayerIndex:      st.CurrentPlayerIndex,
		Phase:                   st.Phase,
		LastPlacedTile:          st.LastPlacedTile,
		PendingChainFoundation:  slices.Clone(st.PendingChainFoundation),
		SurvivorCandidates:      slices.Clone(st.SurvivorCandidates),
		Merger:                  st.Merger,
		StocksPurchasedThisTurn: st.StocksPurchasedThisTurn,
		TileBagCount:            len(st.TileBag),
		EndGameVotes:            slices.Clone(st.EndGameVotes),
		VotesNeeded:             engine.VotesNeeded(len(st.Players)),
		Winner:                  st.Winner,
		Standings:               st.Standings,
		YourIndex:               -1,
	}
	log := st.Log
	if len(log) > viewLogLimit {
		log = log[len(log)-viewLogLimit:]
	}
	gv.Log = slices.Clone(log)

	for _, c := range engine.ChainOrder {
		cs := st.Chains[c]
		info, _ := engine.Info(c)
		gv.Chains = append(gv.Chains, ChainView{
			Name:        c,
			DisplayName: info.DisplayName,
			Tier:        info.Tier,
			Size:        cs.Size(),
			Active:      cs.Active,
			Safe:        cs.Safe,
			Price:       st.Price(c),
			BankShares:  st.StockBank[c],
			Bonus:       engine.Bonuses(c, cs.Size()),
		})
	}
	for i, p := range st.Players {
		gv.Players = append(gv.Players, PlayerView{
			ID:        p.ID,
			Name:      p.Name,
			Cash:      p.Cash,
			Stocks:    maps.Clone(p.Stocks),
			TileCount: len(p.Tiles),
			NetWorth:  st.NetWorth(i),
		})
		if p.ID == viewer {
			gv.YourIndex = i
			gv.YourTiles = slices.Clone(p.Tiles)
			if st.Phase == engine.PhasePlaceTile && i == st.CurrentPlayerIndex {
				gv.PlayableTiles = engine.PlayableTiles(st, i)
			}
		}
	}
	return gv
}
