package main

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/jonashappcreative/hotelgame/internal/engine"
	"github.com/jonashappcreative/hotelgame/internal/game"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

var chainColors = map[engine.ChainName]lipgloss.Color{
	engine.Sackson:     lipgloss.Color("#D9480F"),
	engine.Tower:       lipgloss.Color("#F59F00"),
	engine.Worldwide:   lipgloss.Color("#7950F2"),
	engine.American:    lipgloss.Color("#1C7ED6"),
	engine.Festival:    lipgloss.Color("#2F9E44"),
	engine.Continental: lipgloss.Color("#C2255C"),
	engine.Imperial:    lipgloss.Color("#0CA678"),
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#22B8CF"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#495057")).Padding(0, 1)
	emptyCell   = lipgloss.NewStyle().Foreground(lipgloss.Color("#495057"))
	looseCell   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F8F9FA")).Background(lipgloss.Color("#868E96"))
	handCell    = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("#FFD43B"))
	lastCell    = lipgloss.NewStyle().Bold(true).Reverse(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#868E96"))
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#51CF66"))
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

// promptPassword hides input on a terminal and falls back to a plain read
// when stdin is piped.
func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptRequired(label)
	}
	for {
		fmt.Printf("%s: ", label)
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		if text := strings.TrimSpace(string(raw)); text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

// parsePurchases reads "chain:qty" pairs, e.g. "tower:2 american:1".
// A bare chain name buys one share.
func parsePurchases(args []string) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(args))
	for _, arg := range args {
		name, qtyRaw, found := strings.Cut(strings.TrimSpace(arg), ":")
		chain, err := engine.ParseChain(name)
		if err != nil {
			return nil, err
		}
		qty := 1
		if found {
			qty, err = strconv.Atoi(strings.TrimSpace(qtyRaw))
			if err != nil || qty <= 0 {
				return nil, fmt.Errorf("invalid quantity in %q", arg)
			}
		}
		out = append(out, map[string]any{"chain": string(chain), "quantity": qty})
	}
	return out, nil
}

func normalizeTile(raw string) (string, error) {
	id, _, _, err := engine.ParseTile(strings.ToUpper(strings.TrimSpace(raw)))
	if err != nil {
		return "", err
	}
	return string(id), nil
}

func money(v int) string {
	s := strconv.Itoa(v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-$" + b.String()
	}
	return "$" + b.String()
}

// renderBoard draws the 9x12 grid. Cells of the viewer's hand are
// highlighted so the board doubles as a hand picker.
func renderBoard(gv *game.GameView) string {
	var b strings.Builder
	b.WriteString("   ")
	for c := 0; c < engine.BoardCols; c++ {
		b.WriteString(fmt.Sprintf(" %c ", 'A'+c))
	}
	b.WriteByte('\n')
	for row := 1; row <= engine.BoardRows; row++ {
		b.WriteString(fmt.Sprintf("%d  ", row))
		for c := 0; c < engine.BoardCols; c++ {
			id := engine.NewTileID(row, byte('A'+c))
			b.WriteString(renderCell(gv, id))
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderCell(gv *game.GameView, id engine.TileID) string {
	label := fmt.Sprintf(" %-2s", string(id))
	tile := gv.Board[id]
	switch {
	case tile.Placed && tile.Chain != "":
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(chainColors[tile.Chain])
		if id == gv.LastPlacedTile {
			style = style.Bold(true).Underline(true)
		}
		return style.Render(label)
	case tile.Placed && id == gv.LastPlacedTile:
		return lastCell.Render(label)
	case tile.Placed:
		return looseCell.Render(label)
	case slices.Contains(gv.YourTiles, id):
		return handCell.Render(label)
	default:
		return emptyCell.Render(label)
	}
}

func renderChains(gv *game.GameView) string {
	lines := []string{titleStyle.Render("Chains")}
	for _, c := range gv.Chains {
		swatch := lipgloss.NewStyle().Background(chainColors[c.Name]).Render("  ")
		status := mutedStyle.Render("available")
		if c.Active {
			status = fmt.Sprintf("%2d tiles %6s", c.Size, money(c.Price))
			if c.Safe {
				status += " safe"
			}
		}
		lines = append(lines, fmt.Sprintf("%s %-12s %s  bank %2d", swatch, c.DisplayName, status, c.BankShares))
	}
	return strings.Join(lines, "\n")
}

func renderPlayers(gv *game.GameView) string {
	lines := []string{titleStyle.Render("Players")}
	for i, p := range gv.Players {
		name := p.Name
		if i == gv.CurrentPlayerIndex {
			name = activeStyle.Render("> " + name)
		} else {
			name = "  " + name
		}
		var holdings []string
		for _, c := range engine.ChainOrder {
			if n := p.Stocks[c]; n > 0 {
				holdings = append(holdings, fmt.Sprintf("%s:%d", c, n))
			}
		}
		lines = append(lines, fmt.Sprintf("%s  %s (worth %s)  %s", name, money(p.Cash), money(p.NetWorth), strings.Join(holdings, " ")))
	}
	return strings.Join(lines, "\n")
}

func phasePrompt(gv *game.GameView) string {
	current := ""
	if gv.CurrentPlayerIndex >= 0 && gv.CurrentPlayerIndex < len(gv.Players) {
		current = gv.Players[gv.CurrentPlayerIndex].Name
	}
	switch gv.Phase {
	case engine.PhasePlaceTile:
		return current + " places a tile"
	case engine.PhaseFoundChain:
		return current + " names a new chain"
	case engine.PhaseBuyStock:
		return fmt.Sprintf("%s may buy shares (%d/%d bought)", current, gv.StocksPurchasedThisTurn, engine.MaxSharesPerTurn)
	case engine.PhaseMergerChooseSurvivor:
		return fmt.Sprintf("%s picks the survivor among %v", current, gv.SurvivorCandidates)
	case engine.PhaseMergerPayBonuses:
		return current + " pays merger bonuses"
	case engine.PhaseMergerHandleStock:
		if gv.Merger != nil && gv.Merger.CurrentPlayerIndex < len(gv.Players) {
			return fmt.Sprintf("%s decides on %s shares", gv.Players[gv.Merger.CurrentPlayerIndex].Name, gv.Merger.CurrentDefunctChain.DisplayName())
		}
		return "merger share decisions"
	case engine.PhaseGameOver:
		return "game over, winner: " + gv.Winner
	default:
		return string(gv.Phase)
	}
}

func renderRoom(v game.RoomView, logLines int) string {
	header := titleStyle.Render(fmt.Sprintf("Room %s", v.Code)) + mutedStyle.Render(fmt.Sprintf("  %s  v%d", v.Status, v.Version))
	if v.Game == nil {
		lines := []string{header, ""}
		for _, s := range v.Seats {
			mark := mutedStyle.Render("waiting")
			if s.Ready {
				mark = activeStyle.Render("ready")
			}
			name := s.Name
			if s.IsHost {
				name += " (host)"
			}
			if s.IsYou {
				name += " *"
			}
			lines = append(lines, fmt.Sprintf("  %-28s %s", name, mark))
		}
		lines = append(lines, "", mutedStyle.Render(fmt.Sprintf("%d/%d seats, game starts when at least %d are ready", len(v.Seats), v.MaxPlayers, engine.MinPlayers)))
		return strings.Join(lines, "\n")
	}

	gv := v.Game
	side := lipgloss.JoinVertical(lipgloss.Left, renderChains(gv), "", renderPlayers(gv))
	body := lipgloss.JoinHorizontal(lipgloss.Top, panelStyle.Render(renderBoard(gv)), " ", panelStyle.Render(side))

	parts := []string{header, body, activeStyle.Render(phasePrompt(gv))}
	if len(gv.YourTiles) > 0 {
		hand := make([]string, 0, len(gv.YourTiles))
		for _, t := range gv.YourTiles {
			label := string(t)
			if !slices.Contains(gv.PlayableTiles, t) {
				label = mutedStyle.Render(label + "x")
			}
			hand = append(hand, label)
		}
		parts = append(parts, fmt.Sprintf("Your tiles: %s   bag: %d", strings.Join(hand, " "), gv.TileBagCount))
	}
	if len(gv.EndGameVotes) > 0 {
		parts = append(parts, fmt.Sprintf("End-game votes: %d/%d", len(gv.EndGameVotes), gv.VotesNeeded))
	}
	if logLines > 0 && len(gv.Log) > 0 {
		start := max(0, len(gv.Log)-logLines)
		lines := []string{mutedStyle.Render("Recent")}
		for _, e := range gv.Log[start:] {
			line := e.PlayerName + ": " + e.Action
			if e.Details != "" {
				line += " (" + e.Details + ")"
			}
			lines = append(lines, "  "+line)
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}
	return strings.Join(parts, "\n")
}

func renderScores(s game.ScoresView) {
	if s.Final {
		accent.Println("\n== FINAL STANDINGS ==")
	} else {
		accent.Println("\n== STANDINGS IF THE GAME ENDED NOW ==")
	}
	fmt.Printf("%-5s %-24s %12s\n", "RANK", "PLAYER", "CASH")
	for _, st := range s.Standings {
		line := fmt.Sprintf("%-5d %-24s %12s", st.Rank, st.Name, money(st.Cash))
		if st.Rank == 1 {
			success.Println(line)
			continue
		}
		fmt.Println(line)
	}
	fmt.Println()
}
