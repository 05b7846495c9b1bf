package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jonashappcreative/hotelgame/internal/engine"
	"github.com/jonashappcreative/hotelgame/internal/game"
)

const (
	colorTurn     = 0x3B82F6
	colorReminder = 0xF59E0B
	colorGameOver = 0x10B981
	webhookName   = "Hotel Game"
)

// Discord posts turn notifications to a channel webhook.
type Discord struct {
	session   *discordgo.Session
	webhookID string
	token     string
	log       *slog.Logger
}

func NewDiscord(webhookURL string, logger *slog.Logger) (*Discord, error) {
	if logger == nil {
		logger = slog.Default()
	}
	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &Discord{session: session, webhookID: id, token: token, log: logger}, nil
}

func (d *Discord) TurnStarted(ctx context.Context, room game.Room, player engine.Player) error {
	return d.send(ctx, turnEmbed(room, player, 0))
}

func (d *Discord) TurnReminder(ctx context.Context, room game.Room, player engine.Player, idle time.Duration) error {
	return d.send(ctx, turnEmbed(room, player, idle))
}

func (d *Discord) GameOver(ctx context.Context, room game.Room) error {
	return d.send(ctx, gameOverEmbed(room))
}

func (d *Discord) send(ctx context.Context, embed *discordgo.MessageEmbed) error {
	_, err := d.session.WebhookExecute(d.webhookID, d.token, false, &discordgo.WebhookParams{
		Username: webhookName,
		Embeds:   []*discordgo.MessageEmbed{embed},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	d.log.Debug("discord notification sent", "title", embed.Title)
	return nil
}

func turnEmbed(room game.Room, player engine.Player, idle time.Duration) *discordgo.MessageEmbed {
	st := room.State
	e := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Room %s: %s to play", room.Code, player.Name),
		Description: phaseHint(st.Phase),
		Color:       colorTurn,
		Timestamp:   room.LastActionAt.UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Cash", Value: fmt.Sprintf("$%d", player.Cash), Inline: true},
			{Name: "Tiles left", Value: fmt.Sprintf("%d", len(st.TileBag)), Inline: true},
		},
	}
	if active := st.ActiveChains(); len(active) > 0 {
		lines := make([]string, 0, len(active))
		for _, c := range active {
			lines = append(lines, fmt.Sprintf("%s %d tiles @ $%d", c.DisplayName(), st.Chains[c].Size(), st.Price(c)))
		}
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "Chains", Value: strings.Join(lines, "\n")})
	}
	if idle > 0 {
		e.Title = fmt.Sprintf("Room %s is waiting on %s", room.Code, player.Name)
		e.Description = fmt.Sprintf("No move for %s. %s", idle.Round(time.Minute), e.Description)
		e.Color = colorReminder
	}
	return e
}

func gameOverEmbed(room game.Room) *discordgo.MessageEmbed {
	st := room.State
	e := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Room %s: game over", room.Code),
		Color: colorGameOver,
	}
	if st == nil {
		return e
	}
	e.Description = fmt.Sprintf("%s wins!", st.Winner)
	lines := make([]string, 0, len(st.Standings))
	for _, s := range st.Standings {
		lines = append(lines, fmt.Sprintf("%d. %s $%d", s.Rank, s.Name, s.Cash))
	}
	if len(lines) > 0 {
		e.Fields = []*discordgo.MessageEmbedField{{Name: "Standings", Value: strings.Join(lines, "\n")}}
	}
	return e
}

func phaseHint(p engine.Phase) string {
	switch p {
	case engine.PhasePlaceTile:
		return "Place a tile."
	case engine.PhaseFoundChain:
		return "Name the new hotel chain."
	case engine.PhaseBuyStock:
		return "Buy up to 3 shares or end the turn."
	case engine.PhaseMergerChooseSurvivor:
		return "Pick which chain survives the merger."
	case engine.PhaseMergerPayBonuses:
		return "Pay out the merger bonuses."
	case engine.PhaseMergerHandleStock:
		return "Sell, trade or keep your defunct shares."
	default:
		return ""
	}
}

// parseWebhookURL extracts id and token from
// https://discord.com/api/webhooks/{id}/{token}.
func parseWebhookURL(raw string) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("parse webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("webhook url %q has no /webhooks/{id}/{token} path", raw)
}
