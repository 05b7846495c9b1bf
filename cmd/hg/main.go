package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	cl "github.com/jonashappcreative/hotelgame/internal/cli"
	"github.com/jonashappcreative/hotelgame/internal/config"
	"github.com/jonashappcreative/hotelgame/internal/engine"
	"github.com/jonashappcreative/hotelgame/internal/game"
)

type app struct {
	apiBase string
	room    string
}

func main() {
	cfg := config.LoadCLIFromEnv()
	a := &app{apiBase: cfg.APIBaseURL}

	root := &cobra.Command{
		Use:          "hg",
		Short:        "Hotel game CLI client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.apiBase, "api", a.apiBase, "API base URL")
	root.PersistentFlags().StringVarP(&a.room, "room", "r", "", "room code (defaults to the last room used)")

	root.AddCommand(
		a.newSignupCmd(),
		a.newLoginCmd(),
		newLogoutCmd(),
		a.newRoomCmd(),
		a.newShowCmd(),
		a.newWatchCmd(),
		a.newPlayableCmd(),
		a.newScoresCmd(),
		a.newPlaceCmd(),
		a.newChainCmd("found", "Name the chain formed by your last tile", game.ActionFoundChain),
		a.newChainCmd("survivor", "Pick the surviving chain of a tied merger", game.ActionChooseSurvivor),
		a.newSimpleActionCmd("bonuses", "Pay out merger bonuses", game.ActionPayBonuses),
		a.newDecideCmd(),
		a.newBuyCmd(),
		a.newSimpleActionCmd("end", "End your turn", game.ActionEndTurn),
		a.newDiscardCmd(),
		a.newSimpleActionCmd("vote", "Vote to end the game", game.ActionVoteEnd),
		a.newSimpleActionCmd("new-game", "Start a new game in a finished room (host only)", game.ActionNewGame),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) client() *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(a.apiBase), "/"))
}

// session loads the saved login and resolves the room the command targets.
func (a *app) session(needRoom bool) (cl.Session, string, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return cl.Session{}, "", fmt.Errorf("login required: %w", err)
	}
	code := strings.ToUpper(strings.TrimSpace(a.room))
	if code == "" {
		code = sess.LastRoom
	}
	if needRoom && code == "" {
		return cl.Session{}, "", errors.New("no room selected: pass --room or join one first")
	}
	return sess, code, nil
}

func saveAuth(email string, s cl.Session) error {
	s.Email = email
	return cl.SaveSession(s)
}

func (a *app) newSignupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}
			name, err := promptRequired("Display name")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			session, err := a.client().Signup(ctx, email, password, name)
			if err != nil {
				return err
			}
			if strings.TrimSpace(session.AccessToken) == "" {
				printWarn("Signup created. Verify email, then run `hg login`.")
				return nil
			}
			if err := saveAuth(session.User.Email, cl.Session{
				AccessToken:  session.AccessToken,
				RefreshToken: session.RefreshToken,
				UserID:       session.User.ID,
				DisplayName:  session.User.DisplayName(),
			}); err != nil {
				return err
			}
			printSuccess("Signup complete. Session saved.")
			return nil
		},
	}
}

func (a *app) newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			session, err := a.client().Login(ctx, email, password)
			if err != nil {
				return err
			}
			if err := saveAuth(session.User.Email, cl.Session{
				AccessToken:  session.AccessToken,
				RefreshToken: session.RefreshToken,
				UserID:       session.User.ID,
				DisplayName:  session.User.DisplayName(),
			}); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Logged in as %s.", session.User.DisplayName()))
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear local session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func (a *app) newRoomCmd() *cobra.Command {
	room := &cobra.Command{
		Use:   "room",
		Short: "Create, join and leave rooms",
	}

	var maxPlayers int
	var passcode, name string
	var showQR bool
	create := &cobra.Command{
		Use:   "create",
		Short: "Open a new room and take the first seat",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, err := a.session(false)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := a.client().CreateRoom(ctx, sess.AccessToken, name, maxPlayers, passcode)
			if err != nil {
				return err
			}
			if err := cl.RememberRoom(out.Code); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Room %s created. Share the code with %d other players.", out.Code, out.MaxPlayers-1))
			if showQR {
				qrterminal.GenerateHalfBlock("hg room join "+out.Code, qrterminal.L, os.Stdout)
			}
			return nil
		},
	}
	create.Flags().IntVar(&maxPlayers, "players", engine.MinPlayers, "seats in the room (4-6)")
	create.Flags().StringVar(&passcode, "passcode", "", "optional passcode required to join")
	create.Flags().StringVar(&name, "name", "", "seat name (defaults to your display name)")
	create.Flags().BoolVar(&showQR, "qr", false, "print a QR code with the join command")

	var joinPasscode, joinName string
	join := &cobra.Command{
		Use:   "join CODE",
		Short: "Take a seat in a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _, err := a.session(false)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := a.client().JoinRoom(ctx, sess.AccessToken, args[0], joinName, joinPasscode)
			if err != nil {
				return err
			}
			if err := cl.RememberRoom(out.Code); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Joined room %s (%d/%d seats).", out.Code, len(out.Seats), out.MaxPlayers))
			return nil
		},
	}
	join.Flags().StringVar(&joinPasscode, "passcode", "", "room passcode")
	join.Flags().StringVar(&joinName, "name", "", "seat name (defaults to your display name)")

	leave := &cobra.Command{
		Use:   "leave",
		Short: "Give up your seat before the game starts",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, code, err := a.session(true)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if _, err := a.client().LeaveRoom(ctx, sess.AccessToken, code); err != nil {
				return err
			}
			printSuccess("Left room " + code + ".")
			return nil
		},
	}

	var notReady bool
	ready := &cobra.Command{
		Use:   "ready",
		Short: "Mark yourself ready; the game starts once every seat is ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, code, err := a.session(true)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := a.client().SetReady(ctx, sess.AccessToken, code, !notReady)
			if err != nil {
				return err
			}
			if out.Status == game.RoomPlaying {
				printSuccess("Everyone is ready. The game is on!")
			} else {
				printInfo(fmt.Sprintf("Ready state saved for room %s.", code))
			}
			return nil
		},
	}
	ready.Flags().BoolVar(&notReady, "not", false, "clear your ready flag")

	room.AddCommand(create, join, leave, ready)
	return room
}

func (a *app) newShowCmd() *cobra.Command {
	var logLines int
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the board and room status",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, code, err := a.session(true)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := a.client().Room(ctx, sess.AccessToken, code)
			if err != nil {
				return err
			}
			fmt.Println(renderRoom(out, logLines))
			return nil
		},
	}
	cmd.Flags().IntVar(&logLines, "log", 8, "recent log lines to show")
	return cmd
}

func (a *app) newPlayableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hand",
		Short: "List your tiles and which of them can be placed",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, code, err := a.session(true)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := a.client().Playable(ctx, sess.AccessToken, code)
			if err != nil {
				return err
			}
			for _, t := range out.Tiles {
				playable := false
				for _, p := range out.Playable {
					if p == t {
						playable = true
						break
					}
				}
				if playable {
					success.Printf("%s ", t)
				} else {
					danger.Printf("%sx ", t)
				}
			}
			fmt.Println()
			if !out.CanPlace {
				printWarn("No tile can be placed: discard a dead tile or end your turn.")
			}
			return nil
		},
	}
}

func (a *app) newScoresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scores",
		Short: "Show standings",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, code, err := a.session(true)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := a.client().Scores(ctx, sess.AccessToken, code)
			if err != nil {
				return err
			}
			renderScores(out)
			return nil
		},
	}
}

// act sends one action and prints the resulting phase.
func (a *app) act(cmd *cobra.Command, action string, payload any) error {
	sess, code, err := a.session(true)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	out, err := a.client().Act(ctx, sess.AccessToken, code, action, payload, uuid.NewString())
	if err != nil {
		return err
	}
	if out.Room.Game != nil {
		printSuccess(fmt.Sprintf("OK. %s.", phasePrompt(out.Room.Game)))
	} else {
		printSuccess("OK.")
	}
	return nil
}

func (a *app) newPlaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "place TILE",
		Short: "Place a tile from your hand, e.g. `hg place 5E`",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tile, err := normalizeTile(args[0])
			if err != nil {
				return err
			}
			return a.act(cmd, game.ActionPlaceTile, map[string]any{"tile": tile})
		},
	}
}

func (a *app) newDiscardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discard TILE",
		Short: "Swap a tile that can never be placed for a new one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tile, err := normalizeTile(args[0])
			if err != nil {
				return err
			}
			return a.act(cmd, game.ActionDiscardTile, map[string]any{"tile": tile})
		},
	}
}

func (a *app) newChainCmd(use, short, action string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " CHAIN",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := engine.ParseChain(args[0])
			if err != nil {
				return err
			}
			return a.act(cmd, action, map[string]any{"chain": string(chain)})
		},
	}
}

func (a *app) newSimpleActionCmd(use, short, action string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.act(cmd, action, nil)
		},
	}
}

func (a *app) newDecideCmd() *cobra.Command {
	var d engine.StockDecision
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Sell, trade or keep your shares of the defunct chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.act(cmd, game.ActionStockDecision, d)
		},
	}
	cmd.Flags().IntVar(&d.Sell, "sell", 0, "shares to sell at the pre-merger price")
	cmd.Flags().IntVar(&d.Trade, "trade", 0, "shares to trade 2:1 for the survivor (even)")
	cmd.Flags().IntVar(&d.Keep, "keep", 0, "shares to keep")
	return cmd
}

func (a *app) newBuyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buy CHAIN[:QTY]...",
		Short: "Buy up to 3 shares across active chains, e.g. `hg buy tower:2 american`",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			purchases, err := parsePurchases(args)
			if err != nil {
				return err
			}
			return a.act(cmd, game.ActionBuyStocks, map[string]any{"purchases": purchases})
		},
	}
}

func (a *app) newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the room live",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, code, err := a.session(true)
			if err != nil {
				return err
			}
			if err := runWatch(cmd.Context(), a.client(), sess.AccessToken, code); err != nil {
				printError(err.Error())
				return err
			}
			return nil
		},
	}
}
