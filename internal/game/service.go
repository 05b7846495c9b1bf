package game

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jonashappcreative/hotelgame/internal/engine"
)

const (
	ActionPlaceTile      = "place_tile"
	ActionFoundChain     = "found_chain"
	ActionChooseSurvivor = "choose_survivor"
	ActionPayBonuses     = "pay_bonuses"
	ActionStockDecision  = "stock_decision"
	ActionBuyStocks      = "buy_stocks"
	ActionEndTurn        = "end_turn"
	ActionDiscardTile    = "discard_tile"
	ActionVoteEnd        = "vote_end"
	ActionNewGame        = "new_game"
)

// Actions lists every intent Apply understands.
var Actions = []string{
	ActionPlaceTile, ActionFoundChain, ActionChooseSurvivor, ActionPayBonuses, ActionStockDecision,
	ActionBuyStocks, ActionEndTurn, ActionDiscardTile, ActionVoteEnd, ActionNewGame,
}

// Notifier tells players about turns happening away from their screen.
type Notifier interface {
	TurnStarted(ctx context.Context, room Room, player engine.Player) error
	TurnReminder(ctx context.Context, room Room, player engine.Player, idle time.Duration) error
	GameOver(ctx context.Context, room Room) error
}

// Publisher fans out "room changed" signals to live subscribers.
type Publisher interface {
	Publish(code string, version int64)
}

type nopNotifier struct{}

func (nopNotifier) TurnStarted(context.Context, Room, engine.Player) error                 { return nil }
func (nopNotifier) TurnReminder(context.Context, Room, engine.Player, time.Duration) error { return nil }
func (nopNotifier) GameOver(context.Context, Room) error                                   { return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(string, int64) {}

type Service struct {
	store     Store
	engine    *engine.Engine
	notifier  Notifier
	publisher Publisher
	log       *slog.Logger
	now       func() time.Time
	mu        sync.Mutex
	rand      *mathrand.Rand
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithSeed(seed int64) Option {
	return func(s *Service) {
		s.rand = mathrand.New(mathrand.NewSource(seed))
	}
}

func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:     store,
		notifier:  nopNotifier{},
		publisher: nopPublisher{},
		log:       logger,
		now:       time.Now,
		rand:      mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = engine.New(engine.WithClock(s.now))
	return s
}

// SetPublisher wires a publisher after construction; the websocket hub needs
// the service before it can exist.
func (s *Service) SetPublisher(p Publisher) {
	if p != nil {
		s.publisher = p
	}
}

func (s *Service) CreateRoom(ctx context.Context, in CreateRoomInput) (RoomView, error) {
	name, err := ValidateDisplayName(in.Name)
	if err != nil {
		return RoomView{}, err
	}
	if in.MaxPlayers == 0 {
		in.MaxPlayers = DefaultRoomPlayers
	}
	if in.MaxPlayers < engine.MinPlayers || in.MaxPlayers > engine.MaxPlayers {
		return RoomView{}, ErrInvalidRoomSize
	}
	var hash string
	if p := strings.TrimSpace(in.Passcode); p != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(p), bcrypt.DefaultCost)
		if err != nil {
			return RoomView{}, fmt.Errorf("hash passcode: %w", err)
		}
		hash = string(b)
	}

	now := s.now().UTC()
	room := Room{
		ID:           uuid.NewString(),
		Status:       RoomWaiting,
		HostID:       in.UserID,
		MaxPlayers:   in.MaxPlayers,
		Seats:        []Seat{{UserID: in.UserID, Name: name, JoinedAt: now}},
		PasscodeHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastActionAt: now,
	}
	const maxAttempts = 5
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := generateRoomCode()
		if err != nil {
			return RoomView{}, err
		}
		room.Code = code
		err = s.store.CreateRoom(ctx, room)
		if err == nil {
			s.log.Info("room created", "room", code, "host", in.UserID, "max_players", in.MaxPlayers)
			return s.view(room, in.UserID), nil
		}
		if !errors.Is(err, ErrDuplicateRoomCode) {
			return RoomView{}, err
		}
	}
	return RoomView{}, ErrDuplicateRoomCode
}

func (s *Service) JoinRoom(ctx context.Context, in JoinRoomInput) (RoomView, error) {
	code, err := NormalizeRoomCode(in.Code)
	if err != nil {
		return RoomView{}, err
	}
	name, err := ValidateDisplayName(in.Name)
	if err != nil {
		return RoomView{}, err
	}
	room, err := s.store.UpdateRoom(ctx, code, nil, func(r *Room) error {
		if r.SeatIndex(in.UserID) >= 0 {
			return nil
		}
		switch r.Status {
		case RoomWaiting:
		case RoomFinished, RoomAbandoned:
			return ErrRoomClosed
		default:
			return ErrRoomStarted
		}
		if len(r.Seats) >= r.MaxPlayers {
			return ErrRoomFull
		}
		if r.PasscodeHash != "" {
			if err := bcrypt.CompareHashAndPassword([]byte(r.PasscodeHash), []byte(strings.TrimSpace(in.Passcode))); err != nil {
				return ErrBadPasscode
			}
		}
		now := s.now().UTC()
		r.Seats = append(r.Seats, Seat{UserID: in.UserID, Name: name, JoinedAt: now})
		r.UpdatedAt = now
		r.LastActionAt = now
		return nil
	})
	if err != nil {
		return RoomView{}, err
	}
	s.publisher.Publish(room.Code, room.Version)
	return s.view(room, in.UserID), nil
}

// LeaveRoom gives up a seat before the game starts. The next seat inherits
// the host role; an empty room is abandoned.
func (s *Service) LeaveRoom(ctx context.Context, userID, code string) (RoomView, error) {
	code, err := NormalizeRoomCode(code)
	if err != nil {
		return RoomView{}, err
	}
	room, err := s.store.UpdateRoom(ctx, code, nil, func(r *Room) error {
		idx := r.SeatIndex(userID)
		if idx < 0 {
			return ErrNotSeated
		}
		if r.Status != RoomWaiting {
			return ErrRoomStarted
		}
		r.Seats = append(r.Seats[:idx], r.Seats[idx+1:]...)
		if len(r.Seats) == 0 {
			r.Status = RoomAbandoned
		} else if r.HostID == userID {
			r.HostID = r.Seats[0].UserID
		}
		r.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return RoomView{}, err
	}
	s.log.Info("seat released", "room", code, "user", userID, "seats", len(room.Seats))
	s.publisher.Publish(room.Code, room.Version)
	return s.view(room, userID), nil
}

// SetReady flags a seat ready. When at least four seats are filled and every
// seat is ready the game is dealt.
func (s *Service) SetReady(ctx context.Context, userID, code string, ready bool) (RoomView, error) {
	code, err := NormalizeRoomCode(code)
	if err != nil {
		return RoomView{}, err
	}
	seed := s.nextSeed()
	started := false
	room, err := s.store.UpdateRoom(ctx, code, nil, func(r *Room) error {
		idx := r.SeatIndex(userID)
		if idx < 0 {
			return ErrNotSeated
		}
		if r.Status != RoomWaiting {
			return ErrRoomStarted
		}
		now := s.now().UTC()
		r.Seats[idx].Ready = ready
		r.UpdatedAt = now
		r.LastActionAt = now
		if !r.allReady() {
			return nil
		}
		st, err := s.engine.NewGameWithSeats(seatsOf(*r), seed)
		if err != nil {
			return err
		}
		r.State = &st
		r.Status = RoomPlaying
		started = true
		return nil
	})
	if err != nil {
		return RoomView{}, err
	}
	if started {
		s.log.Info("game started", "room", code, "players", len(room.Seats))
		s.afterAction(ctx, room, "")
	}
	s.publisher.Publish(room.Code, room.Version)
	return s.view(room, userID), nil
}

// Apply runs one player intent against the room's game.
func (s *Service) Apply(ctx context.Context, in ActionInput) (ActionResult, error) {
	code, err := NormalizeRoomCode(in.Code)
	if err != nil {
		return ActionResult{}, err
	}
	action := strings.ToLower(strings.TrimSpace(in.Action))
	step, err := s.intent(action, in.Payload)
	if err != nil {
		return ActionResult{}, err
	}

	var claim *Claim
	if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
		claim = &Claim{UserID: in.UserID, Key: key, Action: action}
	}
	var prevTurn string
	room, err := s.store.UpdateRoom(ctx, code, claim, func(r *Room) error {
		if r.SeatIndex(in.UserID) < 0 {
			return ErrNotSeated
		}
		if r.State == nil || (r.Status != RoomPlaying && r.Status != RoomFinished) {
			return ErrRoomNotPlaying
		}
		prevTurn = turnHolder(*r.State)
		next, err := step(*r.State, in.UserID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		r.State = &next
		r.UpdatedAt = now
		r.LastActionAt = now
		r.RemindedAt = nil
		if next.Phase == engine.PhaseGameOver {
			r.Status = RoomFinished
		} else {
			r.Status = RoomPlaying
		}
		return nil
	})
	if err != nil {
		if reason := engine.ReasonCode(err); reason != "" {
			s.log.Debug("action rejected", "room", code, "user", in.UserID, "action", action, "reason", reason)
		}
		return ActionResult{}, err
	}

	s.log.Info("action applied", "room", code, "user", in.UserID, "action", action, "phase", room.State.Phase, "version", room.Version)
	s.afterAction(ctx, room, prevTurn)
	s.publisher.Publish(room.Code, room.Version)
	return ActionResult{Room: s.view(room, in.UserID), Version: room.Version}, nil
}

type intentFunc func(st engine.State, actor string) (engine.State, error)

func (s *Service) intent(action string, raw json.RawMessage) (intentFunc, error) {
	e := s.engine
	switch action {
	case ActionPlaceTile, ActionDiscardTile:
		var p tilePayload
		if err := decodePayload(raw, &p); err != nil {
			return nil, err
		}
		tile, _, _, err := engine.ParseTile(strings.ToUpper(strings.TrimSpace(p.Tile)))
		if err != nil {
			return nil, err
		}
		if action == ActionDiscardTile {
			return func(st engine.State, actor string) (engine.State, error) { return e.DiscardTile(st, actor, tile) }, nil
		}
		return func(st engine.State, actor string) (engine.State, error) { return e.PlaceTile(st, actor, tile) }, nil
	case ActionFoundChain, ActionChooseSurvivor:
		var p chainPayload
		if err := decodePayload(raw, &p); err != nil {
			return nil, err
		}
		chain, err := engine.ParseChain(p.Chain)
		if err != nil {
			return nil, err
		}
		if action == ActionChooseSurvivor {
			return func(st engine.State, actor string) (engine.State, error) { return e.ChooseSurvivor(st, actor, chain) }, nil
		}
		return func(st engine.State, actor string) (engine.State, error) { return e.FoundChain(st, actor, chain) }, nil
	case ActionPayBonuses:
		return e.PayMergerBonuses, nil
	case ActionStockDecision:
		var d engine.StockDecision
		if err := decodePayload(raw, &d); err != nil {
			return nil, err
		}
		return func(st engine.State, actor string) (engine.State, error) { return e.SubmitStockDecision(st, actor, d) }, nil
	case ActionBuyStocks:
		var p buyPayload
		if err := decodePayload(raw, &p); err != nil {
			return nil, err
		}
		purchases := make([]engine.Purchase, 0, len(p.Purchases))
		for _, item := range p.Purchases {
			chain, err := engine.ParseChain(item.Chain)
			if err != nil {
				return nil, err
			}
			purchases = append(purchases, engine.Purchase{Chain: chain, Quantity: item.Quantity})
		}
		return func(st engine.State, actor string) (engine.State, error) { return e.BuyStocks(st, actor, purchases) }, nil
	case ActionEndTurn:
		return e.EndTurn, nil
	case ActionVoteEnd:
		return e.CastEndGameVote, nil
	case ActionNewGame:
		seed := s.nextSeed()
		return func(st engine.State, actor string) (engine.State, error) { return e.Restart(st, actor, seed) }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

func (s *Service) Room(ctx context.Context, userID, code string) (RoomView, error) {
	room, err := s.load(ctx, code)
	if err != nil {
		return RoomView{}, err
	}
	return s.view(room, userID), nil
}

// Playable lists the caller's hand and which of those tiles may be placed now.
func (s *Service) Playable(ctx context.Context, userID, code string) (PlayableView, error) {
	room, err := s.load(ctx, code)
	if err != nil {
		return PlayableView{}, err
	}
	if room.State == nil {
		return PlayableView{}, ErrRoomNotPlaying
	}
	idx, ok := room.State.PlayerIndex(userID)
	if !ok {
		return PlayableView{}, ErrNotSeated
	}
	playable := engine.PlayableTiles(*room.State, idx)
	return PlayableView{
		Tiles:    room.State.Players[idx].Tiles,
		Playable: playable,
		CanPlace: len(playable) > 0,
	}, nil
}

// Scores returns final standings once the game is over, otherwise the
// standings a game end right now would produce.
func (s *Service) Scores(ctx context.Context, code string) (ScoresView, error) {
	room, err := s.load(ctx, code)
	if err != nil {
		return ScoresView{}, err
	}
	if room.State == nil {
		return ScoresView{}, ErrRoomNotPlaying
	}
	if room.State.Phase == engine.PhaseGameOver {
		return ScoresView{Final: true, Standings: room.State.Standings}, nil
	}
	return ScoresView{Standings: engine.FinalScores(*room.State)}, nil
}

// ExpireIdleRooms abandons lobbies and games nobody has touched since idleAfter.
func (s *Service) ExpireIdleRooms(ctx context.Context, idleAfter time.Duration) (int, error) {
	cutoff := s.now().Add(-idleAfter)
	expired := 0
	for _, status := range []RoomStatus{RoomWaiting, RoomPlaying} {
		rooms, err := s.store.ListRooms(ctx, status, cutoff)
		if err != nil {
			return expired, err
		}
		for _, r := range rooms {
			updated, err := s.store.UpdateRoom(ctx, r.Code, nil, func(cur *Room) error {
				if cur.Status != status || !cur.LastActionAt.Before(cutoff) {
					return errSkip
				}
				cur.Status = RoomAbandoned
				cur.UpdatedAt = s.now().UTC()
				return nil
			})
			if errors.Is(err, errSkip) {
				continue
			}
			if err != nil {
				return expired, err
			}
			expired++
			s.log.Info("room expired", "room", r.Code, "status", status, "idle_since", r.LastActionAt)
			s.publisher.Publish(updated.Code, updated.Version)
		}
	}
	return expired, nil
}

// RemindStalledTurns nudges the player holding up each game idle past
// stalledAfter. A room is reminded at most once per action.
func (s *Service) RemindStalledTurns(ctx context.Context, stalledAfter time.Duration) (int, error) {
	cutoff := s.now().Add(-stalledAfter)
	rooms, err := s.store.ListRooms(ctx, RoomPlaying, cutoff)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, r := range rooms {
		if r.State == nil || r.RemindedAt != nil {
			continue
		}
		updated, err := s.store.UpdateRoom(ctx, r.Code, nil, func(cur *Room) error {
			if cur.RemindedAt != nil || cur.Status != RoomPlaying {
				return errSkip
			}
			now := s.now().UTC()
			cur.RemindedAt = &now
			return nil
		})
		if errors.Is(err, errSkip) {
			continue
		}
		if err != nil {
			return sent, err
		}
		holder := turnHolder(*updated.State)
		idx, ok := updated.State.PlayerIndex(holder)
		if !ok {
			continue
		}
		idle := s.now().Sub(updated.LastActionAt)
		if err := s.notifier.TurnReminder(ctx, updated, updated.State.Players[idx], idle); err != nil {
			s.log.Warn("turn reminder failed", "room", r.Code, "err", err)
			continue
		}
		sent++
	}
	return sent, nil
}

var errSkip = errors.New("skip")

func (s *Service) afterAction(ctx context.Context, room Room, prevTurn string) {
	if room.State == nil {
		return
	}
	if room.State.Phase == engine.PhaseGameOver {
		if err := s.notifier.GameOver(ctx, room); err != nil {
			s.log.Warn("game over notification failed", "room", room.Code, "err", err)
		}
		return
	}
	holder := turnHolder(*room.State)
	if holder == prevTurn {
		return
	}
	idx, ok := room.State.PlayerIndex(holder)
	if !ok {
		return
	}
	if err := s.notifier.TurnStarted(ctx, room, room.State.Players[idx]); err != nil {
		s.log.Warn("turn notification failed", "room", room.Code, "err", err)
	}
}

func (s *Service) load(ctx context.Context, code string) (Room, error) {
	code, err := NormalizeRoomCode(code)
	if err != nil {
		return Room{}, err
	}
	return s.store.GetRoom(ctx, code)
}

func (s *Service) nextSeed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Int63()
}

// turnHolder is the player the game is waiting on.
func turnHolder(st engine.State) string {
	if len(st.Players) == 0 {
		return ""
	}
	if st.Phase == engine.PhaseMergerHandleStock && st.Merger != nil {
		return st.Players[st.Merger.CurrentPlayerIndex].ID
	}
	return st.CurrentPlayer().ID
}

func seatsOf(r Room) []engine.Seat {
	out := make([]engine.Seat, len(r.Seats))
	for i, seat := range r.Seats {
		out[i] = engine.Seat{ID: seat.UserID, Name: seat.Name}
	}
	return out
}

func decodePayload(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: body is required", ErrInvalidPayload)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func generateRoomCode() (string, error) {
	buf := make([]byte, RoomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = roomCodeAlphabet[int(buf[i])%len(roomCodeAlphabet)]
	}
	return string(buf), nil
}
