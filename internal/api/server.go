package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/jonashappcreative/hotelgame/internal/api/ws"
	"github.com/jonashappcreative/hotelgame/internal/auth"
	"github.com/jonashappcreative/hotelgame/internal/engine"
	"github.com/jonashappcreative/hotelgame/internal/game"
)

type contextKey string

const userContextKey contextKey = "user"

type UserContext struct {
	UserID string
	Email  string
	Name   string
	Token  string
}

// Authenticator is the slice of the identity provider the API needs.
type Authenticator interface {
	auth.Verifier
	SignUp(ctx context.Context, email, password, displayName string) (auth.Session, error)
	Login(ctx context.Context, email, password string) (auth.Session, error)
}

type Server struct {
	log  *slog.Logger
	auth Authenticator
	game *game.Service
	hub  *ws.Hub
	mux  *chi.Mux
}

// New builds the HTTP surface and registers the websocket hub as the
// service's publisher.
func New(logger *slog.Logger, authClient Authenticator, gameSvc *game.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		log:  logger,
		auth: authClient,
		game: gameSvc,
		hub:  ws.NewHub(gameSvc, logger),
		mux:  chi.NewRouter(),
	}
	gameSvc.SetPublisher(s.hub)
	s.routes()
	return s
}

// Publish pushes a change made by another process to this server's
// websocket subscribers.
func (s *Server) Publish(code string, version int64) {
	s.hub.Publish(code, version)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/rules", s.handleRules)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Post("/auth/signup", s.handleSignup)
			r.Post("/auth/login", s.handleLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/rooms/{code}/ws", s.handleWebsocket)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(30 * time.Second))
				r.Post("/rooms", s.handleCreateRoom)
				r.Get("/rooms/{code}", s.handleRoom)
				r.Post("/rooms/{code}/join", s.handleJoinRoom)
				r.Post("/rooms/{code}/leave", s.handleLeaveRoom)
				r.Post("/rooms/{code}/ready", s.handleReady)
				r.Post("/rooms/{code}/actions/{action}", s.handleAction)
				r.Get("/rooms/{code}/playable", s.handlePlayable)
				r.Get("/rooms/{code}/scores", s.handleScores)
			})
		})
	})
}

// authMiddleware accepts a bearer header, or an access_token query
// parameter for browser websocket clients that cannot set headers.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			token = strings.TrimSpace(r.URL.Query().Get("access_token"))
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		user, err := s.auth.VerifyAccessToken(r.Context(), token)
		if err != nil {
			s.log.Debug("token rejected", "error", err)
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, UserContext{
			UserID: user.ID,
			Email:  user.Email,
			Name:   user.DisplayName(),
			Token:  token,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) (UserContext, error) {
	v := ctx.Value(userContextKey)
	user, ok := v.(UserContext)
	if !ok || user.UserID == "" {
		return UserContext{}, errors.New("missing auth context")
	}
	return user, nil
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	name, err := game.ValidateDisplayName(in.DisplayName)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	session, err := s.auth.SignUp(r.Context(), strings.TrimSpace(in.Email), strings.TrimSpace(in.Password), name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "signup_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	session, err := s.auth.Login(r.Context(), strings.TrimSpace(in.Email), strings.TrimSpace(in.Password))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "login_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}
	var in struct {
		Name       string `json:"name"`
		MaxPlayers int    `json:"max_players"`
		Passcode   string `json:"passcode"`
	}
	if err := decodeOptionalJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	out, err := s.game.CreateRoom(r.Context(), game.CreateRoomInput{
		UserID:     user.UserID,
		Name:       firstNonEmpty(in.Name, user.Name),
		MaxPlayers: in.MaxPlayers,
		Passcode:   in.Passcode,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}
	out, err := s.game.Room(r.Context(), user.UserID, chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}
	var in struct {
		Name     string `json:"name"`
		Passcode string `json:"passcode"`
	}
	if err := decodeOptionalJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	out, err := s.game.JoinRoom(r.Context(), game.JoinRoomInput{
		UserID:   user.UserID,
		Code:     chi.URLParam(r, "code"),
		Name:     firstNonEmpty(in.Name, user.Name),
		Passcode: in.Passcode,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}
	out, err := s.game.LeaveRoom(r.Context(), user.UserID, chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}
	in := struct {
		Ready bool `json:"ready"`
	}{Ready: true}
	if err := decodeOptionalJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	out, err := s.game.SetReady(r.Context(), user.UserID, chi.URLParam(r, "code"), in.Ready)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, 16<<10))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	out, err := s.game.Apply(r.Context(), game.ActionInput{
		UserID:         user.UserID,
		Code:           chi.URLParam(r, "code"),
		Action:         chi.URLParam(r, "action"),
		Payload:        payload,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePlayable(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}
	out, err := s.game.Playable(r.Context(), user.UserID, chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.Scores(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}
	code, err := game.NormalizeRoomCode(chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if _, err := s.game.Room(r.Context(), user.UserID, code); err != nil {
		writeDomainError(w, err)
		return
	}
	s.hub.Serve(w, r, user.UserID, code)
}

type ruleChain struct {
	Name        engine.ChainName `json:"name"`
	DisplayName string           `json:"display_name"`
	Tier        engine.Tier      `json:"tier"`
	Prices      []rulePrice      `json:"prices"`
}

type rulePrice struct {
	Size     int `json:"size"`
	Price    int `json:"price"`
	Majority int `json:"majority_bonus"`
	Minority int `json:"minority_bonus"`
}

// handleRules publishes the price schedule so clients need not hardcode it.
func (s *Server) handleRules(w http.ResponseWriter, _ *http.Request) {
	sizes := []int{2, 3, 4, 5, 6, 11, 21, 31, 41}
	chains := make([]ruleChain, 0, len(engine.ChainOrder))
	for _, c := range engine.ChainOrder {
		rc := ruleChain{Name: c, DisplayName: c.DisplayName(), Tier: c.Tier()}
		for _, size := range sizes {
			b := engine.Bonuses(c, size)
			rc.Prices = append(rc.Prices, rulePrice{Size: size, Price: engine.StockPrice(c, size), Majority: b.Majority, Minority: b.Minority})
		}
		chains = append(chains, rc)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chains":              chains,
		"actions":             game.Actions,
		"initial_cash":        engine.InitialCash,
		"safe_chain_size":     engine.SafeChainSize,
		"end_game_chain_size": engine.EndGameChainSize,
		"max_shares_per_turn": engine.MaxSharesPerTurn,
	})
}

var domainErrors = []struct {
	err    error
	status int
	code   string
}{
	{game.ErrRoomNotFound, http.StatusNotFound, "room_not_found"},
	{game.ErrRoomFull, http.StatusConflict, "room_full"},
	{game.ErrRoomStarted, http.StatusConflict, "room_started"},
	{game.ErrRoomNotPlaying, http.StatusConflict, "room_not_playing"},
	{game.ErrRoomClosed, http.StatusGone, "room_closed"},
	{game.ErrNotSeated, http.StatusForbidden, "not_seated"},
	{game.ErrBadPasscode, http.StatusForbidden, "bad_passcode"},
	{game.ErrInvalidRoomCode, http.StatusBadRequest, "invalid_room_code"},
	{game.ErrInvalidName, http.StatusBadRequest, "invalid_name"},
	{game.ErrInvalidRoomSize, http.StatusBadRequest, "invalid_room_size"},
	{game.ErrUnknownAction, http.StatusNotFound, "unknown_action"},
	{game.ErrInvalidPayload, http.StatusBadRequest, "invalid_payload"},
	{game.ErrDuplicateIdempotency, http.StatusConflict, "duplicate_request"},
	{game.ErrTxConflict, http.StatusConflict, "tx_conflict"},
	{game.ErrDuplicateRoomCode, http.StatusServiceUnavailable, "room_code_exhausted"},
}

func writeDomainError(w http.ResponseWriter, err error) {
	for _, d := range domainErrors {
		if errors.Is(err, d.err) {
			writeError(w, d.status, d.code, err.Error())
			return
		}
	}
	if code := engine.ReasonCode(err); code != "" {
		status := http.StatusUnprocessableEntity
		switch code {
		case "not_your_turn", "not_host":
			status = http.StatusForbidden
		case "invalid_coordinate", "unknown_chain", "invalid_quantity":
			status = http.StatusBadRequest
		}
		writeError(w, status, code, err.Error())
		return
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		writeError(w, http.StatusGatewayTimeout, "timeout", err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "internal", err.Error())
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

// decodeOptionalJSON treats an empty body as "all defaults".
func decodeOptionalJSON(r *http.Request, out any) error {
	err := decodeJSON(r, out)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message), "code": code})
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		return key
	}
	return uuid.NewString()
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
