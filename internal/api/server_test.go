package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonashappcreative/hotelgame/internal/auth"
	"github.com/jonashappcreative/hotelgame/internal/engine"
	"github.com/jonashappcreative/hotelgame/internal/game"
)

type fakeAuth struct {
	users map[string]auth.User
}

func (f fakeAuth) VerifyAccessToken(_ context.Context, token string) (auth.User, error) {
	u, ok := f.users[token]
	if !ok {
		return auth.User{}, auth.ErrUnauthorized
	}
	return u, nil
}

func (f fakeAuth) SignUp(_ context.Context, email, _, name string) (auth.Session, error) {
	return auth.Session{AccessToken: "tok-new", User: auth.User{ID: "new", Email: email, Metadata: auth.UserMetadata{DisplayName: name}}}, nil
}

func (f fakeAuth) Login(_ context.Context, email, _ string) (auth.Session, error) {
	return auth.Session{AccessToken: "tok-ana", User: f.users["tok-ana"]}, nil
}

var tokens = []string{"tok-ana", "tok-ben", "tok-cai", "tok-dee"}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	users := map[string]auth.User{}
	for i, name := range []string{"Ana", "Ben", "Cai", "Dee"} {
		users[tokens[i]] = auth.User{ID: "user-" + name, Email: name + "@example.com", Metadata: auth.UserMetadata{DisplayName: name}}
	}
	svc := game.NewService(game.NewMemoryStore(), nil, game.WithSeed(11))
	srv := httptest.NewServer(New(nil, fakeAuth{users: users}, svc).Handler())
	t.Cleanup(srv.Close)
	return srv
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, rdr)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func decodeError(t *testing.T, body []byte) apiError {
	t.Helper()
	var e apiError
	require.NoError(t, json.Unmarshal(body, &e))
	return e
}

func startGame(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, body := call(t, srv, http.MethodPost, "/v1/rooms", tokens[0], map[string]any{"max_players": 4}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var room game.RoomView
	require.NoError(t, json.Unmarshal(body, &room))
	assert.Equal(t, "Ana", room.Seats[0].Name)

	for _, tok := range tokens[1:] {
		resp, body := call(t, srv, http.MethodPost, "/v1/rooms/"+room.Code+"/join", tok, nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	}
	for _, tok := range tokens {
		resp, body := call(t, srv, http.MethodPost, "/v1/rooms/"+room.Code+"/ready", tok, nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	}
	return room.Code
}

func TestHealthAndRules(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := call(t, srv, http.MethodGet, "/healthz", "", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := call(t, srv, http.MethodGet, "/v1/rules", "", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rules struct {
		Chains []ruleChain `json:"chains"`
	}
	require.NoError(t, json.Unmarshal(body, &rules))
	require.Len(t, rules.Chains, len(engine.ChainOrder))
	assert.Equal(t, engine.Sackson, rules.Chains[0].Name)
	assert.Equal(t, 200, rules.Chains[0].Prices[0].Price)
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)
	resp, body := call(t, srv, http.MethodPost, "/v1/rooms", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", decodeError(t, body).Code)

	resp, _ = call(t, srv, http.MethodPost, "/v1/rooms", "forged", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSignupValidatesName(t *testing.T) {
	srv := newTestServer(t)
	resp, body := call(t, srv, http.MethodPost, "/v1/auth/signup", "", map[string]any{"email": "x@example.com", "password": "pw", "display_name": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_name", decodeError(t, body).Code)

	resp, _ = call(t, srv, http.MethodPost, "/v1/auth/signup", "", map[string]any{"email": "x@example.com", "password": "pw", "display_name": "Xi"}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestGameFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	code := startGame(t, srv)

	resp, body := call(t, srv, http.MethodGet, "/v1/rooms/"+code, tokens[1], nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var room game.RoomView
	require.NoError(t, json.Unmarshal(body, &room))
	assert.Equal(t, game.RoomPlaying, room.Status)
	require.NotNil(t, room.Game)
	assert.Equal(t, 1, room.Game.YourIndex)
	assert.Len(t, room.Game.YourTiles, engine.TilesPerPlayer)

	resp, body = call(t, srv, http.MethodPost, "/v1/rooms/"+code+"/actions/end_turn", tokens[1], nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "not_your_turn", decodeError(t, body).Code)

	resp, body = call(t, srv, http.MethodGet, "/v1/rooms/"+code+"/playable", tokens[0], nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var playable game.PlayableView
	require.NoError(t, json.Unmarshal(body, &playable))
	require.True(t, playable.CanPlace)

	headers := map[string]string{"Idempotency-Key": "place-1"}
	payload := map[string]string{"tile": string(playable.Playable[0])}
	resp, body = call(t, srv, http.MethodPost, "/v1/rooms/"+code+"/actions/place_tile", tokens[0], payload, headers)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var result game.ActionResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.NotEqual(t, engine.PhasePlaceTile, result.Room.Game.Phase)

	resp, body = call(t, srv, http.MethodPost, "/v1/rooms/"+code+"/actions/place_tile", tokens[0], payload, headers)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "duplicate_request", decodeError(t, body).Code)

	resp, body = call(t, srv, http.MethodPost, "/v1/rooms/"+code+"/actions/teleport", tokens[0], nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "unknown_action", decodeError(t, body).Code)

	resp, body = call(t, srv, http.MethodGet, "/v1/rooms/"+code+"/scores", tokens[2], nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var scores game.ScoresView
	require.NoError(t, json.Unmarshal(body, &scores))
	assert.False(t, scores.Final)
	assert.Len(t, scores.Standings, 4)
}

func TestRoomErrors(t *testing.T) {
	srv := newTestServer(t)
	resp, body := call(t, srv, http.MethodGet, "/v1/rooms/ZZZZZZ", tokens[0], nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "room_not_found", decodeError(t, body).Code)

	resp, body = call(t, srv, http.MethodGet, "/v1/rooms/io", tokens[0], nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_room_code", decodeError(t, body).Code)

	resp, body = call(t, srv, http.MethodPost, "/v1/rooms", tokens[0], map[string]any{"max_players": 9}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_room_size", decodeError(t, body).Code)
}
