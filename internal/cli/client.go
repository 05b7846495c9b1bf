package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jonashappcreative/hotelgame/internal/api/ws"
	"github.com/jonashappcreative/hotelgame/internal/auth"
	"github.com/jonashappcreative/hotelgame/internal/game"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Signup(ctx context.Context, email, password, displayName string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/signup", "", map[string]any{
		"email":        email,
		"password":     password,
		"display_name": displayName,
	}, &out, "")
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	}, &out, "")
	return out, err
}

func (c *Client) CreateRoom(ctx context.Context, accessToken, name string, maxPlayers int, passcode string) (game.RoomView, error) {
	var out game.RoomView
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/rooms", accessToken, map[string]any{
		"name":        name,
		"max_players": maxPlayers,
		"passcode":    passcode,
	}, &out, "")
	return out, err
}

func (c *Client) Room(ctx context.Context, accessToken, code string) (game.RoomView, error) {
	var out game.RoomView
	err := c.jsonRequest(ctx, http.MethodGet, roomPath(code, ""), accessToken, nil, &out, "")
	return out, err
}

func (c *Client) JoinRoom(ctx context.Context, accessToken, code, name, passcode string) (game.RoomView, error) {
	var out game.RoomView
	err := c.jsonRequest(ctx, http.MethodPost, roomPath(code, "/join"), accessToken, map[string]any{
		"name":     name,
		"passcode": passcode,
	}, &out, "")
	return out, err
}

func (c *Client) LeaveRoom(ctx context.Context, accessToken, code string) (game.RoomView, error) {
	var out game.RoomView
	err := c.jsonRequest(ctx, http.MethodPost, roomPath(code, "/leave"), accessToken, nil, &out, "")
	return out, err
}

func (c *Client) SetReady(ctx context.Context, accessToken, code string, ready bool) (game.RoomView, error) {
	var out game.RoomView
	err := c.jsonRequest(ctx, http.MethodPost, roomPath(code, "/ready"), accessToken, map[string]any{
		"ready": ready,
	}, &out, "")
	return out, err
}

// Act submits one game action. payload may be nil for actions without one.
func (c *Client) Act(ctx context.Context, accessToken, code, action string, payload any, idem string) (game.ActionResult, error) {
	var out game.ActionResult
	err := c.jsonRequest(ctx, http.MethodPost, roomPath(code, "/actions/"+url.PathEscape(action)), accessToken, payload, &out, idem)
	return out, err
}

func (c *Client) Playable(ctx context.Context, accessToken, code string) (game.PlayableView, error) {
	var out game.PlayableView
	err := c.jsonRequest(ctx, http.MethodGet, roomPath(code, "/playable"), accessToken, nil, &out, "")
	return out, err
}

func (c *Client) Scores(ctx context.Context, accessToken, code string) (game.ScoresView, error) {
	var out game.ScoresView
	err := c.jsonRequest(ctx, http.MethodGet, roomPath(code, "/scores"), accessToken, nil, &out, "")
	return out, err
}

// Watch streams room snapshots into out until ctx ends or the socket drops.
func (c *Client) Watch(ctx context.Context, accessToken, code string, out chan<- ws.Message) error {
	u, err := url.Parse(c.BaseURL + roomPath(code, "/ws"))
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+accessToken)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("watch room: status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("watch room: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()
	for {
		var msg ws.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

func roomPath(code, suffix string) string {
	return "/v1/rooms/" + url.PathEscape(strings.ToUpper(strings.TrimSpace(code))) + suffix
}

func (c *Client) jsonRequest(ctx context.Context, method, path, accessToken string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
