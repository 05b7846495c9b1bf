package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonashappcreative/hotelgame/internal/game"
)

type fakeLoader struct {
	mu      sync.Mutex
	version int64
}

func (f *fakeLoader) Room(_ context.Context, userID, code string) (game.RoomView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return game.RoomView{Code: code, Version: f.version, Seats: []game.SeatView{{UserID: userID, IsYou: true}}}, nil
}

func (f *fakeLoader) bump() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version++
	return f.version
}

func TestHubPushesViewerSnapshots(t *testing.T) {
	loader := &fakeLoader{version: 1}
	hub := NewHub(loader, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, r.URL.Query().Get("user"), "ABCDEF")
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user=u-1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first Message
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "room", first.Type)
	assert.Equal(t, int64(1), first.Version)
	require.NotNil(t, first.Room)
	assert.Equal(t, "u-1", first.Room.Seats[0].UserID)

	require.Eventually(t, func() bool { return hub.Subscribers("ABCDEF") == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish("ABCDEF", loader.bump())
	var second Message
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, int64(2), second.Version)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Subscribers("ABCDEF") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(&fakeLoader{}, nil)
	hub.Publish("ZZZZZZ", 4)
	assert.Zero(t, hub.Subscribers("ZZZZZZ"))
}
