package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickbite/internal/auth"
	"quickbite/internal/config"
	"quickbite/internal/logger"
	"quickbite/internal/models"
)

func testTokens() *auth.TokenManager {
	return auth.NewTokenManager(config.JWTConfig{
		Secret:         "test-secret",
		RefreshSecret:  "test-refresh",
		AccessExpires:  time.Hour,
		RefreshExpires: time.Hour,
	})
}

func setupServer(t *testing.T) (*Hub, *httptest.Server, *auth.TokenManager) {
	t.Helper()
	hub := NewHub(logger.NewLogger())
	tokens := testTokens()
	handler := &Handler{Hub: hub, Tokens: tokens, Logger: logger.NewLogger()}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return hub, srv, tokens
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func signFor(t *testing.T, tokens *auth.TokenManager, user *models.User) string {
	t.Helper()
	token, err := tokens.SignAccessToken(user)
	require.NoError(t, err)
	return token
}

func readEvent(t *testing.T, conn *websocket.Conn) outboundMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg outboundMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestConnectRequiresValidToken(t *testing.T) {
	_, srv, _ := setupServer(t)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(srv.URL + "?token=garbage")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConnectJoinsUserRoom(t *testing.T) {
	hub, srv, tokens := setupServer(t)
	token := signFor(t, tokens, &models.User{ID: "user-1", Role: models.RoleCustomer})

	conn := dial(t, srv, token)

	require.Eventually(t, func() bool { return hub.RoomSize("user_user-1") == 1 },
		2*time.Second, 10*time.Millisecond)

	hub.Emit("user_user-1", EventOrdersUpdate, map[string]string{"hello": "world"})
	msg := readEvent(t, conn)
	assert.Equal(t, EventOrdersUpdate, msg.Event)
}

func TestStaffAutoJoinRestaurantRoom(t *testing.T) {
	hub, srv, tokens := setupServer(t)
	token := signFor(t, tokens, &models.User{ID: "staff-1", Role: models.RoleAdmin, RestaurantID: "rest-1"})

	dial(t, srv, token)

	require.Eventually(t, func() bool { return hub.RoomSize("restaurant_rest-1") == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestClientJoinAndLeaveOrderRoom(t *testing.T) {
	hub, srv, tokens := setupServer(t)
	token := signFor(t, tokens, &models.User{ID: "user-1", Role: models.RoleCustomer})
	conn := dial(t, srv, token)

	require.NoError(t, conn.WriteJSON(inboundMessage{Action: "join", Room: "order_42"}))
	require.Eventually(t, func() bool { return hub.RoomSize("order_42") == 1 },
		2*time.Second, 10*time.Millisecond)

	hub.Emit("order_42", EventDriverLocation, map[string]float64{"lat": 6.5, "lng": 3.3})
	msg := readEvent(t, conn)
	assert.Equal(t, EventDriverLocation, msg.Event)

	require.NoError(t, conn.WriteJSON(inboundMessage{Action: "leave", Room: "order_42"}))
	require.Eventually(t, func() bool { return hub.RoomSize("order_42") == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestClientMayNotJoinForeignUserRoom(t *testing.T) {
	hub, srv, tokens := setupServer(t)
	token := signFor(t, tokens, &models.User{ID: "user-1", Role: models.RoleCustomer})
	conn := dial(t, srv, token)

	require.NoError(t, conn.WriteJSON(inboundMessage{Action: "join", Room: "user_victim"}))

	// Give the read pump a moment; the join must be refused.
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, hub.RoomSize("user_victim"))
}

func TestEmitToEmptyRoomIsNoop(t *testing.T) {
	hub := NewHub(logger.NewLogger())
	hub.Emit("order_none", EventOrdersUpdate, map[string]string{"a": "b"})
}

func TestEmitDuringDisconnectNeverPanics(t *testing.T) {
	hub := NewHub(logger.NewLogger())
	room := OrderRoom("contended")

	stop := make(chan struct{})
	panics := make(chan interface{}, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panics <- r
				}
			}()
			for {
				select {
				case <-stop:
					return
				default:
					hub.Emit(room, EventOrdersUpdate, map[string]string{"type": "status_changed"})
				}
			}
		}()
	}

	// Churn members while the emitters run; an Emit that snapshots a member
	// right before it disconnects must drop the event, not blow up.
	for i := 0; i < 500; i++ {
		c := &client{
			hub:   hub,
			send:  make(chan []byte, sendBuffer),
			done:  make(chan struct{}),
			rooms: make(map[string]bool),
		}
		hub.join(c, room)
		hub.disconnect(c)
	}

	close(stop)
	wg.Wait()

	select {
	case r := <-panics:
		t.Fatalf("Emit panicked: %v", r)
	default:
	}
	assert.Zero(t, hub.RoomSize(room))
}

func TestDisconnectLeavesAllRooms(t *testing.T) {
	hub, srv, tokens := setupServer(t)
	token := signFor(t, tokens, &models.User{ID: "user-1", Role: models.RoleCustomer})
	conn := dial(t, srv, token)

	require.NoError(t, conn.WriteJSON(inboundMessage{Action: "join", Room: "order_42"}))
	require.Eventually(t, func() bool { return hub.RoomSize("order_42") == 1 },
		2*time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return hub.RoomSize("order_42") == 0 && hub.RoomSize("user_user-1") == 0
	}, 2*time.Second, 10*time.Millisecond)
}
