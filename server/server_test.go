package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/marketgame/config"
	"github.com/wfunc/marketgame/dispatch"
	"github.com/wfunc/marketgame/models"
	"github.com/wfunc/marketgame/network"
	"github.com/wfunc/marketgame/persistence"
)

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, url string) *client {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) send(msgID uint16, body interface{}) {
	c.t.Helper()
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		require.NoError(c.t, err)
	}
	packet, err := network.Encode(msgID, data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.BinaryMessage, packet))
}

// expect reads frames until one with msgID arrives.
func (c *client) expect(msgID uint16) []byte {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := c.conn.ReadMessage()
		require.NoError(c.t, err, "waiting for message %d", msgID)
		p, err := network.Decode(data)
		require.NoError(c.t, err)
		if p.MsgID == msgID {
			return p.Data
		}
	}
}

func (c *client) expectEvent(eventType string) dispatch.Event {
	c.t.Helper()
	for {
		var ev dispatch.Event
		require.NoError(c.t, json.Unmarshal(c.expect(network.MsgTypeGameEvent), &ev))
		if ev.Type == eventType {
			return ev
		}
	}
}

func newTestServer(t *testing.T) (string, persistence.RoomStore) {
	t.Helper()
	cfg, err := config.LoadConfig(t.TempDir())
	require.NoError(t, err)
	cfg.Server.RPCAddress = ""

	store := persistence.NewMemoryStore()
	s, err := NewGameServer(cfg, store, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.roomManager.Close()
		s.timers.Stop()
	})

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", store
}

func TestGameServer_PlayFlow(t *testing.T) {
	url, _ := newTestServer(t)
	alice := dial(t, url)
	bob := dial(t, url)

	alice.send(network.MsgTypeCreateRoom, map[string]interface{}{"roomId": "R1", "nickname": "alice"})
	var room models.Room
	require.NoError(t, json.Unmarshal(alice.expect(network.MsgTypeRoomState), &room))
	assert.Equal(t, []string{"alice"}, room.Members)

	bob.send(network.MsgTypeJoinRoom, map[string]interface{}{"roomId": "R1", "nickname": "bob"})
	require.NoError(t, json.Unmarshal(bob.expect(network.MsgTypeRoomState), &room))
	assert.Equal(t, []string{"alice", "bob"}, room.Members)

	alice.send(network.MsgTypeStartGame, nil)
	alice.expectEvent(dispatch.EventGameInitialized)
	bob.expectEvent(dispatch.EventGameInitialized)

	bob.send(network.MsgTypeCommand, map[string]interface{}{
		"command": "take-loan",
		"payload": map[string]int{"amount": 75},
	})
	ev := alice.expectEvent(dispatch.EventLoanTaken)
	assert.Equal(t, "bob", ev.SenderTag)
	assert.Equal(t, "R1", ev.RoomID)
	bob.expectEvent(dispatch.EventLoanTaken)

	alice.send(network.MsgTypeCommand, map[string]interface{}{
		"command": "take-loan",
		"payload": map[string]int{"amount": 40},
	})
	var reply dispatch.Reply
	require.NoError(t, json.Unmarshal(alice.expect(network.MsgTypeError), &reply))
	assert.Equal(t, models.Code("AMOUNT_OUT_OF_RANGE"), reply.Code)
}

func TestGameServer_CommandOutsideRoom(t *testing.T) {
	url, _ := newTestServer(t)
	c := dial(t, url)

	c.send(network.MsgTypeCommand, map[string]interface{}{"command": "take-loan", "payload": map[string]int{"amount": 75}})
	var reply dispatch.Reply
	require.NoError(t, json.Unmarshal(c.expect(network.MsgTypeError), &reply))
	assert.Equal(t, models.Code("REQUEST_ERROR"), reply.Code)
}

func TestGameServer_DisconnectMarksPlayer(t *testing.T) {
	url, store := newTestServer(t)
	alice := dial(t, url)
	bob := dial(t, url)

	alice.send(network.MsgTypeCreateRoom, map[string]interface{}{"roomId": "R1", "nickname": "alice"})
	alice.expect(network.MsgTypeRoomState)
	bob.send(network.MsgTypeJoinRoom, map[string]interface{}{"roomId": "R1", "nickname": "bob"})
	bob.expect(network.MsgTypeRoomState)
	alice.send(network.MsgTypeStartGame, nil)
	bob.expectEvent(dispatch.EventGameInitialized)

	bob.conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		record, _, err := store.Load(context.Background(), "R1")
		require.NoError(t, err)
		p, err := record.Game.Player("bob")
		require.NoError(t, err)
		if !p.Connected {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("bob should be marked disconnected")
}

func TestGameServer_StartTwiceKeepsGame(t *testing.T) {
	url, store := newTestServer(t)
	alice := dial(t, url)
	bob := dial(t, url)

	alice.send(network.MsgTypeCreateRoom, map[string]interface{}{"roomId": "R1", "nickname": "alice"})
	alice.expect(network.MsgTypeRoomState)
	bob.send(network.MsgTypeJoinRoom, map[string]interface{}{"roomId": "R1", "nickname": "bob"})
	bob.expect(network.MsgTypeRoomState)
	alice.send(network.MsgTypeStartGame, nil)
	alice.expectEvent(dispatch.EventGameInitialized)

	alice.send(network.MsgTypeCommand, map[string]interface{}{
		"command": "take-loan",
		"payload": map[string]int{"amount": 75},
	})
	alice.expectEvent(dispatch.EventLoanTaken)

	bob.send(network.MsgTypeStartGame, nil)
	var reply dispatch.Reply
	require.NoError(t, json.Unmarshal(bob.expect(network.MsgTypeError), &reply))
	assert.Equal(t, models.Code("GAME_STARTED"), reply.Code)

	record, _, err := store.Load(context.Background(), "R1")
	require.NoError(t, err)
	p, err := record.Game.Player("alice")
	require.NoError(t, err)
	assert.True(t, p.HasLoan)
	assert.Equal(t, 175, p.Cash)
}
