package rpc

import (
	"context"
	"net"
	"net/rpc"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/marketgame/dispatch"
	"github.com/wfunc/marketgame/engine"
	"github.com/wfunc/marketgame/models"
	"github.com/wfunc/marketgame/persistence"
	"github.com/wfunc/marketgame/services"
)

type recordingDriver struct {
	mu     sync.Mutex
	clocks []string
	events []string
}

func (d *recordingDriver) StartClock(roomID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clocks = append(d.clocks, roomID)
}

func (d *recordingDriver) Publish(ev *dispatch.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev.Type)
}

func newClient(t *testing.T) (*rpc.Client, *recordingDriver) {
	t.Helper()
	store := persistence.NewMemoryStore()
	_, err := store.Create(context.Background(), &models.Room{ID: "R1", Status: models.RoomWaiting})
	require.NoError(t, err)

	policy := persistence.DefaultRetryPolicy()
	events := engine.EventSourceFunc(func(ctx context.Context, g *models.Game) (models.EconomicEvent, error) {
		return models.EconomicEvent{Title: "Rate hike", Value: 2}, nil
	})
	driver := &recordingDriver{}
	gs := NewGameService(
		services.NewSessionService(store, models.DefaultSettings(), policy),
		engine.New(store, engine.WithEventSource(events)),
		driver,
	)

	srv, err := newServer(gs)
	require.NoError(t, err)
	serverConn, clientConn := net.Pipe()
	go srv.ServeConn(serverConn)

	client := rpc.NewClient(clientConn)
	t.Cleanup(func() { client.Close() })
	return client, driver
}

func TestGameService_StartAndDrive(t *testing.T) {
	client, driver := newClient(t)

	var started RoomReply
	require.NoError(t, client.Call("GameService.StartGame", &StartGameArgs{RoomID: "R1", Nicknames: []string{"alice", "bob"}}, &started))
	require.NotNil(t, started.Room.Game)
	assert.Len(t, started.Room.Game.Players, 2)
	assert.Equal(t, models.RoomPlaying, started.Room.Status)

	err := client.Call("GameService.StartGame", &StartGameArgs{RoomID: "R1", Nicknames: []string{"carol"}}, &started)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "GAME_STARTED"), err.Error())

	var econ EconomicEventReply
	require.NoError(t, client.Call("GameService.TriggerEconomicEvent", &RoomArgs{RoomID: "R1"}, &econ))
	assert.Equal(t, "Rate hike", econ.Event.Title)
	assert.Equal(t, 7, econ.InterestRate)

	var advanced AdvanceRoundReply
	require.NoError(t, client.Call("GameService.AdvanceRound", &AdvanceRoundArgs{RoomID: "R1", Round: 1}, &advanced))
	assert.Equal(t, 2, advanced.Round)

	err = client.Call("GameService.AdvanceRound", &AdvanceRoundArgs{RoomID: "R1", Round: 1}, &advanced)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "STALE_ROUND"), err.Error())

	var room RoomReply
	require.NoError(t, client.Call("GameService.GetRoom", &RoomArgs{RoomID: "R1"}, &room))
	assert.Equal(t, 2, room.Room.Game.Round)

	assert.Equal(t, []string{"R1"}, driver.clocks)
	assert.Equal(t, []string{dispatch.EventGameInitialized, dispatch.EventEconomicApplied, dispatch.EventRoundAdvanced}, driver.events)
}

func TestGameService_Rejections(t *testing.T) {
	client, _ := newClient(t)

	var reply RoomReply
	err := client.Call("GameService.StartGame", &StartGameArgs{RoomID: "R1"}, &reply)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "NO_PLAYERS"), err.Error())

	err = client.Call("GameService.GetRoom", &RoomArgs{RoomID: "missing"}, &reply)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "ROOM_NOT_FOUND"), err.Error())

	var econ EconomicEventReply
	err = client.Call("GameService.TriggerEconomicEvent", &RoomArgs{RoomID: "R1"}, &econ)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "GAME_NOT_FOUND"), err.Error())
}
