package room

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/marketgame/dispatch"
	"github.com/wfunc/marketgame/engine"
	"github.com/wfunc/marketgame/models"
	"github.com/wfunc/marketgame/network"
	"github.com/wfunc/marketgame/persistence"
	"github.com/wfunc/marketgame/services"
	"github.com/wfunc/marketgame/session"
	"github.com/wfunc/marketgame/timer"
)

// MockBroadcaster records every event type it is asked to send.
type MockBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (m *MockBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	var ev dispatch.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev.Type)
	return nil
}

func (m *MockBroadcaster) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct{}

func (m *MockConnection) Send(msgID uint16, data []byte) error { return nil }
func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func newTestSession(id string) *session.Session {
	return session.NewSession(id, &MockConnection{})
}

func TestRoom_AddPlayer(t *testing.T) {
	room := NewRoom("test_room_2", 2)
	player1 := newTestSession("player1")

	if !room.AddPlayer(player1, "alice") {
		t.Fatal("Failed to add first player")
	}
	if room.PlayerCount() != 1 {
		t.Errorf("Expected player count to be 1, got %d", room.PlayerCount())
	}
	if name, roomID := player1.Player(); name != "alice" || roomID != "test_room_2" {
		t.Errorf("Session not bound: %q in %q", name, roomID)
	}
}

func TestRoom_AddPlayer_Full(t *testing.T) {
	room := NewRoom("test_room_3", 1)

	if !room.AddPlayer(newTestSession("player1"), "alice") {
		t.Fatal("Failed to add the first player")
	}
	if room.AddPlayer(newTestSession("player2"), "bob") {
		t.Fatal("Should not be able to add a player to a full room")
	}
	// a second connection of the same player is a reconnect, not a new seat
	if !room.AddPlayer(newTestSession("player3"), "alice") {
		t.Fatal("Reconnect of an existing player should be accepted")
	}
	if room.PlayerCount() != 2 {
		t.Errorf("Expected 2 sessions, got %d", room.PlayerCount())
	}
}

func TestRoom_RemovePlayer(t *testing.T) {
	room := NewRoom("test_room_4", 2)
	player1 := newTestSession("player1")
	room.AddPlayer(player1, "alice")

	room.RemovePlayer(player1.GetID())

	if room.PlayerCount() != 0 {
		t.Errorf("Expected player count to be 0 after removing player, got %d", room.PlayerCount())
	}
	if _, roomID := player1.Player(); roomID != "" {
		t.Errorf("Removed session should not stay bound to %q", roomID)
	}
}

type fixture struct {
	manager     *Manager
	broadcaster *MockBroadcaster
	engine      *engine.Engine
	timers      *timer.TimerManager
}

func newFixture(t *testing.T, interval time.Duration) *fixture {
	t.Helper()
	ctx := context.Background()
	settings := models.DefaultSettings()
	settings.RoundSeconds = 2
	settings.TurnSeconds = 1

	store := persistence.NewMemoryStore()
	if _, err := store.Create(ctx, &models.Room{ID: "R1", Status: models.RoomWaiting}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	lifecycle := services.NewSessionService(store, settings, persistence.DefaultRetryPolicy())
	if _, err := lifecycle.InitializeSession(ctx, "R1", []string{"alice", "bob"}); err != nil {
		t.Fatalf("InitializeSession failed: %v", err)
	}

	events := engine.EventSourceFunc(func(ctx context.Context, g *models.Game) (models.EconomicEvent, error) {
		return models.EconomicEvent{Title: "Steady policy"}, nil
	})
	e := engine.New(store, engine.WithSettings(settings), engine.WithEventSource(events))
	timers := timer.NewTimerManager(5 * time.Millisecond)
	t.Cleanup(timers.Stop)

	b := &MockBroadcaster{}
	m := NewRoomManager(e, timers, interval, nil)
	m.SetBroadcaster(b)
	m.GetOrCreateRoom("R1", 4)
	return &fixture{manager: m, broadcaster: b, engine: e, timers: timers}
}

func TestManager_GetOrCreateRoom(t *testing.T) {
	f := newFixture(t, time.Second)

	room := f.manager.GetOrCreateRoom("R1", 8)
	again, exists := f.manager.GetRoom("R1")
	if !exists || again != room {
		t.Fatal("GetRoom should return the same room instance")
	}
	if room.MaxPlayers != 4 {
		t.Errorf("Existing room should keep its size, got %d", room.MaxPlayers)
	}

	f.manager.RemoveRoom("R1")
	if _, exists := f.manager.GetRoom("R1"); exists {
		t.Error("Room should be gone after RemoveRoom")
	}
}

func TestManager_TickAdvancesRound(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()

	f.manager.Tick("R1")
	if got := f.broadcaster.Events(); len(got) != 0 {
		t.Fatalf("Expected no events after the first tick, got %v", got)
	}

	f.manager.Tick("R1")
	got := f.broadcaster.Events()
	if len(got) != 2 || got[0] != dispatch.EventRoundAdvanced || got[1] != dispatch.EventEconomicApplied {
		t.Fatalf("Unexpected events %v", got)
	}

	room, err := f.engine.Snapshot(ctx, "R1")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if room.Game.Round != 2 {
		t.Errorf("Expected round 2, got %d", room.Game.Round)
	}
	if room.Game.PendingEvent == nil || room.Game.PendingEvent.Title != "Steady policy" {
		t.Errorf("Expected the drawn event to be pending, got %+v", room.Game.PendingEvent)
	}
}

func TestManager_TickExpiresTurn(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()

	if _, err := f.engine.BeginAction(ctx, "R1", "alice", models.ActionBuyGold, 0); err != nil {
		t.Fatalf("BeginAction failed: %v", err)
	}
	f.manager.Tick("R1")

	got := f.broadcaster.Events()
	if len(got) != 1 || got[0] != dispatch.EventTurnExpired {
		t.Fatalf("Expected a turn expiry, got %v", got)
	}
}

func TestManager_ClockRuns(t *testing.T) {
	f := newFixture(t, 10*time.Millisecond)

	f.manager.StartClock("R1")
	f.manager.StartClock("R1")
	if f.timers.Len() != 1 {
		t.Fatalf("Expected one scheduled clock, got %d", f.timers.Len())
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, ev := range f.broadcaster.Events() {
			if ev == dispatch.EventRoundAdvanced {
				f.manager.Close()
				if f.timers.Len() != 0 {
					t.Errorf("Close should remove the clock, %d left", f.timers.Len())
				}
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Clock never advanced the round")
}

func TestManager_TickStopsForMissingGame(t *testing.T) {
	f := newFixture(t, time.Second)
	f.manager.GetOrCreateRoom("lobby", 4)
	f.manager.StartClock("lobby")

	f.manager.Tick("lobby")

	room, _ := f.manager.GetRoom("lobby")
	if room.clockID != 0 {
		t.Error("Clock of a room without a stored game should stop")
	}
}
