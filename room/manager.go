package room

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wfunc/marketgame/dispatch"
	"github.com/wfunc/marketgame/engine"
	"github.com/wfunc/marketgame/logger"
	"github.com/wfunc/marketgame/models"
	"github.com/wfunc/marketgame/monitor"
	"github.com/wfunc/marketgame/network"
	"github.com/wfunc/marketgame/timer"
)

// Manager 管理所有在线房间，并为已开局的房间驱动回合时钟
type Manager struct {
	rooms       map[string]*Room
	mutex       sync.RWMutex
	engine      *engine.Engine
	timers      *timer.TimerManager
	broadcaster Broadcaster
	interval    time.Duration
	step        int // 每次 tick 推进的游戏秒数
	monitor     *monitor.Monitor
}

// NewRoomManager drives every started room once per interval. Game clocks
// move in whole seconds, so an interval below one second still counts as one.
func NewRoomManager(e *engine.Engine, timers *timer.TimerManager, interval time.Duration, m *monitor.Monitor) *Manager {
	step := int(interval / time.Second)
	if step < 1 {
		step = 1
	}
	return &Manager{
		rooms:    make(map[string]*Room),
		engine:   e,
		timers:   timers,
		interval: interval,
		step:     step,
		monitor:  m,
	}
}

// SetBroadcaster 广播器依赖 Manager，因此在创建后注入
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.broadcaster = b
}

// GetOrCreateRoom returns the live room for id, creating it on first use.
func (m *Manager) GetOrCreateRoom(id string, maxPlayers int) *Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if room, exists := m.rooms[id]; exists {
		return room
	}
	room := NewRoom(id, maxPlayers)
	m.rooms[id] = room
	return room
}

func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	return room, exists
}

// RemoveRoom 停止时钟并移除房间
func (m *Manager) RemoveRoom(id string) {
	m.StopClock(id)

	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.rooms, id)
}

func (m *Manager) RoomIDs() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	return ids
}

// StartClock schedules the room's game clock. Starting a running clock is a
// no-op.
func (m *Manager) StartClock(roomID string) {
	room := m.GetOrCreateRoom(roomID, 0)

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if room.clockID != 0 {
		return
	}
	room.clockID = m.timers.AddTimer(m.interval, m.interval, func() { m.Tick(roomID) })
	m.monitor.SetActiveRooms(m.activeClocks())
	logger.Log.Infof("Room %s clock started", roomID)
}

func (m *Manager) StopClock(roomID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	room, exists := m.rooms[roomID]
	if !exists || room.clockID == 0 {
		return
	}
	m.timers.RemoveTimer(room.clockID)
	room.clockID = 0
	m.monitor.SetActiveRooms(m.activeClocks())
	logger.Log.Infof("Room %s clock stopped", roomID)
}

func (m *Manager) activeClocks() int {
	n := 0
	for _, room := range m.rooms {
		if room.clockID != 0 {
			n++
		}
	}
	return n
}

// Tick 推进一次房间时钟. 回合结束时推进回合并抽取经济事件
func (m *Manager) Tick(roomID string) {
	room, exists := m.GetRoom(roomID)
	if !exists {
		return
	}
	// skip when the previous tick of this room is still running
	if !atomic.CompareAndSwapInt32(&room.ticking, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&room.ticking, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := m.engine.Tick(ctx, roomID, m.step)
	if err != nil {
		if errors.Is(err, models.ErrRoomNotFound) || errors.Is(err, models.ErrGameNotFound) {
			m.StopClock(roomID)
			return
		}
		logger.Log.Warnf("Room %s tick failed: %v", roomID, err)
		return
	}

	if len(out.Expired) > 0 {
		m.Publish(dispatch.TurnsExpired(out))
	}
	if !out.RoundOver {
		return
	}

	advanced, err := m.engine.AdvanceRound(ctx, roomID, out.Round)
	if errors.Is(err, models.ErrStaleRound) {
		// another driver got there first
		return
	}
	if err != nil {
		logger.Log.Warnf("Room %s advance round failed: %v", roomID, err)
		return
	}
	m.Publish(dispatch.RoundEvent(advanced))

	applied, err := m.engine.ApplyEconomicEvent(ctx, roomID)
	if err != nil {
		logger.Log.Warnf("Room %s economic event failed: %v", roomID, err)
		return
	}
	m.Publish(dispatch.EconomicEventApplied(applied))
}

// Publish 将事件广播给房间内所有会话
func (m *Manager) Publish(ev *dispatch.Event) {
	m.mutex.RLock()
	b := m.broadcaster
	m.mutex.RUnlock()
	if b == nil || ev == nil {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		logger.Log.Errorf("Failed to encode %s event: %v", ev.Type, err)
		return
	}
	if err := b.BroadcastToRoom(ev.RoomID, network.MsgTypeGameEvent, data); err != nil {
		logger.Log.Warnf("Broadcast %s to room %s failed: %v", ev.Type, ev.RoomID, err)
	}
}

// Close stops every clock.
func (m *Manager) Close() {
	for _, id := range m.RoomIDs() {
		m.StopClock(id)
	}
}
