// room/room.go
package room

import (
	"sync"
	"time"

	"github.com/wfunc/marketgame/session"
)

// Room 是一个房间的在线视图: 订阅该房间广播的会话. 游戏状态本身在 RoomStore 中
type Room struct {
	ID          string
	MaxPlayers  int
	Players     map[string]*session.Session // sessionID -> session
	CreatedAt   time.Time
	clockID     int64
	ticking     int32
	playerMutex sync.RWMutex
}

func NewRoom(id string, maxPlayers int) *Room {
	return &Room{
		ID:         id,
		MaxPlayers: maxPlayers,
		Players:    make(map[string]*session.Session),
		CreatedAt:  time.Now(),
	}
}

func (r *Room) GetID() string {
	return r.ID
}

// AddPlayer 添加一个会话到房间. 同一昵称的重连不占用新的位置
func (r *Room) AddPlayer(s *session.Session, nickname string) bool {
	r.playerMutex.Lock()
	defer r.playerMutex.Unlock()

	_, exists := r.Players[s.GetID()]
	if !exists && !r.hasNickname(nickname) && r.MaxPlayers > 0 && r.nicknameCount() >= r.MaxPlayers {
		return false
	}

	r.Players[s.GetID()] = s
	s.Bind(nickname, r.ID)
	return true
}

func (r *Room) hasNickname(nickname string) bool {
	for _, s := range r.Players {
		if name, _ := s.Player(); name == nickname {
			return true
		}
	}
	return false
}

func (r *Room) nicknameCount() int {
	names := make(map[string]struct{}, len(r.Players))
	for _, s := range r.Players {
		name, _ := s.Player()
		names[name] = struct{}{}
	}
	return len(names)
}

// RemovePlayer 从房间移除一个会话
func (r *Room) RemovePlayer(sessionID string) {
	r.playerMutex.Lock()
	defer r.playerMutex.Unlock()

	if player, exists := r.Players[sessionID]; exists {
		name, _ := player.Player()
		player.Bind(name, "")
		delete(r.Players, sessionID)
	}
}

func (r *Room) GetPlayer(sessionID string) (*session.Session, bool) {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	player, exists := r.Players[sessionID]
	return player, exists
}

// GetSessions returns a slice of all sessions in the room (thread-safe).
func (r *Room) GetSessions() []*session.Session {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	sessions := make([]*session.Session, 0, len(r.Players))
	for _, s := range r.Players {
		sessions = append(sessions, s)
	}
	return sessions
}

func (r *Room) PlayerCount() int {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	return len(r.Players)
}
