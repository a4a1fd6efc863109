// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/marketgame/network"
)

// Seat 会话在房间中的身份. 零值表示尚未加入房间
type Seat struct {
	RoomID   string
	Nickname string
}

// Session is one client connection. A session sits in at most one room seat;
// several sessions may share a seat while a player reconnects.
type Session struct {
	id       string
	conn     network.Connection
	remote   string
	openedAt time.Time

	mu       sync.RWMutex
	seat     Seat
	lastSeen time.Time
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	s := &Session{id: id, conn: conn, openedAt: now, lastSeen: now}
	if addr := conn.RemoteAddr(); addr != nil {
		s.remote = addr.String()
	}
	return s
}

func (s *Session) GetID() string { return s.id }

// Remote 连接建立时的对端地址
func (s *Session) Remote() string { return s.remote }

// Bind seats the session. An empty roomID clears the seat.
func (s *Session) Bind(nickname, roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if roomID == "" {
		s.seat = Seat{}
		return
	}
	s.seat = Seat{RoomID: roomID, Nickname: nickname}
}

func (s *Session) Seat() Seat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seat
}

// Player returns the bound nickname and room.
func (s *Session) Player() (nickname, roomID string) {
	seat := s.Seat()
	return seat.Nickname, seat.RoomID
}

func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) LastSeen() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}

// Age 连接存活时长
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.openedAt)
}

func (s *Session) Send(msgID uint16, data []byte) error {
	s.Touch()
	return s.conn.Send(msgID, data)
}

func (s *Session) Close() error {
	return s.conn.Close()
}

// Manager 在线会话表
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

func (m *Manager) Add(s *Session) {
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
}

func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// GetByNickname returns every session seated as nickname in roomID.
// There can be more than one during a reconnect.
func (m *Manager) GetByNickname(roomID, nickname string) []*Session {
	want := Seat{RoomID: roomID, Nickname: nickname}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var seated []*Session
	for _, s := range m.sessions {
		if s.Seat() == want {
			seated = append(seated, s)
		}
	}
	return seated
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
