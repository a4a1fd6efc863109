// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/marketgame/logger"
	"github.com/wfunc/marketgame/room"
	"github.com/wfunc/marketgame/session"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// 广播接口
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
	BroadcastToAll(msgID uint16, data []byte) error
	SendToPlayer(roomID, nickname string, msgID uint16, data []byte) error
}

// 基于房间的广播器，只投递给本实例上的会话
type RoomBroadcaster struct {
	roomManager    *room.Manager
	sessionManager *session.Manager
}

func NewRoomBroadcaster(roomManager *room.Manager, sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		roomManager:    roomManager,
		sessionManager: sessionManager,
	}
}

func (b *RoomBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	r, exists := b.roomManager.GetRoom(roomID)
	if !exists {
		return ErrRoomNotFound
	}

	for _, s := range r.GetSessions() {
		if err := s.Send(msgID, data); err != nil {
			// 发送失败的连接由读循环负责清理
			logger.Log.Debugf("Send to session %s failed: %v", s.GetID(), err)
			continue
		}
	}
	return nil
}

func (b *RoomBroadcaster) BroadcastToAll(msgID uint16, data []byte) error {
	for _, id := range b.roomManager.RoomIDs() {
		if err := b.BroadcastToRoom(id, msgID, data); err != nil && !errors.Is(err, ErrRoomNotFound) {
			return err
		}
	}
	return nil
}

// SendToPlayer 发送给某个玩家的所有连接 (错误回复只发给发送者)
func (b *RoomBroadcaster) SendToPlayer(roomID, nickname string, msgID uint16, data []byte) error {
	for _, s := range b.sessionManager.GetByNickname(roomID, nickname) {
		if err := s.Send(msgID, data); err != nil {
			logger.Log.Debugf("Send to session %s failed: %v", s.GetID(), err)
		}
	}
	return nil
}
