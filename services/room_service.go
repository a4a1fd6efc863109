// services/room_service.go
package services

import (
	"context"
	"errors"

	"github.com/wfunc/marketgame/models"
	"github.com/wfunc/marketgame/persistence"
)

// RoomService 管理等待中的房间记录 (创建、加入、离开)
type RoomService struct {
	store  persistence.RoomStore
	policy persistence.RetryPolicy
}

func NewRoomService(store persistence.RoomStore, policy persistence.RetryPolicy) *RoomService {
	return &RoomService{store: store, policy: policy}
}

// OpenRoom creates a waiting room with host as its first member.
func (s *RoomService) OpenRoom(ctx context.Context, roomID, host string, maxPlayers int) (*models.Room, error) {
	if roomID == "" || host == "" {
		return nil, models.Reject(models.ErrRequest, "room id and host are required")
	}

	room := &models.Room{
		ID:         roomID,
		Status:     models.RoomWaiting,
		Members:    []string{host},
		MaxPlayers: maxPlayers,
	}
	version, err := s.store.Create(ctx, room)
	if errors.Is(err, persistence.ErrAlreadyExists) {
		return nil, models.Reject(models.ErrRoomExists, "%q", roomID)
	}
	if err != nil {
		return nil, err
	}
	room.Version = version
	return room, nil
}

// JoinRoom adds nickname to a waiting room. Joining twice is a no-op.
func (s *RoomService) JoinRoom(ctx context.Context, roomID, nickname string) (*models.Room, error) {
	if nickname == "" {
		return nil, models.Reject(models.ErrRequest, "nickname is required")
	}
	return persistence.UpdateRoom(ctx, s.store, roomID, s.policy, func(room *models.Room) error {
		if room.HasMember(nickname) {
			return nil
		}
		if room.Status != models.RoomWaiting {
			return models.Reject(models.ErrGameStarted, "room %s", roomID)
		}
		if room.MaxPlayers > 0 && len(room.Members) >= room.MaxPlayers {
			return models.Reject(models.ErrRoomFull, "room %s", roomID)
		}
		room.Members = append(room.Members, nickname)
		return nil
	})
}

// LeaveRoom removes nickname from a waiting room. Players of a running game
// stay in it and are only marked disconnected by the engine.
func (s *RoomService) LeaveRoom(ctx context.Context, roomID, nickname string) (*models.Room, error) {
	return persistence.UpdateRoom(ctx, s.store, roomID, s.policy, func(room *models.Room) error {
		if room.Status != models.RoomWaiting {
			return nil
		}
		members := room.Members[:0]
		for _, m := range room.Members {
			if m != nickname {
				members = append(members, m)
			}
		}
		room.Members = members
		return nil
	})
}
