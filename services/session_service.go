// services/session_service.go
package services

import (
	"context"

	"github.com/wfunc/marketgame/logger"
	"github.com/wfunc/marketgame/models"
	"github.com/wfunc/marketgame/persistence"
)

// SessionService 负责开局: 在房间中创建一局新的游戏
type SessionService struct {
	store    persistence.RoomStore
	settings models.Settings
	policy   persistence.RetryPolicy
}

func NewSessionService(store persistence.RoomStore, settings models.Settings, policy persistence.RetryPolicy) *SessionService {
	return &SessionService{store: store, settings: settings, policy: policy}
}

// InitializeSession builds a fresh Game with one player per nickname, in
// order, and stores it in the room. Any previous game is replaced as a
// whole, so calling it again yields the same starting state.
func (s *SessionService) InitializeSession(ctx context.Context, roomID string, nicknames []string) (*models.Room, error) {
	if len(nicknames) == 0 {
		return nil, models.Reject(models.ErrNoPlayers, "room %s", roomID)
	}
	if err := checkNicknames(nicknames); err != nil {
		return nil, err
	}

	room, err := persistence.UpdateRoom(ctx, s.store, roomID, s.policy, func(room *models.Room) error {
		room.Game = models.NewGame(nicknames, s.settings)
		room.Status = models.RoomPlaying
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Infof("Room %s game initialized with %d players", roomID, len(nicknames))
	return room, nil
}

// StartMatch starts the game of a waiting room. With no nicknames the
// room's members are seated. A room that is already playing keeps its game.
func (s *SessionService) StartMatch(ctx context.Context, roomID string, nicknames []string) (*models.Room, error) {
	var seated int
	room, err := persistence.UpdateRoom(ctx, s.store, roomID, s.policy, func(room *models.Room) error {
		if room.Status != models.RoomWaiting {
			return models.Reject(models.ErrGameStarted, "room %s is %s", roomID, room.Status)
		}
		names := nicknames
		if len(names) == 0 {
			names = room.Members
		}
		if len(names) == 0 {
			return models.Reject(models.ErrNoPlayers, "room %s", roomID)
		}
		if err := checkNicknames(names); err != nil {
			return err
		}
		room.Game = models.NewGame(names, s.settings)
		room.Status = models.RoomPlaying
		seated = len(names)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Infof("Room %s match started with %d players", roomID, seated)
	return room, nil
}

// checkNicknames enforces one player per nickname.
func checkNicknames(nicknames []string) error {
	seen := make(map[string]struct{}, len(nicknames))
	for _, name := range nicknames {
		if name == "" {
			return models.Reject(models.ErrRequest, "empty nickname")
		}
		if _, dup := seen[name]; dup {
			return models.Reject(models.ErrRequest, "duplicate nickname %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
