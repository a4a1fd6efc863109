// persistence/interface.go
package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/wfunc/marketgame/models"
)

// RoomStore 房间存储接口
//
// A room is stored as one record: the serialized Room plus a version
// counter. Save is a compare-and-swap: it writes only if the stored version
// still equals expectedVersion, and then increments it. Implementations
// never hand out memory shared with their stored copy.
type RoomStore interface {
	Create(ctx context.Context, room *models.Room) (int64, error)
	Load(ctx context.Context, roomID string) (*models.Room, int64, error)
	Save(ctx context.Context, room *models.Room, expectedVersion int64) (int64, error)
	Delete(ctx context.Context, roomID string) error
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrConflict       = errors.New("version conflict")
	ErrAlreadyExists  = errors.New("record already exists")
)

// initialVersion is the version of a freshly created record.
const initialVersion int64 = 1

func encodeRoom(room *models.Room) ([]byte, error) {
	return json.Marshal(room)
}

func decodeRoom(data []byte, version int64) (*models.Room, error) {
	var room models.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, err
	}
	room.Version = version
	return &room, nil
}
