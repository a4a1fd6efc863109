package persistence

import (
	"context"
	"sync"

	"github.com/wfunc/marketgame/models"
)

type memoryRecord struct {
	version int64
	data    []byte
}

// MemoryStore 内存实现，用于单机部署与测试。记录以序列化后的形式保存
type MemoryStore struct {
	records map[string]memoryRecord
	mu      sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]memoryRecord),
	}
}

func (s *MemoryStore) Create(ctx context.Context, room *models.Room) (int64, error) {
	data, err := encodeRoom(room)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[room.ID]; exists {
		return 0, ErrAlreadyExists
	}
	s.records[room.ID] = memoryRecord{version: initialVersion, data: data}
	return initialVersion, nil
}

func (s *MemoryStore) Load(ctx context.Context, roomID string) (*models.Room, int64, error) {
	s.mu.RLock()
	rec, exists := s.records[roomID]
	s.mu.RUnlock()

	if !exists {
		return nil, 0, ErrRecordNotFound
	}
	room, err := decodeRoom(rec.data, rec.version)
	if err != nil {
		return nil, 0, err
	}
	return room, rec.version, nil
}

func (s *MemoryStore) Save(ctx context.Context, room *models.Room, expectedVersion int64) (int64, error) {
	data, err := encodeRoom(room)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[room.ID]
	if !exists {
		return 0, ErrRecordNotFound
	}
	if rec.version != expectedVersion {
		return 0, ErrConflict
	}
	next := rec.version + 1
	s.records[room.ID] = memoryRecord{version: next, data: data}
	return next, nil
}

func (s *MemoryStore) Delete(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, roomID)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
