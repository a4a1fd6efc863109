package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/wfunc/marketgame/models"
)

// 房间以 hash 保存: version 字段为版本号, data 字段为序列化后的房间
//
// KEYS[1]: 房间 key
// ARGV[1]: 房间数据
//
// 返回值: 1 创建成功, 0 已存在
var createRoomScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
    return 0
end
redis.call('HSET', KEYS[1], 'version', 1, 'data', ARGV[1])
return 1
`)

// KEYS[1]: 房间 key
// ARGV[1]: 期望版本号
// ARGV[2]: 房间数据
//
// 返回值: 新版本号, 0 版本冲突, -1 不存在
var saveRoomScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if not current then
    return -1
end
if tonumber(current) ~= tonumber(ARGV[1]) then
    return 0
end
local next = tonumber(current) + 1
redis.call('HSET', KEYS[1], 'version', next, 'data', ARGV[2])
return next
`)

// RedisStore keeps each room under "<prefix>:<roomID>". The Lua scripts make
// the version check and the write one atomic step on the server.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore 创建 Redis 连接并检查可用性
func NewRedisStore(ctx context.Context, addr, password string, db int, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return NewRedisStoreWithClient(client, prefix), nil
}

func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "room"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(roomID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, roomID)
}

func (s *RedisStore) Create(ctx context.Context, room *models.Room) (int64, error) {
	data, err := encodeRoom(room)
	if err != nil {
		return 0, err
	}
	created, err := createRoomScript.Run(ctx, s.client, []string{s.key(room.ID)}, data).Int64()
	if err != nil {
		return 0, err
	}
	if created == 0 {
		return 0, ErrAlreadyExists
	}
	return initialVersion, nil
}

func (s *RedisStore) Load(ctx context.Context, roomID string) (*models.Room, int64, error) {
	vals, err := s.client.HMGet(ctx, s.key(roomID), "version", "data").Result()
	if err != nil {
		return nil, 0, err
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return nil, 0, ErrRecordNotFound
	}

	rawVersion, ok := vals[0].(string)
	if !ok {
		return nil, 0, errors.New("redis: unexpected version type")
	}
	version, err := strconv.ParseInt(rawVersion, 10, 64)
	if err != nil {
		return nil, 0, err
	}
	data, ok := vals[1].(string)
	if !ok {
		return nil, 0, errors.New("redis: unexpected data type")
	}

	room, err := decodeRoom([]byte(data), version)
	if err != nil {
		return nil, 0, err
	}
	return room, version, nil
}

func (s *RedisStore) Save(ctx context.Context, room *models.Room, expectedVersion int64) (int64, error) {
	data, err := encodeRoom(room)
	if err != nil {
		return 0, err
	}
	result, err := saveRoomScript.Run(ctx, s.client, []string{s.key(room.ID)}, expectedVersion, data).Int64()
	if err != nil {
		return 0, err
	}

	switch result {
	case -1:
		return 0, ErrRecordNotFound
	case 0:
		return 0, ErrConflict
	default:
		return result, nil
	}
}

func (s *RedisStore) Delete(ctx context.Context, roomID string) error {
	return s.client.Del(ctx, s.key(roomID)).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
