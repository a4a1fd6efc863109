// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq" // PostgreSQL 驱动
	"github.com/wfunc/marketgame/models"
)

// PostgreSQL 数据库实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(ctx, db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS game_rooms (
            id SERIAL PRIMARY KEY,
            room_id VARCHAR(255) UNIQUE NOT NULL,
            status VARCHAR(50) NOT NULL,
            version BIGINT NOT NULL,
            data JSONB NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
        CREATE INDEX IF NOT EXISTS idx_game_rooms_status ON game_rooms(status);
    `)
	return err
}

// Create 创建房间记录，已存在时返回 ErrAlreadyExists
func (p *PostgreSQL) Create(ctx context.Context, room *models.Room) (int64, error) {
	data, err := encodeRoom(room)
	if err != nil {
		return 0, err
	}

	query := `
        INSERT INTO game_rooms (room_id, status, version, data)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (room_id) DO NOTHING
    `
	res, err := p.db.ExecContext(ctx, query, room.ID, string(room.Status), initialVersion, data)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrAlreadyExists
	}
	return initialVersion, nil
}

// Load 加载房间及其版本号
func (p *PostgreSQL) Load(ctx context.Context, roomID string) (*models.Room, int64, error) {
	var (
		version int64
		data    []byte
	)
	query := `SELECT version, data FROM game_rooms WHERE room_id = $1`
	err := p.db.QueryRowContext(ctx, query, roomID).Scan(&version, &data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, 0, ErrRecordNotFound
		}
		return nil, 0, err
	}

	room, err := decodeRoom(data, version)
	if err != nil {
		return nil, 0, err
	}
	return room, version, nil
}

// Save 仅当版本号未变化时写入 (乐观锁)
func (p *PostgreSQL) Save(ctx context.Context, room *models.Room, expectedVersion int64) (int64, error) {
	data, err := encodeRoom(room)
	if err != nil {
		return 0, err
	}

	query := `
        UPDATE game_rooms
        SET status = $1, data = $2, version = version + 1, updated_at = CURRENT_TIMESTAMP
        WHERE room_id = $3 AND version = $4
        RETURNING version
    `
	var version int64
	err = p.db.QueryRowContext(ctx, query, string(room.Status), data, room.ID, expectedVersion).Scan(&version)
	if err == nil {
		return version, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	var exists bool
	if err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM game_rooms WHERE room_id = $1)`, room.ID).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrRecordNotFound
	}
	return 0, ErrConflict
}

func (p *PostgreSQL) Delete(ctx context.Context, roomID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM game_rooms WHERE room_id = $1`, roomID)
	return err
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
