// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wfunc/marketgame/logger"
	"github.com/wfunc/marketgame/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志，输出到 zap
	gormLogger := gormlogger.New(
		zap.NewStdLog(logger.Log.Desugar()),
		gormlogger.Config{
			SlowThreshold: time.Second,       // 慢SQL阈值
			LogLevel:      gormlogger.Silent, // 日志级别
			Colorful:      false,             // 禁用彩色打印
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	// 获取通用数据库对象 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return NewGormStore(db)
}

// NewGormStore wraps an open gorm connection and migrates the room table.
func NewGormStore(db *gorm.DB) (*GormPostgreSQL, error) {
	if err := db.AutoMigrate(&RoomModel{}); err != nil {
		return nil, err
	}
	return &GormPostgreSQL{db: db}, nil
}

// RoomModel 房间记录
type RoomModel struct {
	ID        uint   `gorm:"primaryKey"`
	RoomID    string `gorm:"uniqueIndex;not null"`
	Status    string `gorm:"index;not null"`
	Version   int64  `gorm:"not null"`
	Data      []byte `gorm:"type:jsonb;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RoomModel) TableName() string {
	return "game_rooms"
}

func (p *GormPostgreSQL) Create(ctx context.Context, room *models.Room) (int64, error) {
	data, err := encodeRoom(room)
	if err != nil {
		return 0, err
	}

	record := RoomModel{
		RoomID:  room.ID,
		Status:  string(room.Status),
		Version: initialVersion,
		Data:    data,
	}
	result := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "room_id"}}, DoNothing: true}).
		Create(&record)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ErrAlreadyExists
	}
	return initialVersion, nil
}

func (p *GormPostgreSQL) Load(ctx context.Context, roomID string) (*models.Room, int64, error) {
	var record RoomModel
	if err := p.db.WithContext(ctx).Where("room_id = ?", roomID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrRecordNotFound
		}
		return nil, 0, err
	}

	room, err := decodeRoom(record.Data, record.Version)
	if err != nil {
		return nil, 0, err
	}
	return room, record.Version, nil
}

// Save 带版本条件的更新，RowsAffected 为 0 表示冲突或记录不存在
func (p *GormPostgreSQL) Save(ctx context.Context, room *models.Room, expectedVersion int64) (int64, error) {
	data, err := encodeRoom(room)
	if err != nil {
		return 0, err
	}

	result := p.db.WithContext(ctx).
		Model(&RoomModel{}).
		Where("room_id = ? AND version = ?", room.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":  string(room.Status),
			"data":    data,
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 1 {
		return expectedVersion + 1, nil
	}

	var count int64
	if err := p.db.WithContext(ctx).Model(&RoomModel{}).Where("room_id = ?", room.ID).Count(&count).Error; err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, ErrRecordNotFound
	}
	return 0, ErrConflict
}

func (p *GormPostgreSQL) Delete(ctx context.Context, roomID string) error {
	return p.db.WithContext(ctx).Where("room_id = ?", roomID).Delete(&RoomModel{}).Error
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
