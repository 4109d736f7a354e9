// persistence/gorm_postgresql.go
package persistence

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/cardroom/models"
)

// GormPostgreSQL is the GORM-backed Store implementation.
type GormPostgreSQL struct {
	db *gorm.DB
}

func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

type UserModel struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
}

type GameRecordModel struct {
	ID        uint                  `gorm:"primaryKey"`
	RoomID    string                `gorm:"index;not null"`
	Mode      string                `gorm:"not null"`
	Players   []models.PlayerResult `gorm:"serializer:json;type:jsonb"`
	CreatedAt time.Time
}

type RoomSnapshotModel struct {
	ID        uint                `gorm:"primaryKey"`
	RoomID    string              `gorm:"uniqueIndex;not null"`
	Mode      string              `gorm:"not null"`
	Status    string              `gorm:"not null"`
	Players   []models.PlayerView `gorm:"serializer:json;type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&GameRecordModel{},
		&RoomSnapshotModel{},
	)
}

func (p *GormPostgreSQL) CreateUser(username, passwordHash string) error {
	var existing UserModel
	result := p.db.Where("username = ?", username).First(&existing)
	if result.Error == nil {
		return ErrUserExists
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}

	user := UserModel{
		Username:     username,
		PasswordHash: passwordHash,
	}
	return p.db.Create(&user).Error
}

func (p *GormPostgreSQL) GetUserHash(username string) (string, error) {
	var user UserModel
	if err := p.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrRecordNotFound
		}
		return "", err
	}
	return user.PasswordHash, nil
}

func (p *GormPostgreSQL) SaveGameRecord(record *models.GameRecord) error {
	row := GameRecordModel{
		RoomID:  record.RoomID,
		Mode:    record.Mode,
		Players: record.Players,
	}
	return p.db.Create(&row).Error
}

func (p *GormPostgreSQL) SaveRoomSnapshot(roomID, mode, status string, players []models.PlayerView) error {
	var snapshot RoomSnapshotModel
	result := p.db.Where("room_id = ?", roomID).First(&snapshot)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		snapshot = RoomSnapshotModel{
			RoomID:  roomID,
			Mode:    mode,
			Status:  status,
			Players: players,
		}
		return p.db.Create(&snapshot).Error
	} else if result.Error != nil {
		return result.Error
	}

	snapshot.Status = status
	snapshot.Players = players
	snapshot.UpdatedAt = time.Now()
	return p.db.Save(&snapshot).Error
}

func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
