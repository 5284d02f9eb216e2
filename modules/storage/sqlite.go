package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/TaelanSakay/PlayGround/domain/canvas"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// roomRecord is the gorm model for a room row.
type roomRecord struct {
	ID           string    `gorm:"primaryKey;size:64"`
	Name         string    `gorm:"not null"`
	Owner        string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null;index"`
	Elements     []byte    `gorm:"type:blob"`
	Participants []byte    `gorm:"type:blob"`
	Version      uint64    `gorm:"not null;default:1"`
}

// TableName sets the table name for gorm.
func (roomRecord) TableName() string {
	return "canvas_rooms"
}

// SQLiteStore keeps rooms in a SQLite table with a version column checked
// on every update.
type SQLiteStore struct {
	path  string
	debug bool
	db    *gorm.DB
}

// NewSQLiteStore creates a store backed by the database file at path.
func NewSQLiteStore(path string, debug bool) *SQLiteStore {
	return &SQLiteStore{path: path, debug: debug}
}

// NewSQLiteStoreFromDB wraps an already opened gorm database.
func NewSQLiteStoreFromDB(db *gorm.DB) (*SQLiteStore, error) {
	if err := db.AutoMigrate(&roomRecord{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Driver returns the backend name.
func (s *SQLiteStore) Driver() string { return DriverSQLite }

// Open connects to the database and runs migrations.
func (s *SQLiteStore) Open(_ context.Context) error {
	logLevel := logger.Silent
	if s.debug {
		logLevel = logger.Info
	}
	db, err := gorm.Open(sqlite.Open(s.path), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&roomRecord{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	s.db = db
	return nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("database not initialized")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// CreateRoom inserts a room at version 1.
func (s *SQLiteStore) CreateRoom(ctx context.Context, room *domain.Room) error {
	exists, err := s.exists(ctx, room.ID)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrRoomExists
	}

	elements, participants, err := encodeColumns(room)
	if err != nil {
		return err
	}
	rec := roomRecord{
		ID:           room.ID,
		Name:         room.Name,
		Owner:        room.Owner,
		CreatedAt:    room.CreatedAt,
		Elements:     elements,
		Participants: participants,
		Version:      1,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if exists, _ := s.exists(ctx, room.ID); exists {
			return domain.ErrRoomExists
		}
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// GetRoom returns the room and its version column.
func (s *SQLiteStore) GetRoom(ctx context.Context, roomID string) (*domain.Room, uint64, error) {
	var rec roomRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, domain.ErrRoomNotFound
		}
		return nil, 0, fmt.Errorf("failed to get room: %w", err)
	}
	room, err := rec.toRoom()
	if err != nil {
		return nil, 0, err
	}
	return room, rec.Version, nil
}

// SaveRoom updates the row only where the version still matches.
func (s *SQLiteStore) SaveRoom(ctx context.Context, room *domain.Room, expectedVersion uint64) (uint64, error) {
	elements, participants, err := encodeColumns(room)
	if err != nil {
		return 0, err
	}

	next := expectedVersion + 1
	result := s.db.WithContext(ctx).
		Model(&roomRecord{}).
		Where("id = ? AND version = ?", room.ID, expectedVersion).
		Updates(map[string]any{
			"name":         room.Name,
			"owner":        room.Owner,
			"elements":     elements,
			"participants": participants,
			"version":      next,
		})
	if err := result.Error; err != nil {
		return 0, fmt.Errorf("failed to save room: %w", err)
	}
	if result.RowsAffected == 0 {
		exists, err := s.exists(ctx, room.ID)
		if err != nil {
			return 0, err
		}
		if !exists {
			return 0, domain.ErrRoomNotFound
		}
		return 0, domain.ErrVersionConflict
	}
	return next, nil
}

// ListRooms returns every room ordered by creation time.
func (s *SQLiteStore) ListRooms(ctx context.Context) ([]*domain.Room, error) {
	var recs []roomRecord
	if err := s.db.WithContext(ctx).Order("created_at asc, id asc").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	rooms := make([]*domain.Room, 0, len(recs))
	for _, rec := range recs {
		room, err := rec.toRoom()
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (s *SQLiteStore) exists(ctx context.Context, roomID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&roomRecord{}).Where("id = ?", roomID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check room: %w", err)
	}
	return count > 0, nil
}

func (r roomRecord) toRoom() (*domain.Room, error) {
	room := &domain.Room{
		ID:        r.ID,
		Name:      r.Name,
		Owner:     r.Owner,
		CreatedAt: r.CreatedAt,
	}
	if err := decodeColumns(room, r.Elements, r.Participants); err != nil {
		return nil, err
	}
	return room, nil
}
