// Package store persists conversation history per course session.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"auto_course_generator/config"
	"auto_course_generator/generator"
	"auto_course_generator/logger"
)

// ErrHistoryShrunk is returned when a save would drop turns already stored.
var ErrHistoryShrunk = errors.New("store: history is shorter than the stored history")

// ConversationStore loads and saves the ordered turn history of a session. Saves are
// append-only: stored turns are never reordered or rewritten.
type ConversationStore interface {
	Load(ctx context.Context, sessionID string) ([]generator.Turn, error)
	Save(ctx context.Context, sessionID string, turns []generator.Turn) error
	Clear(ctx context.Context, sessionID string) error
}

type turnRecord struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID string    `gorm:"size:64;not null;uniqueIndex:idx_turn_session_seq"`
	Seq       int       `gorm:"not null;uniqueIndex:idx_turn_session_seq"`
	Role      string    `gorm:"size:16;not null"`
	Stage     string    `gorm:"size:32"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (turnRecord) TableName() string { return "conversation_turns" }

// GormStore keeps turns in SQLite or Postgres.
type GormStore struct {
	db  *gorm.DB
	log *logger.Logger
}

// Open connects with the configured driver and migrates the turn table.
func Open(cfg config.DatabaseConfig, logg *logger.Logger) (*GormStore, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("store: connect %s: %w", cfg.Driver, err)
	}
	return NewGormStore(db, logg)
}

// NewGormStore wraps an open connection and migrates the turn table.
func NewGormStore(db *gorm.DB, logg *logger.Logger) (*GormStore, error) {
	if err := db.AutoMigrate(&turnRecord{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &GormStore{db: db, log: logg.With("service", "ConversationStore")}, nil
}

func (s *GormStore) Load(ctx context.Context, sessionID string) ([]generator.Turn, error) {
	var rows []turnRecord
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: load %s: %w", sessionID, err)
	}
	turns := make([]generator.Turn, len(rows))
	for i, r := range rows {
		turns[i] = generator.Turn{
			Role:      generator.Role(r.Role),
			Content:   r.Content,
			Stage:     generator.Stage(r.Stage),
			CreatedAt: r.CreatedAt,
		}
	}
	return turns, nil
}

// Save appends the turns beyond those already stored for the session.
func (s *GormStore) Save(ctx context.Context, sessionID string, turns []generator.Turn) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored int64
		if err := tx.Model(&turnRecord{}).Where("session_id = ?", sessionID).Count(&stored).Error; err != nil {
			return fmt.Errorf("store: count %s: %w", sessionID, err)
		}
		if int64(len(turns)) < stored {
			return ErrHistoryShrunk
		}
		fresh := turns[stored:]
		if len(fresh) == 0 {
			return nil
		}
		rows := make([]turnRecord, len(fresh))
		for i, t := range fresh {
			created := t.CreatedAt
			if created.IsZero() {
				created = time.Now().UTC()
			}
			rows[i] = turnRecord{
				SessionID: sessionID,
				Seq:       int(stored) + i,
				Role:      string(t.Role),
				Stage:     string(t.Stage),
				Content:   t.Content,
				CreatedAt: created,
			}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("store: append %s: %w", sessionID, err)
		}
		s.log.Debug("history saved", "session_id", sessionID, "appended", len(rows), "total", len(turns))
		return nil
	})
}

func (s *GormStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&turnRecord{}).Error; err != nil {
		return fmt.Errorf("store: clear %s: %w", sessionID, err)
	}
	s.log.Info("history cleared", "session_id", sessionID)
	return nil
}

// MemoryStore is a process-local ConversationStore.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]generator.Turn
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]generator.Turn)}
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) ([]generator.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]generator.Turn(nil), m.sessions[sessionID]...), nil
}

func (m *MemoryStore) Save(_ context.Context, sessionID string, turns []generator.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.sessions[sessionID]
	if len(turns) < len(stored) {
		return ErrHistoryShrunk
	}
	m.sessions[sessionID] = append(stored, turns[len(stored):]...)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}
