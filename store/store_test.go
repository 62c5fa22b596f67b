package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"auto_course_generator/config"
	"auto_course_generator/generator"
	"auto_course_generator/logger"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLogger.Default.LogMode(gormLogger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s, err := NewGormStore(db, logger.Nop())
	if err != nil {
		t.Fatalf("NewGormStore: %v", err)
	}
	return s
}

func turns(contents ...string) []generator.Turn {
	out := make([]generator.Turn, len(contents))
	for i, c := range contents {
		role := generator.RoleUser
		if i%2 == 1 {
			role = generator.RoleModel
		}
		out[i] = generator.Turn{Role: role, Content: c, Stage: generator.StageTabulate}
	}
	return out
}

func runStoreContract(t *testing.T, s ConversationStore) {
	ctx := context.Background()
	if err := s.Save(ctx, "a", turns("q1", "r1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, "a", turns("q1", "r1", "q2", "r2")); err != nil {
		t.Fatalf("Save append: %v", err)
	}
	if err := s.Save(ctx, "b", turns("other")); err != nil {
		t.Fatalf("Save b: %v", err)
	}

	got, err := s.Load(ctx, "a")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 4 || got[0].Content != "q1" || got[3].Content != "r2" || got[3].Role != generator.RoleModel {
		t.Fatalf("unexpected history %+v", got)
	}

	if err := s.Save(ctx, "a", turns("q1")); !errors.Is(err, ErrHistoryShrunk) {
		t.Fatalf("expected ErrHistoryShrunk, got %v", err)
	}

	if err := s.Clear(ctx, "a"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got, _ := s.Load(ctx, "a"); len(got) != 0 {
		t.Fatalf("history not cleared: %+v", got)
	}
	if got, _ := s.Load(ctx, "b"); len(got) != 1 {
		t.Fatalf("clear leaked into other session: %+v", got)
	}
}

func TestGormStore(t *testing.T) {
	runStoreContract(t, newTestStore(t))
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(config.DatabaseConfig{Driver: "mysql", DSN: "x"}, logger.Nop()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
