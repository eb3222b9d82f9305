package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// slowDialector holds Initialize until gate is closed.
type slowDialector struct {
	gorm.Dialector
	gate   chan struct{}
	opened chan *gorm.DB
}

func (d slowDialector) Initialize(db *gorm.DB) error {
	<-d.gate
	err := d.Dialector.Initialize(db)
	d.opened <- db
	return err
}

func TestSQLStoreStartClosesLateConnection(t *testing.T) {
	dialector := slowDialector{
		Dialector: sqlite.Open(filepath.Join(t.TempDir(), "history.db")),
		gate:      make(chan struct{}),
		opened:    make(chan *gorm.DB, 1),
	}
	store := &SQLStore{
		open:      dialector,
		logger:    logger.Default.LogMode(logger.Silent),
		namespace: "test",
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.Start(ctx); err == nil {
		t.Fatal("Start succeeded with a canceled context")
	}

	close(dialector.gate)
	db := <-dialector.opened
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for sqlDB.Ping() == nil {
		if time.Now().After(deadline) {
			t.Fatal("late connection was not closed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if store.db != nil {
		t.Error("store kept a connection opened after Start returned")
	}
}
