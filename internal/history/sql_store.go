package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/soundforge/studio/internal/model"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type snapshotRow struct {
	Namespace string `gorm:"primaryKey"`
	Data      string `gorm:"not null"`
	UpdatedAt time.Time
}

func (snapshotRow) TableName() string {
	return "history_snapshots"
}

// SQLStore keeps one snapshot row per namespace in a SQL database.
type SQLStore struct {
	open      gorm.Dialector
	db        *gorm.DB
	logger    logger.Interface
	namespace string
}

// NewSQLStore prepares a store for dbType "sqlite", "postgres" or "mysql".
// Call Start and Migrate before use.
func NewSQLStore(dbType, dbConn, namespace string, debug bool) (*SQLStore, error) {
	var open gorm.Dialector
	switch dbType {
	case "postgres":
		open = postgres.Open(dbConn)
	case "mysql":
		open = mysql.Open(dbConn)
	case "sqlite":
		open = sqlite.Open(dbConn)
	default:
		return nil, fmt.Errorf("sql: unknown db type: %s", dbType)
	}
	l := logger.Default.LogMode(logger.Silent)
	if debug {
		l = logger.Default.LogMode(logger.Warn)
	}
	return &SQLStore{
		open:      open,
		logger:    l,
		namespace: namespace,
	}, nil
}

func (s *SQLStore) Start(ctx context.Context) error {
	// Open in a goroutine so a slow server cannot hang startup.
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	type opened struct {
		db  *gorm.DB
		err error
	}
	// Unbuffered: a connection that arrives after the timeout is never
	// handed over and is closed by the opener instead.
	resC := make(chan opened)
	go func() {
		db, err := gorm.Open(s.open, &gorm.Config{
			Logger: s.logger,
		})
		select {
		case resC <- opened{db: db, err: err}:
		case <-ctx.Done():
			if err == nil {
				closeDB(db)
			}
		}
	}()
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("sql: timed out opening database: %w", ctx.Err())
		}
		return ctx.Err()
	case res := <-resC:
		if res.err != nil {
			return fmt.Errorf("sql: failed to open database: %w", res.err)
		}
		s.db = res.db
		return nil
	}
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("sql: %w", err)
	}
	return sqlDB.Close()
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&snapshotRow{}); err != nil {
		return fmt.Errorf("sql: failed to migrate database: %w", err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context) ([]model.MusicAsset, error) {
	var row snapshotRow
	if err := s.db.WithContext(ctx).First(&row, "namespace = ?", s.namespace).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("sql: failed to get snapshot %s: %w", s.namespace, err)
	}
	assets, err := decode([]byte(row.Data))
	if err != nil {
		return nil, fmt.Errorf("sql: snapshot %s: %w", s.namespace, err)
	}
	return assets, nil
}

func (s *SQLStore) Save(ctx context.Context, assets []model.MusicAsset) error {
	data, err := encode(assets)
	if err != nil {
		return fmt.Errorf("sql: %w", err)
	}
	row := &snapshotRow{
		Namespace: s.namespace,
		Data:      string(data),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("sql: failed to set snapshot %s: %w", s.namespace, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return closeDB(s.db)
}
