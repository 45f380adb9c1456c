// Package storage opens the repositories selected by STORAGE_DRIVER.
package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pharmastock/stock-system/internal/core/ports"
	"github.com/pharmastock/stock-system/internal/infrastructure/db/memory"
	mongostore "github.com/pharmastock/stock-system/internal/infrastructure/db/mongo"
	"github.com/pharmastock/stock-system/internal/infrastructure/db/sqlstore"
	"github.com/pharmastock/stock-system/internal/pkg/config"
)

// Stores bundles the repositories of one backend.
type Stores struct {
	Medications ports.MedicationRepository
	Users       ports.UserRepository
	// Ping reports backend reachability for the readiness probe.
	Ping func(ctx context.Context) error
	// Close releases the backend connection.
	Close func(ctx context.Context) error
}

func Open(ctx context.Context, cfg config.StorageConfig, mongoCfg config.MongoConfig, log zerolog.Logger, debug bool) (*Stores, error) {
	switch cfg.Driver {
	case config.StorageMemory:
		log.Warn().Msg("using in-memory storage, data is lost on exit")
		return &Stores{
			Medications: memory.NewMedicationRepository(),
			Users:       memory.NewUserRepository(),
			Ping:        func(context.Context) error { return nil },
			Close:       func(context.Context) error { return nil },
		}, nil

	case config.StorageSQLite, config.StorageMySQL, config.StoragePostgres:
		db, err := sqlstore.Open(ctx, sqlstore.Config{Driver: cfg.Driver, DSN: cfg.DSN, Debug: debug}, log)
		if err != nil {
			return nil, err
		}
		if err := sqlstore.Migrate(db); err != nil {
			_ = sqlstore.Close(db)
			return nil, err
		}
		return &Stores{
			Medications: sqlstore.NewMedicationRepository(db),
			Users:       sqlstore.NewUserRepository(db),
			Ping:        func(ctx context.Context) error { return sqlstore.Ping(ctx, db) },
			Close:       func(context.Context) error { return sqlstore.Close(db) },
		}, nil

	case config.StorageMongo:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: mongoCfg.URI, Database: mongoCfg.Database})
		if err != nil {
			return nil, err
		}
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &Stores{
			Medications: mongostore.NewMedicationRepository(db),
			Users:       mongostore.NewUserRepository(db),
			Ping:        func(ctx context.Context) error { return client.Ping(ctx, nil) },
			Close:       client.Disconnect,
		}, nil
	}
	return nil, fmt.Errorf("storage: unsupported driver %q", cfg.Driver)
}
