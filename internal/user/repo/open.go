package repo

import (
	"context"
	"fmt"

	"github.com/ovaphlow/pitchfork/service-fusion-go/pkg/database"
)

// Open connects to the configured backend and prepares its schema: goose
// migrations for SQL backends, unique indexes for MongoDB. The returned
// func releases the connection.
func Open(ctx context.Context, cfg database.Config) (Repository, func() error, error) {
	if cfg.Type == database.MongoDB {
		client, db, err := database.ConnectMongo(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() error { return client.Disconnect(context.Background()) }
		r := NewMongoRepo(db)
		if err := r.EnsureIndexes(ctx); err != nil {
			_ = closeFn()
			return nil, nil, fmt.Errorf("ensure indexes: %w", err)
		}
		return r, closeFn, nil
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, db.DB, cfg.Type); err != nil {
		db.Close()
		return nil, nil, err
	}
	return NewSQLRepo(db), db.Close, nil
}
