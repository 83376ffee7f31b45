package bootstrap

import (
	"context"

	"github.com/m3rciful/groupwarden/core/logger"
	"log/slog"
)

// Storage represents shared infrastructure passed to optional modules.
type Storage interface{}

// Seeder loads reference data into a storage implementation.
type Seeder interface {
	Seed(ctx context.Context, storage Storage) error
}

// SeederFunc adapts a bare function to the Seeder interface.
type SeederFunc func(ctx context.Context, storage Storage) error

// Seed executes the underlying function.
func (f SeederFunc) Seed(ctx context.Context, storage Storage) error {
	return f(ctx, storage)
}

// RunSeeders executes the seeders in order, stopping at the first failure.
func RunSeeders(ctx context.Context, storage Storage, seeders []Seeder) error {
	for i, s := range seeders {
		if s == nil {
			continue
		}
		if err := s.Seed(ctx, storage); err != nil {
			logger.SEED.Error("seeder failed",
				slog.String("event", "seed.failed"),
				slog.Int("index", i),
				slog.String("err", err.Error()),
			)
			return err
		}
	}
	return nil
}
