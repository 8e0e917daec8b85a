package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/barter/internal/config"
	"github.com/aretw0/barter/pkg/catalog"
	"github.com/aretw0/barter/pkg/domain"
)

// SeedResult counts what a seed run did.
type SeedResult struct {
	Created int
	Skipped int
}

// SeedCatalog creates every seed item. Items whose ID already exists are skipped.
func SeedCatalog(ctx context.Context, cat *catalog.Service, seed *config.Seed, logger *slog.Logger) (SeedResult, error) {
	var res SeedResult
	for _, item := range seed.Items {
		_, err := cat.Create(ctx, item)
		if errors.Is(err, domain.ErrItemExists) {
			logger.DebugContext(ctx, "seed item exists", "item_id", item.ID)
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("failed to seed item %q: %w", item.Title, err)
		}
		res.Created++
	}
	return res, nil
}

// Seed opens the configured store and loads the seed file into it.
func Seed(ctx context.Context, cfg config.Config, path string, logger *slog.Logger) (SeedResult, error) {
	seed, err := config.LoadSeed(path)
	if err != nil {
		return SeedResult{}, err
	}
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return SeedResult{}, err
	}
	defer store.Close()

	return SeedCatalog(ctx, catalog.New(store, catalog.WithLogger(logger)), seed, logger)
}
