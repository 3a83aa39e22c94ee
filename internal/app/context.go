package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"homeward/internal/config"
	"homeward/internal/repo"
)

// ResolveConfig loads the shelter configuration stored in the
// workspace database, seeding the default on first use so every
// command sees a validated config.
func ResolveConfig(ctx context.Context, r repo.Repo) (*config.Config, error) {
	cfg, err := r.GetSettings(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	seed := config.Default()
	if err := r.SaveSettings(ctx, seed, time.Now()); err != nil {
		return nil, fmt.Errorf("seed settings: %w", err)
	}
	return seed, nil
}
