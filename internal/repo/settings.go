package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"homeward/internal/config"
)

const settingsID = "shelter"

// GetSettings loads the stored shelter configuration.
func (r Repo) GetSettings(ctx context.Context) (*config.Config, error) {
	var raw string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM settings WHERE id=?`, settingsID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	cfg, err := config.FromYAML([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("stored settings: %w", err)
	}
	return cfg, nil
}

// SaveSettings validates and upserts the shelter configuration.
func (r Repo) SaveSettings(ctx context.Context, cfg *config.Config, now time.Time) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	ts := now.UTC().Format(time.RFC3339)
	_, err = r.DB.ExecContext(ctx, `INSERT INTO settings(id,config_json,created_at,updated_at) VALUES (?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`,
		settingsID, string(data), ts, ts)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
