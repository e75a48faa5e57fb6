package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/recon/internal/accounts"
	"github.com/cleared-dev/recon/internal/classify"
	"github.com/cleared-dev/recon/internal/config"
	"github.com/cleared-dev/recon/internal/logger"
	"github.com/cleared-dev/recon/internal/reconcile"
	"github.com/cleared-dev/recon/internal/storage/sqlite"
)

// workspace is an opened recon directory: its config, logger and store.
type workspace struct {
	root  string
	cfg   *config.Config
	log   zerolog.Logger
	store *sqlite.Store
}

func openWorkspace(repoDir string) (*workspace, error) {
	root, err := filepath.Abs(repoDir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s is not a recon workspace; run `recon init` first", root)
	}
	if err != nil {
		return nil, err
	}

	log, err := logger.Configure(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	dbPath := cfg.Storage.DBPath
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(root, dbPath)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database dir: %w", err)
	}
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, err
	}

	return &workspace{root: root, cfg: cfg, log: log, store: store}, nil
}

func (w *workspace) Close() error {
	return w.store.Close()
}

// context attaches the workspace logger to ctx.
func (w *workspace) context(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return logger.WithContext(ctx, w.log)
}

func (w *workspace) path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(w.root, rel)
}

func (w *workspace) accounts() (*accounts.Service, error) {
	return accounts.Load(w.root)
}

// registry loads the supplier registry. A workspace without one classifies
// with no suppliers.
func (w *workspace) registry() (*classify.Registry, error) {
	reg, err := classify.LoadRegistry(w.path(w.cfg.Registry.Path))
	if errors.Is(err, os.ErrNotExist) {
		w.log.Warn().Str("path", w.cfg.Registry.Path).Msg("registry not found; classifying without suppliers")
		return classify.NewRegistry(nil, nil, nil), nil
	}
	return reg, err
}

func (w *workspace) service() (*reconcile.Service, error) {
	reg, err := w.registry()
	if err != nil {
		return nil, err
	}
	return reconcile.NewService(w.store, reg, reconcile.Options{
		PageSize:       w.cfg.Engine.PageSize,
		Parallelism:    w.cfg.Engine.Parallelism,
		RecordFailures: w.cfg.Engine.RecordFailures,
	}), nil
}
