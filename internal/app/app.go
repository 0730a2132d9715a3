package app

import (
	"database/sql"
	"fmt"
	"log"

	"pitstop/internal/config"
	"pitstop/internal/db"
	"pitstop/internal/engine"
	"pitstop/internal/migrate"
	"pitstop/internal/notify"
)

// App bundles the opened database, loaded config and a ready engine. CLI
// commands and the server share this bootstrap so they always agree on
// workspace layout and migration state.
type App struct {
	Workspace string
	DB        *sql.DB
	Config    *config.Config
	Engine    engine.Engine
	Logger    *log.Logger
}

// Open prepares the workspace, opens the database, applies pending
// migrations and loads config, seeding defaults when no file exists.
func Open(workspace string, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Default()
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("load config: %w", err)
	}
	eng := engine.New(conn, cfg, notify.NewDispatcher(cfg.Notify, logger))
	return &App{
		Workspace: workspace,
		DB:        conn,
		Config:    cfg,
		Engine:    eng,
		Logger:    logger,
	}, nil
}

func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
