//go:build wireinject
// +build wireinject

package wire

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/google/wire"

	"github.com/sevigo/patch-warden/internal/app"
	"github.com/sevigo/patch-warden/internal/config"
	"github.com/sevigo/patch-warden/internal/db"
	"github.com/sevigo/patch-warden/internal/formatter"
	"github.com/sevigo/patch-warden/internal/gitutil"
	"github.com/sevigo/patch-warden/internal/jobs"
	"github.com/sevigo/patch-warden/internal/logger"
	"github.com/sevigo/patch-warden/internal/server"
	"github.com/sevigo/patch-warden/internal/storage"
	"github.com/sevigo/patch-warden/internal/trust"
)

func InitializeApp(ctx context.Context) (*app.App, func(), error) {
	wire.Build(
		app.NewApp,
		server.NewServer,
		config.LoadConfig,
		db.NewDatabase,
		storage.NewStore,
		gitutil.NewClient,
		trust.NewGate,
		jobs.NewDispatcher,
		jobs.NewApplyJob,
		provideFormatterRunner,
		provideLoggerConfig,
		provideLogWriter,
		provideDBConfig,
		provideMaxWorkers,
		provideSlogLogger,
	)
	return &app.App{}, nil, nil
}

func provideFormatterRunner(cfg *config.Config, log *slog.Logger) *formatter.Runner {
	return formatter.NewRunner(log)
}

func provideLoggerConfig(cfg *config.Config) logger.Config {
	return cfg.Logging
}

func provideDBConfig(cfg *config.Config) *config.DBConfig {
	return &cfg.Database
}

func provideMaxWorkers(cfg *config.Config) int {
	return cfg.MaxWorkers
}

func provideLogWriter(cfg *config.Config) io.Writer {
	switch cfg.Logging.Output {
	case "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	case "file":
		f, _ := os.OpenFile("patch-warden.log", os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
		return f
	default:
		return os.Stdout
	}
}

func provideSlogLogger(loggerConfig logger.Config, writer io.Writer) *slog.Logger {
	return logger.NewLogger(loggerConfig, writer)
}
