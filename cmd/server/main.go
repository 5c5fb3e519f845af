package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"labInventoryManager/internal/bootstrap"
	"labInventoryManager/internal/config"
	"labInventoryManager/internal/db"
	grpcserver "labInventoryManager/internal/grpc"
	"labInventoryManager/internal/logger"
	"labInventoryManager/repository"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("server", pflag.ContinueOnError)
	dbPath := flags.String("db", "", "SQLite database file (overrides DB_PATH)")
	addr := flags.String("grpc-address", "", "gRPC listen address (overrides GRPC_ADDRESS)")
	level := flags.String("log-level", "", "log level (overrides LOG_LEVEL)")
	dev := flags.Bool("dev", false, "allow a built-in JWT secret when JWT_SECRET is unset")
	migrateDown := flags.Bool("migrate-down", false, "roll back the most recent migration and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	// Load configuration
	load := config.Load
	if *dev {
		load = config.LoadWithDefaults
	}
	cfg, err := load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *addr != "" {
		cfg.GRPC.Address = *addr
	}
	if *level != "" {
		cfg.Log.Level = *level
	}
	logger.Init(cfg.Log.Level)
	log.Info().Stringer("config", cfg).Msg("configuration loaded")

	if *migrateDown {
		return rollback(cfg.Database.Path)
	}

	policy, err := repository.ParseConflictPolicy(cfg.Provision.Policy)
	if err != nil {
		return err
	}

	ctx := context.Background()
	d, err := bootstrap.Run(ctx, cfg.Database.Path, cfg.Admin)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			log.Error().Err(err).Msg("close db")
		}
	}()

	users := repository.NewUserRepository(d).WithPolicy(policy)
	items := repository.NewItemRepository(d)
	if n, err := items.Count(ctx); err == nil {
		log.Info().Int64("items", n).Str("policy", policy.String()).Msg("inventory ready")
	}

	shutdown, err := grpcserver.StartGRPC(cfg, &grpcserver.Server{
		Users:     users,
		Items:     items,
		JWTSecret: cfg.Auth.JWTSecret,
		TokenTTL:  cfg.Auth.TokenTTL,
	})
	if err != nil {
		return fmt.Errorf("start grpc: %w", err)
	}
	log.Info().Str("address", cfg.GRPC.Address).Msg("gRPC server listening")

	// Wait for signal
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown timed out; connections were closed")
	}
	log.Info().Msg("server stopped")
	return nil
}

func rollback(path string) error {
	d, err := db.OpenRaw(path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer d.Close()
	v, err := db.RollbackLast(d)
	if err != nil {
		return err
	}
	if v == 0 {
		log.Info().Msg("no migration to roll back")
	}
	return nil
}
