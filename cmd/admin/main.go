// Command admin is the operator CLI for a TopTuitions database.
//
//	admin adduser -email E -name N -role student|tuition_owner
//	admin catalog -name S -location L -sort rating|name-asc|name-desc -limit N
//
// It reads the same configuration as the server (DB_PATH, CATALOG_SIZE, ...).
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/toptuitions/toptuitions/internal/auth"
	"github.com/toptuitions/toptuitions/internal/catalog"
	"github.com/toptuitions/toptuitions/internal/config"
	sqliteRepo "github.com/toptuitions/toptuitions/internal/repository/sqlite"
	"github.com/toptuitions/toptuitions/internal/service"
)

func main() {
	cfg, err := config.Load(config.EnvFile())
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	defer db.Close()

	cli := commandLine{
		// No token service: the CLI creates accounts but never signs anyone in.
		accounts: service.NewAuthService(db, db, nil, auth.NewPasswordService(), nil, service.AuthOptions{}, logger),
		catalog:  service.NewCatalogService(catalog.New(cfg.CatalogSize, cfg.CatalogSeed, catalog.NewImageSet("/static/", nil))),
		out:      os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if !errors.Is(err, errHelp) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		db.Close()
		os.Exit(1)
	}
}
