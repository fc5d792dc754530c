package main

import (
	"context"
	"flag"
	"log"

	"github.com/pressly/goose/v3"

	"github.com/noah-isme/uni-api/migrations"
	"github.com/noah-isme/uni-api/pkg/config"
	"github.com/noah-isme/uni-api/pkg/database"
)

const usage = `usage: migrate [up|down|status|version|redo|reset|up-to VERSION|down-to VERSION]`

func main() {
	flag.Usage = func() { log.Println(usage) }
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		args = []string{"up"}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect postgres: %v", err)
	}
	defer db.Close() //nolint:errcheck

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(database.DriverName); err != nil {
		log.Fatalf("failed to set goose dialect: %v", err)
	}
	if err := goose.Run(args[0], db.DB, ".", args[1:]...); err != nil {
		log.Fatalf("migrate %s: %v", args[0], err)
	}
}
