package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"opsdesk.dev/internal/migrate"
	"opsdesk.dev/internal/store/pg"
)

func main() {
	_ = godotenv.Load()

	dsn := flag.String("dsn", os.Getenv("OPSDESK_PG_DSN"), "postgres connection string")
	dir := flag.String("migrations", "ops/migrations/sql", "path to migration files")
	flag.Parse()

	if *dsn == "" {
		log.Fatal("no DSN: pass -dsn or set OPSDESK_PG_DSN")
	}
	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	mgr := migrate.NewManager(store.DB(), *dir)

	switch cmd {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "status":
		var applied []string
		applied, err = mgr.Status(ctx)
		if err == nil {
			if len(applied) == 0 {
				fmt.Println("no migrations applied")
			}
			for _, name := range applied {
				fmt.Println(name)
			}
		}
	default:
		log.Fatalf("unknown command %q (want up, down or status)", cmd)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}
