package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"opsdesk.dev/internal/audit"
	"opsdesk.dev/internal/directory"
	"opsdesk.dev/internal/guard"
	"opsdesk.dev/internal/httpapi"
	"opsdesk.dev/internal/obs"
	"opsdesk.dev/internal/ratelimit"
	"opsdesk.dev/internal/rbac"
	"opsdesk.dev/internal/store/memstore"
	"opsdesk.dev/internal/store/pg"
	"opsdesk.dev/internal/workspace"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	// .env is optional; real deployments configure through the environment.
	_ = godotenv.Load()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	var (
		auditStore audit.Store
		members    workspace.MemberStore
		dir        directory.Store
		probe      httpapi.ReadyProbe
		pgStore    *pg.Store
	)

	if dsn := os.Getenv("OPSDESK_PG_DSN"); dsn != "" {
		var err error
		pgStore, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		auditStore = pgStore
		members = pgStore
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
		// Business objects live with the backend collaborator; the in-memory
		// directory stands in until one is wired.
		dir = memstore.NewDirectory()
	} else {
		log.Println("OPSDESK_PG_DSN not set, running on in-memory stores")
		auditStore = memstore.NewAuditStore()
		mem := memstore.NewMemberStore()
		members = mem
		dir = memstore.NewDirectory()
		seedDevAdmin(mem)
	}

	limiter, err := ratelimit.New(auditStore)
	if err != nil {
		log.Fatalf("rate limiter: %v", err)
	}
	auditor, err := audit.NewLogger(auditStore)
	if err != nil {
		log.Fatalf("audit logger: %v", err)
	}
	g, err := guard.New(workspace.Resolver{Store: members}, limiter, auditor)
	if err != nil {
		log.Fatalf("guard: %v", err)
	}

	api, err := httpapi.New(httpapi.Config{
		Guard:      g,
		Auditor:    auditor,
		Members:    members,
		Directory:  dir,
		ReadyProbe: probe,
		Version:    version,
	})
	if err != nil {
		log.Fatalf("api: %v", err)
	}

	addr := os.Getenv("OPSDESK_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting opsdesk-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}

// seedDevAdmin adds a bootstrap admin for in-memory runs. Format:
// OPSDESK_DEV_ADMIN="workspace-id:user-id:email".
func seedDevAdmin(members *memstore.MemberStore) {
	raw := strings.TrimSpace(os.Getenv("OPSDESK_DEV_ADMIN"))
	if raw == "" {
		return
	}
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 {
		log.Printf("ignoring malformed OPSDESK_DEV_ADMIN %q", raw)
		return
	}
	err := members.Add(context.Background(), workspace.Member{
		WorkspaceID: parts[0],
		UserID:      parts[1],
		Email:       parts[2],
		Role:        rbac.RoleAdmin,
	})
	if err != nil {
		log.Printf("seed dev admin: %v", err)
	}
}
