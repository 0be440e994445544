// Seed tool: provisions a demo brand and prints dashboard/kiosk tokens for
// it. Meant for local development against an empty database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/kioskops/fleet-hub/internal/auth"
	"github.com/kioskops/fleet-hub/internal/db"
	"github.com/kioskops/fleet-hub/internal/store"
)

func main() {
	_ = godotenv.Load()

	var (
		name      = flag.String("name", "Demo Brand", "brand name")
		namespace = flag.String("namespace", "demo", "socket namespace for the brand")
		kioskID   = flag.String("kiosk", "kiosk-1", "kiosk id to mint a token for")
	)
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	secret := os.Getenv("JWT_SECRET")
	if dbURL == "" || secret == "" {
		slog.Error("DATABASE_URL and JWT_SECRET must be set")
		os.Exit(1)
	}

	if err := run(dbURL, secret, *name, *namespace, *kioskID); err != nil {
		slog.Error("Seed failed", "error", err)
		os.Exit(1)
	}
}

func run(dbURL, secret, name, namespace, kioskID string) error {
	schema := os.Getenv("DATABASE_SCHEMA")
	if err := db.RunMigrations(dbURL, schema); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.InitDB(ctx, dbURL, schema)
	if err != nil {
		return err
	}
	defer pool.Close()

	storeService := store.NewService(pool)

	tenant, err := storeService.CreateTenant(ctx, name, "", namespace)
	if err != nil {
		if errors.Is(err, store.ErrNamespaceConflict) {
			tenant, err = storeService.FindTenantByNamespace(ctx, namespace)
		}
		if err != nil {
			return fmt.Errorf("provision brand: %w", err)
		}
	}
	slog.Info("Brand ready", "id", tenant.ID, "namespace", tenant.Namespace)

	cfg := auth.Config{Secret: secret, Issuer: "fleet-hub", TokenTTL: 24 * time.Hour}

	dashboardToken, err := auth.GenerateToken(cfg, "seed-admin", auth.RoleBrandAdmin, tenant.OrgID, tenant.ID)
	if err != nil {
		return fmt.Errorf("generate dashboard token: %w", err)
	}
	kioskToken, err := auth.GenerateToken(cfg, kioskID, auth.RoleKiosk, tenant.OrgID, tenant.ID)
	if err != nil {
		return fmt.Errorf("generate kiosk token: %w", err)
	}

	fmt.Printf("namespace:       %s\n", tenant.Namespace)
	fmt.Printf("dashboard token: %s\n", dashboardToken)
	fmt.Printf("kiosk token:     %s\n", kioskToken)
	return nil
}
