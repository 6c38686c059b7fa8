package database

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

// getPostgresTestConfig returns PostgreSQL config if available, nil otherwise.
// Set MAPFORGE_TEST_POSTGRES to run these tests; connection settings come
// from MAPFORGE_TEST_POSTGRES_{HOST,PORT,USER,PASSWORD,DATABASE}.
func getPostgresTestConfig() *Config {
	if os.Getenv("MAPFORGE_TEST_POSTGRES") == "" {
		return nil
	}

	pg := DefaultPostgresConfig()
	if host := os.Getenv("MAPFORGE_TEST_POSTGRES_HOST"); host != "" {
		pg.Host = host
	}
	if portStr := os.Getenv("MAPFORGE_TEST_POSTGRES_PORT"); portStr != "" {
		fmt.Sscanf(portStr, "%d", &pg.Port)
	}
	if user := os.Getenv("MAPFORGE_TEST_POSTGRES_USER"); user != "" {
		pg.User = user
	}
	pg.Password = os.Getenv("MAPFORGE_TEST_POSTGRES_PASSWORD")
	if database := os.Getenv("MAPFORGE_TEST_POSTGRES_DATABASE"); database != "" {
		pg.Database = database
	}
	pg.ConnMaxLifetime = time.Minute

	return &Config{Driver: "postgres", Postgres: pg}
}

func setupPostgresTestDB(t *testing.T) *Database {
	cfg := getPostgresTestConfig()
	if cfg == nil {
		t.Skip("Skipping PostgreSQL test: MAPFORGE_TEST_POSTGRES not set")
	}

	db, err := OpenWithConfig(*cfg)
	if err != nil {
		t.Fatalf("Failed to open PostgreSQL database: %v", err)
	}
	if _, err := db.db.Exec("DELETE FROM tileset_jobs"); err != nil {
		t.Logf("Note: Could not clean tileset_jobs: %v", err)
	}
	t.Cleanup(func() {
		db.db.Exec("DELETE FROM tileset_jobs")
		db.Close()
	})
	return db
}

func TestPostgres_JobLifecycle(t *testing.T) {
	db := setupPostgresTestDB(t)
	ctx := context.Background()

	job := &JobRecord{JobID: "pg-1", LowerDescription: "ocean", UpperDescription: "sand", TransitionSize: 0.5, TileSize: 16}
	if err := db.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if err := db.CreateJob(ctx, job); err == nil {
		t.Error("duplicate CreateJob succeeded")
	}

	job.Status = StatusCompleted
	job.UpperBaseTileID = "up"
	if err := db.UpdateJob(ctx, job); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	got, err := db.GetJob(ctx, "pg-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusCompleted || got.TransitionSize != 0.5 {
		t.Errorf("job = %+v", got)
	}
}
