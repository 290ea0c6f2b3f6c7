package database_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/edupipe/course-agent/config"
	"github.com/edupipe/course-agent/database"
)

func TestDatabaseConnectivity(t *testing.T) {
	if os.Getenv("RUN_DB_INTEGRATION_TESTS") != "1" {
		t.Skip("set RUN_DB_INTEGRATION_TESTS=1 to run database integration checks")
	}

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		t.Fatalf("create postgres pool: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("ping postgres: %v", err)
	}

	driver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		t.Fatalf("create neo4j driver: %v", err)
	}
	defer func() {
		if closeErr := driver.Close(ctx); closeErr != nil {
			t.Errorf("close neo4j driver: %v", closeErr)
		}
	}()

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer func() {
		if closeErr := session.Close(ctx); closeErr != nil {
			t.Errorf("close neo4j session: %v", closeErr)
		}
	}()

	result, err := session.Run(ctx, "RETURN 1 AS ok", nil)
	if err != nil {
		t.Fatalf("run neo4j ping query: %v", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			t.Fatalf("neo4j query error: %v", err)
		}
		t.Fatal("neo4j query returned no records")
	}

	value, found := result.Record().Get("ok")
	if !found {
		t.Fatal("neo4j query missing 'ok' field")
	}
	if intValue, ok := value.(int64); !ok || intValue != 1 {
		t.Fatalf("unexpected neo4j return value: %#v", value)
	}
}
