//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	handler "github.com/samirrijal/taskpin/internal/adapters/http"
	"github.com/samirrijal/taskpin/internal/adapters/postgres"
	"github.com/samirrijal/taskpin/internal/core/usecases"
	"github.com/samirrijal/taskpin/internal/pkg/config"
)

// setupTestDB connects to the test database. The tasks table must exist
// (run cmd/migrate first).
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("taskpin-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, cfg.Database.DSN(), 4)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	return db
}

// setupTestDeps creates dependencies with the real task repository.
func setupTestDeps(db *postgres.DB) *handler.Dependencies {
	return &handler.Dependencies{
		Tasks: usecases.NewTaskService(postgres.NewTaskRepo(db), nil),
		DB:    db,
	}
}

func TestTaskLifecycle_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Close()
	app := setupApp(setupTestDeps(db))

	title := "integration " + time.Now().Format("20060102150405")
	body := fmt.Sprintf(`{"title":%q,"lat":43.263,"lng":-2.935}`, title)
	req := httptest.NewRequest("POST", "/add", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("add: expected 200, got %d", resp.StatusCode)
	}

	var saved struct {
		Task []interface{} `json:"task"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&saved); err != nil {
		t.Fatalf("decode add: %v", err)
	}
	id := int64(saved.Task[0].(float64))

	resp, _ = app.Test(httptest.NewRequest("GET", "/tasks", nil), -1)
	var rows [][]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	found := false
	for _, r := range rows {
		if int64(r[0].(float64)) == id && r[1].(string) == title {
			found = true
		}
	}
	if !found {
		t.Fatalf("task %d not listed", id)
	}

	for i := 0; i < 2; i++ {
		resp, _ = app.Test(httptest.NewRequest("DELETE", fmt.Sprintf("/delete/%d", id), nil), -1)
		if resp.StatusCode != 200 {
			t.Fatalf("delete attempt %d: expected 200, got %d", i+1, resp.StatusCode)
		}
	}
}

func TestReady_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Close()
	app := setupApp(setupTestDeps(db))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/ready", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
