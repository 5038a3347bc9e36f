package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	handler "github.com/samirrijal/taskpin/internal/adapters/http"
	"github.com/samirrijal/taskpin/internal/core/domain"
	"github.com/samirrijal/taskpin/internal/core/usecases"
)

// ---- Mock repositories ----

type mockTaskRepo struct {
	mu     sync.Mutex
	tasks  []domain.Task
	nextID int64

	listFn   func(ctx context.Context) ([]domain.Task, error)
	deleteFn func(ctx context.Context, id int64) (bool, error)
}

func newMockTaskRepo(tasks ...domain.Task) *mockTaskRepo {
	r := &mockTaskRepo{tasks: append([]domain.Task{}, tasks...), nextID: 1}
	for _, t := range tasks {
		if t.ID >= r.nextID {
			r.nextID = t.ID + 1
		}
	}
	return r
}

func (m *mockTaskRepo) List(ctx context.Context) ([]domain.Task, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Task{}, m.tasks...), nil
}

func (m *mockTaskRepo) Create(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task.ID = m.nextID
	m.nextID++
	m.tasks = append(m.tasks, *task)
	return nil
}

func (m *mockTaskRepo) Delete(ctx context.Context, id int64) (bool, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tasks {
		if t.ID == id {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTaskRepo) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks), nil
}

type mockGeocoder struct {
	searchFn func(ctx context.Context, query string, limit int) ([]domain.Place, error)
}

func (m *mockGeocoder) Search(ctx context.Context, query string, limit int) ([]domain.Place, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, limit)
	}
	return nil, nil
}

// ---- Test helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	d := &handler.Dependencies{
		Tasks:   usecases.NewTaskService(newMockTaskRepo(), nil),
		Geocode: usecases.NewGeocodeService(&mockGeocoder{}, nil, 0),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func withTasks(tasks ...domain.Task) func(*handler.Dependencies) {
	return func(d *handler.Dependencies) {
		d.Tasks = usecases.NewTaskService(newMockTaskRepo(tasks...), nil)
	}
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

var bilbaoTasks = []domain.Task{
	{ID: 1, Title: "Milk", Location: domain.GeoPoint{Lat: 43.2630, Lon: -2.9350}},
	{ID: 2, Title: "Post office", Location: domain.GeoPoint{Lat: 43.2570, Lon: -2.9230}},
	{ID: 3, Title: "Pharmacy", Location: domain.GeoPoint{Lat: 43.2700, Lon: -2.9400}},
}

// ---- Task store API ----

func TestListTasks_TupleFormat(t *testing.T) {
	app := setupApp(makeDeps(withTasks(bilbaoTasks...)))

	req := httptest.NewRequest("GET", "/tasks", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var rows [][]interface{}
	if err := json.Unmarshal(readBody(t, resp.Body), &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	first := rows[0]
	if len(first) != 4 {
		t.Fatalf("expected 4-element tuple, got %v", first)
	}
	if first[0].(float64) != 1 || first[1].(string) != "Milk" {
		t.Errorf("unexpected first row %v", first)
	}
	if first[2].(float64) != 43.2630 || first[3].(float64) != -2.9350 {
		t.Errorf("unexpected coordinates %v", first)
	}
}

func TestListTasks_EmptyIsArray(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/tasks", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := strings.TrimSpace(string(readBody(t, resp.Body)))
	if body != "[]" {
		t.Errorf("expected [], got %s", body)
	}
}

func TestListTasks_NoStoreCacheControl(t *testing.T) {
	app := setupApp(makeDeps(withTasks(bilbaoTasks...)))

	req := httptest.NewRequest("GET", "/tasks", nil)
	resp, _ := app.Test(req, -1)
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("expected no-store, got %q", cc)
	}
}

func TestListTasks_StoreDown(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Tasks = usecases.NewTaskService(&mockTaskRepo{
			listFn: func(ctx context.Context) ([]domain.Task, error) {
				return nil, errors.New("connection refused")
			},
		}, nil)
	}))

	req := httptest.NewRequest("GET", "/tasks", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}

	var apiErr handler.APIError
	if err := json.Unmarshal(readBody(t, resp.Body), &apiErr); err != nil {
		t.Fatal(err)
	}
	if apiErr.Code != "unavailable" {
		t.Errorf("expected code unavailable, got %q", apiErr.Code)
	}
	if apiErr.RequestID == "" {
		t.Error("expected request id in error body")
	}
}

func TestAddTask_Success(t *testing.T) {
	repo := newMockTaskRepo()
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Tasks = usecases.NewTaskService(repo, nil)
	}))

	body := `{"title":"  Buy milk ","lat":43.263,"lng":-2.935}`
	req := httptest.NewRequest("POST", "/add", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	var result struct {
		Message string        `json:"message"`
		Task    []interface{} `json:"task"`
	}
	if err := json.Unmarshal(readBody(t, resp.Body), &result); err != nil {
		t.Fatal(err)
	}
	if result.Message != "Task Saved" {
		t.Errorf("expected 'Task Saved', got %q", result.Message)
	}
	if len(result.Task) != 4 || result.Task[1].(string) != "Buy milk" {
		t.Errorf("unexpected echoed task %v", result.Task)
	}

	if n, _ := repo.Count(context.Background()); n != 1 {
		t.Errorf("expected 1 stored task, got %d", n)
	}
}

func TestAddTask_Invalid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty title", `{"title":"","lat":43.2,"lng":-2.9}`},
		{"blank title", `{"title":"   ","lat":43.2,"lng":-2.9}`},
		{"missing location", `{"title":"Milk"}`},
		{"missing lng", `{"title":"Milk","lat":43.2}`},
		{"latitude out of range", `{"title":"Milk","lat":91,"lng":0}`},
		{"malformed", `{"title":`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMockTaskRepo()
			app := setupApp(makeDeps(func(d *handler.Dependencies) {
				d.Tasks = usecases.NewTaskService(repo, nil)
			}))

			req := httptest.NewRequest("POST", "/add", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			resp, _ := app.Test(req, -1)
			if resp.StatusCode != 400 {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			if n, _ := repo.Count(context.Background()); n != 0 {
				t.Errorf("invalid request stored %d tasks", n)
			}
		})
	}
}

func TestDeleteTask_Success(t *testing.T) {
	repo := newMockTaskRepo(bilbaoTasks...)
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Tasks = usecases.NewTaskService(repo, nil)
	}))

	req := httptest.NewRequest("DELETE", "/delete/2", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result map[string]string
	json.Unmarshal(readBody(t, resp.Body), &result)
	if result["message"] != "Task Deleted!" {
		t.Errorf("expected 'Task Deleted!', got %q", result["message"])
	}
	if n, _ := repo.Count(context.Background()); n != 2 {
		t.Errorf("expected 2 tasks left, got %d", n)
	}
}

func TestDeleteTask_UnknownIDSucceeds(t *testing.T) {
	app := setupApp(makeDeps(withTasks(bilbaoTasks...)))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("DELETE", "/delete/999", nil)
		resp, _ := app.Test(req, -1)
		if resp.StatusCode != 200 {
			t.Fatalf("attempt %d: expected 200, got %d", i+1, resp.StatusCode)
		}
	}
}

func TestDeleteTask_BadID(t *testing.T) {
	app := setupApp(makeDeps())

	for _, id := range []string{"abc", "0", "-4"} {
		req := httptest.NewRequest("DELETE", "/delete/"+id, nil)
		resp, _ := app.Test(req, -1)
		if resp.StatusCode != 400 {
			t.Errorf("id %q: expected 400, got %d", id, resp.StatusCode)
		}
	}
}

// ---- v1 API ----

func TestListTasksV1_Pagination(t *testing.T) {
	tasks := make([]domain.Task, 5)
	for i := range tasks {
		tasks[i] = domain.Task{ID: int64(i + 1), Title: fmt.Sprintf("Task %d", i+1)}
	}
	app := setupApp(makeDeps(withTasks(tasks...)))

	req := httptest.NewRequest("GET", "/v1/tasks?offset=2&limit=2", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.Task `json:"data"`
		Pagination struct {
			Offset int `json:"offset"`
			Limit  int `json:"limit"`
			Total  int `json:"total"`
		} `json:"pagination"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Pagination.Total != 5 {
		t.Errorf("expected total 5, got %d", result.Pagination.Total)
	}
	if len(result.Data) != 2 || result.Data[0].ID != 3 {
		t.Errorf("expected tasks 3 and 4, got %+v", result.Data)
	}
	if result.Pagination.Offset != 2 {
		t.Errorf("expected offset 2, got %d", result.Pagination.Offset)
	}
}

func TestListTasksV1_LinkHeader(t *testing.T) {
	tasks := make([]domain.Task, 10)
	for i := range tasks {
		tasks[i] = domain.Task{ID: int64(i + 1), Title: fmt.Sprintf("Task %d", i+1)}
	}
	app := setupApp(makeDeps(withTasks(tasks...)))

	req := httptest.NewRequest("GET", "/v1/tasks?offset=0&limit=3", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	link := resp.Header.Get("Link")
	if link == "" {
		t.Fatal("expected Link header, got empty")
	}
	for _, rel := range []string{`rel="first"`, `rel="next"`, `rel="last"`} {
		if !strings.Contains(link, rel) {
			t.Errorf("expected %s in %s", rel, link)
		}
	}
	if strings.Contains(link, `rel="prev"`) {
		t.Errorf("unexpected prev link on first page: %s", link)
	}
}

func TestNearbyTasks_OrderedByDistance(t *testing.T) {
	app := setupApp(makeDeps(withTasks(bilbaoTasks...)))

	// Standing next to the post office.
	req := httptest.NewRequest("GET", "/v1/tasks/nearby?lat=43.2571&lng=-2.9231", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var ranked []domain.RankedTask
	if err := json.Unmarshal(readBody(t, resp.Body), &ranked); err != nil {
		t.Fatal(err)
	}
	if len(ranked) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(ranked))
	}
	if ranked[0].Title != "Post office" {
		t.Errorf("expected Post office first, got %s", ranked[0].Title)
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].DistanceKm < ranked[i-1].DistanceKm {
			t.Errorf("not sorted at %d: %v < %v", i, ranked[i].DistanceKm, ranked[i-1].DistanceKm)
		}
	}
}

func TestNearbyTasks_Limit(t *testing.T) {
	app := setupApp(makeDeps(withTasks(bilbaoTasks...)))

	req := httptest.NewRequest("GET", "/v1/tasks/nearby?lat=43.26&lng=-2.93&limit=1", nil)
	resp, _ := app.Test(req, -1)

	var ranked []domain.RankedTask
	json.Unmarshal(readBody(t, resp.Body), &ranked)
	if len(ranked) != 1 {
		t.Errorf("expected 1 task, got %d", len(ranked))
	}
}

func TestNearbyTasks_MissingParams(t *testing.T) {
	app := setupApp(makeDeps())

	for _, q := range []string{"", "?lat=43.2", "?lng=-2.9", "?lat=x&lng=y"} {
		req := httptest.NewRequest("GET", "/v1/tasks/nearby"+q, nil)
		resp, _ := app.Test(req, -1)
		if resp.StatusCode != 400 {
			t.Errorf("query %q: expected 400, got %d", q, resp.StatusCode)
		}
	}
}

func TestNearbyTasks_OutOfRange(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/tasks/nearby?lat=120&lng=0", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- Geocoding ----

func TestGeocode_Success(t *testing.T) {
	var gotLimit int
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Geocode = usecases.NewGeocodeService(&mockGeocoder{
			searchFn: func(ctx context.Context, query string, limit int) ([]domain.Place, error) {
				gotLimit = limit
				return []domain.Place{{Name: "Guggenheim Bilbao", Location: domain.GeoPoint{Lat: 43.2687, Lon: -2.9340}}}, nil
			},
		}, nil, 0)
	}))

	req := httptest.NewRequest("GET", "/v1/geocode?q=guggenheim", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if gotLimit != 1 {
		t.Errorf("expected default limit 1, got %d", gotLimit)
	}

	var places []domain.Place
	json.Unmarshal(readBody(t, resp.Body), &places)
	if len(places) != 1 || places[0].Location.Lat != 43.2687 {
		t.Errorf("unexpected places %+v", places)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=3600" {
		t.Errorf("expected geocode Cache-Control, got %q", cc)
	}
}

func TestGeocode_DefaultReturnsFirstMatchOnly(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Geocode = usecases.NewGeocodeService(&mockGeocoder{
			searchFn: func(ctx context.Context, query string, limit int) ([]domain.Place, error) {
				return []domain.Place{
					{Name: "Plaza Moyua", Location: domain.GeoPoint{Lat: 43.2630, Lon: -2.9350}},
					{Name: "Moyua Metro", Location: domain.GeoPoint{Lat: 43.2632, Lon: -2.9349}},
				}, nil
			},
		}, nil, 0)
	}))

	req := httptest.NewRequest("GET", "/v1/geocode?q=moyua", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var places []domain.Place
	json.Unmarshal(readBody(t, resp.Body), &places)
	if len(places) != 1 || places[0].Name != "Plaza Moyua" {
		t.Errorf("expected only the first match, got %+v", places)
	}

	req = httptest.NewRequest("GET", "/v1/geocode?q=moyua&limit=5", nil)
	resp, _ = app.Test(req, -1)
	places = nil
	json.Unmarshal(readBody(t, resp.Body), &places)
	if len(places) != 2 {
		t.Errorf("expected every match with limit=5, got %+v", places)
	}
}

func TestGeocode_NoResult(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Geocode = usecases.NewGeocodeService(&mockGeocoder{
			searchFn: func(ctx context.Context, query string, limit int) ([]domain.Place, error) {
				return nil, nil
			},
		}, nil, 0)
	}))

	req := httptest.NewRequest("GET", "/v1/geocode?q=nowhere", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	var apiErr handler.APIError
	json.Unmarshal(readBody(t, resp.Body), &apiErr)
	if apiErr.Code != "no_result" {
		t.Errorf("expected code no_result, got %q", apiErr.Code)
	}
}

func TestGeocode_MissingQuery(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/geocode", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGeocode_NotConfigured(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) { d.Geocode = nil }))

	req := httptest.NewRequest("GET", "/v1/geocode?q=bilbao", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 503 {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

// ---- GraphQL ----

func postGraphQL(t *testing.T, app *fiber.App, query string) map[string]interface{} {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"query": query})
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result map[string]interface{}
	if err := json.Unmarshal(readBody(t, resp.Body), &result); err != nil {
		t.Fatal(err)
	}
	if errs, ok := result["errors"]; ok {
		t.Fatalf("graphql errors: %v", errs)
	}
	return result["data"].(map[string]interface{})
}

func TestGraphQL_TasksAndNearest(t *testing.T) {
	app := setupApp(makeDeps(withTasks(bilbaoTasks...)))

	data := postGraphQL(t, app, `{ tasks { id title location { lat lon } } nearestTasks(lat: 43.2701, lon: -2.9401, limit: 1) { title distance_km } }`)

	tasks := data["tasks"].([]interface{})
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	nearest := data["nearestTasks"].([]interface{})
	if len(nearest) != 1 {
		t.Fatalf("expected 1 nearest task, got %d", len(nearest))
	}
	if title := nearest[0].(map[string]interface{})["title"]; title != "Pharmacy" {
		t.Errorf("expected Pharmacy, got %v", title)
	}
}

func TestGraphQL_CreateAndDelete(t *testing.T) {
	repo := newMockTaskRepo()
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Tasks = usecases.NewTaskService(repo, nil)
	}))

	data := postGraphQL(t, app, `mutation { createTask(title: "Bread", lat: 43.26, lon: -2.93) { id title } }`)
	created := data["createTask"].(map[string]interface{})
	if created["title"] != "Bread" {
		t.Errorf("expected Bread, got %v", created["title"])
	}
	id := int(created["id"].(float64))

	data = postGraphQL(t, app, fmt.Sprintf(`mutation { deleteTask(id: %d) }`, id))
	if data["deleteTask"] != true {
		t.Errorf("expected deleteTask true, got %v", data["deleteTask"])
	}
	if n, _ := repo.Count(context.Background()); n != 0 {
		t.Errorf("expected empty store, got %d", n)
	}
}

// ---- Health handler tests ----

func TestHealth_Returns200(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) { d.Version = "1.2.3" }))

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if result["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", result["status"])
	}
	if result["version"] != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %v", result["version"])
	}
}

func TestReady_NoDB(t *testing.T) {
	deps := makeDeps()
	// DB, NATS, Cache are nil → should report not ready
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

// ---- X-API-Version header ----

func TestAPIVersionHeader(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	v := resp.Header.Get("X-API-Version")
	if v != "1.0.0" {
		t.Errorf("expected X-API-Version 1.0.0, got %q", v)
	}
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/ws/navigate", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Errorf("expected 426, got %d", resp.StatusCode)
	}
}

// TestAccessLogMiddleware verifies structured access logging is emitted.
func TestAccessLogMiddleware(t *testing.T) {
	app := fiber.New()

	app.Use(handler.AccessLogMiddleware())

	app.Get("/test", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "test-req-123")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ok") {
		t.Errorf("expected response body to contain 'ok', got %s", string(body))
	}
}

func TestNearbyTasks_Radius(t *testing.T) {
	app := setupApp(makeDeps(withTasks(bilbaoTasks...)))

	// Post office is ~15 m away; the others are over 1 km.
	req := httptest.NewRequest("GET", "/v1/tasks/nearby?lat=43.2571&lng=-2.9231&radius_m=500", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var ranked []domain.RankedTask
	json.Unmarshal(readBody(t, resp.Body), &ranked)
	if len(ranked) != 1 || ranked[0].ID != 2 {
		t.Errorf("expected only the post office, got %+v", ranked)
	}

	req = httptest.NewRequest("GET", "/v1/tasks/nearby?lat=43.2571&lng=-2.9231&radius_m=wide", nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 for bad radius, got %d", resp.StatusCode)
	}
}

func TestRequestIDLogMiddleware_ScopesLogger(t *testing.T) {
	app := fiber.New()
	app.Use(requestid.New())
	app.Use(handler.RequestIDLogMiddleware())

	var scoped bool
	app.Get("/probe", func(c *fiber.Ctx) error {
		scoped = handler.LoggerFromCtx(c.UserContext()) != slog.Default()
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/probe", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if !scoped {
		t.Error("expected a request-scoped logger in the user context")
	}
	if handler.LoggerFromCtx(context.Background()) != slog.Default() {
		t.Error("expected default logger without middleware")
	}
}

func TestDocs_ServesPageAndDocument(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Version = "1.2.3"
		d.OpenAPIPath = "../../../api/openapi.yaml"
	}))

	resp, _ := app.Test(httptest.NewRequest("GET", "/docs", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	page := string(readBody(t, resp.Body))
	if !strings.Contains(page, "Taskpin API 1.2.3") || !strings.Contains(page, "/ws/navigate") {
		t.Errorf("docs page missing service details: %s", page)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/docs/openapi.yaml", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 for openapi document, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(readBody(t, resp.Body)), "title: Taskpin API") {
		t.Error("expected the taskpin OpenAPI document")
	}
}

func TestDocs_MissingDocument(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) { d.OpenAPIPath = "does/not/exist.yaml" }))

	resp, _ := app.Test(httptest.NewRequest("GET", "/docs/openapi.yaml", nil), -1)
	if resp.StatusCode != 404 {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}
