//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	"github.com/laundryku/api/internal/config"
	"github.com/laundryku/api/internal/database"
	"github.com/laundryku/api/internal/router"
	"github.com/laundryku/api/internal/ws"
)

// TestIntegrationFlow exercises the full API lifecycle against a real
// PostgreSQL database: bootstrap admin, login, user management, the order
// lifecycle with repricing and completion stamping, and the retention sweep.
func TestIntegrationFlow(t *testing.T) {
	ctx := context.Background()

	pgContainer, connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	cfg := &config.Config{
		Port:        "8081",
		DatabaseURL: connStr,
		JWTSecret:   "integration-test-secret",
	}
	queries := database.New(pool)
	hub := ws.NewHub()
	// NOTE: hub.Run() goroutine leaks on test exit — Hub has no shutdown mechanism.
	// Acceptable for tests; production should add context-based shutdown.
	go hub.Run()

	r := router.New(cfg, queries, pool, hub)

	server := httptest.NewServer(r)
	defer server.Close()

	// --- 1. Create admin user (manual DB insert to bootstrap) ---
	adminID := createAdminUser(t, ctx, pool)

	// --- 2. Login as admin ---
	token := login(t, server, "admin", "password123")

	// --- 3. Create employee user through API ---
	employeeResp := httpPostJSON(t, server, "/users", map[string]interface{}{
		"username": "sari",
		"password": "password123",
		"role":     "employee",
	}, token)
	employeeID := uuid.MustParse(employeeResp["id"].(string))

	// --- 4. Employee can log in and create orders ---
	employeeToken := login(t, server, "sari", "password123")

	orderResp := httpPostJSON(t, server, "/orders", map[string]interface{}{
		"customer_name": "Ibu Sari",
		"phone_number":  "081234567890",
		"service_kind":  "wash_and_iron",
		"category":      "by_weight",
		"raw_quantity":  3.5,
		"note":          "pisahkan baju putih",
	}, employeeToken)
	orderID := uuid.MustParse(orderResp["id"].(string))

	// 3.5 kg rounds up to 4 billed kg at 10000/kg = 40000
	if price := orderResp["price"].(float64); price != 40000 {
		t.Fatalf("order price: got %v, want 40000", price)
	}
	if status := orderResp["status"].(string); status != "in_progress" {
		t.Fatalf("order status: got %s, want in_progress", status)
	}
	if orderResp["completed_at"] != nil {
		t.Fatalf("completed_at should be null on a new order, got %v", orderResp["completed_at"])
	}

	// --- 5. Quantity change reprices the order ---
	updated := httpPutJSON(t, server, fmt.Sprintf("/orders/%s", orderID), map[string]interface{}{
		"raw_quantity": 5.2,
	}, employeeToken)
	if price := updated["price"].(float64); price != 60000 {
		t.Fatalf("repriced order: got %v, want 60000", price)
	}

	// --- 6. Completing the order stamps completed_at ---
	updated = httpPutJSON(t, server, fmt.Sprintf("/orders/%s", orderID), map[string]interface{}{
		"status": "completed",
	}, employeeToken)
	if updated["completed_at"] == nil {
		t.Fatal("completed_at should be set after completion")
	}

	// --- 7. Reverting the status clears the stamp ---
	updated = httpPutJSON(t, server, fmt.Sprintf("/orders/%s", orderID), map[string]interface{}{
		"status": "ready_for_pickup",
	}, employeeToken)
	if updated["completed_at"] != nil {
		t.Fatalf("completed_at should be cleared, got %v", updated["completed_at"])
	}

	// --- 8. Public board lists the order without auth ---
	publicOrders := httpGetJSONList(t, server, "/public/orders", "")
	if len(publicOrders) != 1 {
		t.Fatalf("public orders: got %d, want 1", len(publicOrders))
	}
	if _, ok := publicOrders[0]["note"]; ok {
		t.Fatal("public order response should not include note")
	}

	// --- 9. Sweep is admin-only and removes only stale completed orders ---
	sweepReq, _ := http.NewRequest("POST", server.URL+"/orders/sweep", nil)
	sweepReq.Header.Set("Authorization", "Bearer "+employeeToken)
	sweepResp, err := http.DefaultClient.Do(sweepReq)
	if err != nil {
		t.Fatalf("sweep as employee: %v", err)
	}
	sweepResp.Body.Close()
	if sweepResp.StatusCode != http.StatusForbidden {
		t.Fatalf("sweep as employee: got status %d, want 403", sweepResp.StatusCode)
	}

	// Backdate a completed order past the retention window
	staleID := createStaleCompletedOrder(t, ctx, pool)

	result := httpPostJSON(t, server, "/orders/sweep", nil, token)
	if deleted := result["deleted"].(float64); deleted != 1 {
		t.Fatalf("sweep deleted: got %v, want 1", deleted)
	}

	// The recent order survives, the stale one is gone
	remaining := httpGetJSONList(t, server, "/orders", employeeToken)
	if len(remaining) != 1 {
		t.Fatalf("orders after sweep: got %d, want 1", len(remaining))
	}
	if remaining[0]["id"].(string) == staleID.String() {
		t.Fatal("stale order should have been swept")
	}

	// --- 10. Delete order through API ---
	delReq, _ := http.NewRequest("DELETE", server.URL+fmt.Sprintf("/orders/%s", orderID), nil)
	delReq.Header.Set("Authorization", "Bearer "+employeeToken)
	delResp, err := http.DefaultClient.Do(delReq)
	if err != nil {
		t.Fatalf("delete order: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Fatalf("delete order: got status %d, want 200", delResp.StatusCode)
	}

	t.Logf("Integration test passed: container=%s, admin=%s, employee=%s, order=%s",
		pgContainer.GetContainerID(), adminID, employeeID, orderID)
}

// --- Setup helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("laundry_test"),
		tcpostgres.WithUsername("laundry"),
		tcpostgres.WithPassword("laundry"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}

	return pgContainer, connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	// Connect with stdlib for migrate
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	// Path relative to this test file's package directory (internal/handler/).
	// Go test sets cwd to the package directory.
	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}

func createAdminUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	var id uuid.UUID
	err = pool.QueryRow(ctx,
		`INSERT INTO users (username, hashed_password, role)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		"admin", string(hashedPassword), "admin",
	).Scan(&id)
	if err != nil {
		t.Fatalf("create admin user: %v", err)
	}
	return id
}

func createStaleCompletedOrder(t *testing.T, ctx context.Context, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := pool.QueryRow(ctx,
		`INSERT INTO orders (customer_name, service_kind, category, raw_quantity, price, status, received_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		"Pelanggan Lama", "wash_only", "by_weight", 2.0, 14000, "completed",
		time.Now().Add(-11*24*time.Hour), time.Now().Add(-10*24*time.Hour),
	).Scan(&id)
	if err != nil {
		t.Fatalf("create stale completed order: %v", err)
	}
	return id
}

// --- API call helpers ---

func login(t *testing.T, server *httptest.Server, username, password string) string {
	t.Helper()
	resp := httpPostJSON(t, server, "/auth/login", map[string]interface{}{
		"username": username,
		"password": password,
	}, "")
	token, ok := resp["token"].(string)
	if !ok || token == "" {
		t.Fatalf("login failed: no token in response: %+v", resp)
	}
	return token
}

// --- HTTP helpers ---

func httpPostJSON(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string) map[string]interface{} {
	t.Helper()
	return httpJSON(t, server, "POST", path, body, token)
}

func httpPutJSON(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string) map[string]interface{} {
	t.Helper()
	return httpJSON(t, server, "PUT", path, body, token)
}

func httpJSON(t *testing.T, server *httptest.Server, method, path string, body map[string]interface{}, token string) map[string]interface{} {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("%s %s: status %d, body: %v", method, path, resp.StatusCode, errResp)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}

func httpGetJSONList(t *testing.T, server *httptest.Server, path string, token string) []map[string]interface{} {
	t.Helper()
	req, err := http.NewRequest("GET", server.URL+path, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("GET %s: status %d, body: %v", path, resp.StatusCode, errResp)
	}

	var result []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}
