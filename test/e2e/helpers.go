//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veritaslabs/mnemo/internal/api/handlers"
	"github.com/veritaslabs/mnemo/internal/domain"
	"github.com/veritaslabs/mnemo/internal/repository"
	"github.com/veritaslabs/mnemo/internal/server"
	"github.com/veritaslabs/mnemo/internal/service"
	"github.com/veritaslabs/mnemo/internal/testutil"
)

const embeddingDimensions = 1536

// TestEnv holds all resources needed for end-to-end tests
type TestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	Pool         *pgxpool.Pool
	Knowledge    *repository.KnowledgeStore
	ServerURL    string
	ServerCloser func()
	HTTPClient   *http.Client
}

// SetupTestEnv starts a database container and the HTTP server wired with
// real stores and a deterministic in-process embedding provider.
func SetupTestEnv(t *testing.T) *TestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser := startServer(t, pool, port)

	return &TestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		Pool:         pool,
		Knowledge:    repository.NewKnowledgeStore(pool),
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *TestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// SeedKnowledge inserts a knowledge row directly through the store. The
// embedding is derived from the content so equal content always lands on the
// same vector.
func (e *TestEnv) SeedKnowledge(projectID, content string, mutate func(*domain.Knowledge)) *domain.Knowledge {
	now := time.Now().UTC().Truncate(time.Microsecond)
	k := &domain.Knowledge{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Content:   content,
		Embedding: hashEmbedding(content),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if mutate != nil {
		mutate(k)
	}
	if err := e.Knowledge.Create(e.Ctx, k); err != nil {
		e.T.Fatalf("failed to seed knowledge: %v", err)
	}
	return k
}

// APIResponse represents a standard API response envelope
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *TestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil)
}

// Post performs a POST request
func (e *TestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body)
}

// Delete performs a DELETE request
func (e *TestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodDelete, path, nil)
}

func (e *TestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// startServer wires real repositories and services behind the router
func startServer(t *testing.T, pool *pgxpool.Pool, port int) (string, func()) {
	knowledgeStore := repository.NewKnowledgeStore(pool)
	groupStore := repository.NewGroupStore(pool)
	archiveLogStore := repository.NewArchiveLogStore(pool)
	txRunner := repository.NewTxRunner(pool)

	searchSvc := service.NewSearchService(knowledgeStore, hashEmbeddingProvider{})
	duplicateSvc := service.NewDuplicateService(knowledgeStore, groupStore)
	archiveSvc := service.NewArchiveService(knowledgeStore, archiveLogStore, txRunner, nil)

	cfg := server.RouterConfig{
		SearchHandler:    handlers.NewSearchHandler(searchSvc),
		DuplicateHandler: handlers.NewDuplicateHandler(duplicateSvc),
		ArchiveHandler:   handlers.NewArchiveHandler(archiveSvc),
	}

	router := server.NewRouter(cfg)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// hashEmbeddingProvider maps text onto a deterministic unit vector so search
// runs end to end without a live embedding backend. Equal text yields the
// identical vector, distinct text almost certainly does not.
type hashEmbeddingProvider struct{}

func (hashEmbeddingProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return hashEmbedding(text), nil
}

func hashEmbedding(text string) []float32 {
	vec := make([]float32, embeddingDimensions)
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float32(int32(seed>>32)) / float32(math.MaxInt32)
		vec[i] = v
		norm += float64(v) * float64(v)
	}

	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
