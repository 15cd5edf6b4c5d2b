//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hivemesh/hivemesh/internal/api/handlers"
	"github.com/hivemesh/hivemesh/internal/jobs"
	"github.com/hivemesh/hivemesh/internal/openai"
	"github.com/hivemesh/hivemesh/internal/realtime"
	"github.com/hivemesh/hivemesh/internal/repository"
	"github.com/hivemesh/hivemesh/internal/server"
	"github.com/hivemesh/hivemesh/internal/service"
	"github.com/hivemesh/hivemesh/internal/testutil"
)

// stubEmbedder is a deterministic embedding provider. Texts that share a
// topic keyword land close together in the similarity band; unrelated
// texts stay far apart. The per-text perturbation keeps distances above
// the near-duplicate floor.
type stubEmbedder struct{}

var topics = []string{"postgres", "kubernetes", "billing"}

func (e *stubEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	topic := "misc"
	for _, t := range topics {
		if strings.Contains(lower, t) {
			topic = t
			break
		}
	}

	base := unitVector(topic)
	noise := unitVector(text)

	v := make([]float32, openai.EmbeddingDimensions)
	var norm float64
	for i := range v {
		x := base[i] + 0.25*noise[i]
		v[i] = x
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v, nil
}

func unitVector(seed string) []float32 {
	v := make([]float32, openai.EmbeddingDimensions)
	var norm float64
	for i := 0; i < openai.EmbeddingDimensions; i += 8 {
		h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", seed, i)))
		for j := 0; j < 8 && i+j < openai.EmbeddingDimensions; j++ {
			bits := binary.LittleEndian.Uint32(h[j*4 : j*4+4])
			x := float64(bits)/float64(math.MaxUint32)*2 - 1
			v[i+j] = float32(x)
			norm += x * x
		}
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// TestUser is a bootstrapped user with a working API token.
type TestUser struct {
	ID    string
	Email string
	Token string
}

// E2ETestEnv holds all resources needed for end to end tests.
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	HTTPClient   *http.Client

	OrgID     string
	authSvc   *service.AuthService
	processor *jobs.EmbeddingWorker
}

// SetupE2EEnv starts a pgvector container, runs migrations, and serves
// the full router in-process with a stub embedding provider.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	orgRepo := repository.NewOrgRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	embeddingRepo := repository.NewEmbeddingRepository(pool)
	embeddingJobRepo := repository.NewEmbeddingJobRepository(pool)
	requestRepo := repository.NewRequestRepository(pool)
	grantRepo := repository.NewGrantRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	resourceRepo := repository.NewResourceRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	embedder := &stubEmbedder{}
	embeddingSvc := service.NewEmbeddingService(embedder, messageRepo, embeddingRepo)
	processor := jobs.NewEmbeddingWorker(embeddingJobRepo, embeddingSvc)

	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(orgRepo, userRepo, apiKeyRepo, uuidGen)
	hub := realtime.NewHub()

	sharingSvc := service.NewSharingService(
		requestRepo, grantRepo, embeddingRepo, userRepo,
		notificationRepo, realtime.NewHubNotifier(hub), txRunner,
	)
	conversationSvc := service.NewConversationService(conversationRepo, messageRepo, embeddingJobRepo)
	notificationSvc := service.NewNotificationService(notificationRepo)
	retrievalSvc := service.NewRetrievalService(embeddingRepo, embedder, service.DefaultRetrievalConfig())
	resourceSvc := service.NewResourceService(resourceRepo, embeddingSvc, txRunner)

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:       authSvc,
		RetrievalHandler:    handlers.NewRetrievalHandler(retrievalSvc),
		SharingHandler:      handlers.NewSharingHandler(sharingSvc),
		ConversationHandler: handlers.NewConversationHandler(conversationSvc),
		NotificationHandler: handlers.NewNotificationHandler(notificationSvc),
		ResourceHandler:     handlers.NewResourceHandler(resourceSvc),
		AuthHandler:         handlers.NewAuthHandler(authSvc),
		EventsHandler:       handlers.NewEventsHandler(hub),
	})

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: router,
	}
	go srv.ListenAndServe()

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	waitForServer(t, serverURL)

	return &E2ETestEnv{
		T:         t,
		Ctx:       ctx,
		PostgresC: pgC,
		Pool:      pool,
		ServerURL: serverURL,
		ServerCloser: func() {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		},
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		authSvc:    authSvc,
		processor:  processor,
	}
}

// Cleanup releases all resources.
func (e *E2ETestEnv) Cleanup() {
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

// Bootstrap creates an organization and the given users, each with an
// API key, through the service layer.
func (e *E2ETestEnv) Bootstrap(orgName string, emails ...string) []TestUser {
	org, err := e.authSvc.CreateOrg(e.Ctx, orgName)
	if err != nil {
		e.T.Fatalf("failed to create org: %v", err)
	}
	e.OrgID = org.ID

	users := make([]TestUser, 0, len(emails))
	for _, email := range emails {
		name := strings.SplitN(email, "@", 2)[0]
		user, err := e.authSvc.CreateUser(e.Ctx, org.ID, name, email)
		if err != nil {
			e.T.Fatalf("failed to create user %s: %v", email, err)
		}
		token, err := e.authSvc.CreateAPIKey(e.Ctx, user.ID, "e2e")
		if err != nil {
			e.T.Fatalf("failed to create API key for %s: %v", email, err)
		}
		users = append(users, TestUser{ID: user.ID, Email: email, Token: token})
	}
	return users
}

// ProcessEmbeddingJobs runs the embedding worker once so queued message
// chunks become searchable.
func (e *E2ETestEnv) ProcessEmbeddingJobs() {
	if err := e.processor.ProcessJobs(e.Ctx); err != nil {
		e.T.Fatalf("failed to process embedding jobs: %v", err)
	}
}

// APIResponse mirrors the server's response envelope.
type APIResponse struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request.
func (e *E2ETestEnv) Get(path, authToken string) (*APIResponse, int, error) {
	return e.doRequest("GET", path, nil, authToken)
}

// Post performs a POST request.
func (e *E2ETestEnv) Post(path string, body interface{}, authToken string) (*APIResponse, int, error) {
	return e.doRequest("POST", path, body, authToken)
}

// Put performs a PUT request.
func (e *E2ETestEnv) Put(path string, body interface{}, authToken string) (*APIResponse, int, error) {
	return e.doRequest("PUT", path, body, authToken)
}

// Delete performs a DELETE request.
func (e *E2ETestEnv) Delete(path, authToken string) (*APIResponse, int, error) {
	return e.doRequest("DELETE", path, nil, authToken)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, int, error) {
	url := e.ServerURL + "/api/v1" + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, 0, err
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	if resp.StatusCode == http.StatusNoContent {
		return &APIResponse{}, resp.StatusCode, nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to parse response %q: %w", respBody, err)
	}
	return &apiResp, resp.StatusCode, nil
}

// MustDecode unmarshals the data envelope or fails the test.
func (e *E2ETestEnv) MustDecode(resp *APIResponse, target interface{}) {
	e.T.Helper()
	if err := json.Unmarshal(resp.Data, target); err != nil {
		e.T.Fatalf("failed to decode response data %q: %v", resp.Data, err)
	}
}

func getFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func waitForServer(t *testing.T, url string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
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
	t.Fatalf("server at %s did not become ready", url)
}
