package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/hivemesh/hivemesh/internal/api/handlers"
	"github.com/hivemesh/hivemesh/internal/config"
	"github.com/hivemesh/hivemesh/internal/database"
	"github.com/hivemesh/hivemesh/internal/domain"
	"github.com/hivemesh/hivemesh/internal/jobs"
	"github.com/hivemesh/hivemesh/internal/openai"
	"github.com/hivemesh/hivemesh/internal/realtime"
	"github.com/hivemesh/hivemesh/internal/repository"
	"github.com/hivemesh/hivemesh/internal/server"
	"github.com/hivemesh/hivemesh/internal/service"
	"github.com/hivemesh/hivemesh/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the hivemesh API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: cfg.SentryTracesSampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

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

	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(orgRepo, userRepo, apiKeyRepo, uuidGen)

	if cfg.InitOrgName != "" {
		if err := bootstrapInitialOrg(ctx, cfg, authSvc, orgRepo, userRepo); err != nil {
			return fmt.Errorf("failed to bootstrap initial org: %w", err)
		}
	}

	var embeddingClient service.EmbeddingClient
	var embeddingWorker *jobs.Worker
	var embeddingSvc *service.EmbeddingService
	if cfg.HasOpenAI() {
		embeddingClient = openai.NewClient(cfg.OpenAIAPIKey)
		embeddingSvc = service.NewEmbeddingService(embeddingClient, messageRepo, embeddingRepo)
		embeddingProcessor := jobs.NewEmbeddingWorker(embeddingJobRepo, embeddingSvc)
		embeddingWorker = jobs.NewWorker(embeddingProcessor, cfg.WorkerPollInterval)
		go embeddingWorker.Start(ctx)
		log.Println("embedding worker started")
	}

	hub := realtime.NewHub()

	sharingSvc := service.NewSharingService(
		requestRepo,
		grantRepo,
		embeddingRepo,
		userRepo,
		notificationRepo,
		realtime.NewHubNotifier(hub),
		txRunner,
	)
	conversationSvc := service.NewConversationService(conversationRepo, messageRepo, embeddingJobRepo)
	notificationSvc := service.NewNotificationService(notificationRepo)

	var retrievalHandler *handlers.RetrievalHandler
	var resourceSvc *service.ResourceService
	if embeddingClient != nil {
		retrievalCfg := service.RetrievalConfig{
			MinDistance:     cfg.RetrievalMinDistance,
			MaxDistance:     cfg.RetrievalMaxDistance,
			SourceLimit:     cfg.RetrievalSourceLimit,
			SuggestionLimit: cfg.RetrievalSuggestionLimit,
		}
		retrievalSvc := service.NewRetrievalService(embeddingRepo, embeddingClient, retrievalCfg)
		retrievalHandler = handlers.NewRetrievalHandler(retrievalSvc)
		resourceSvc = service.NewResourceService(resourceRepo, embeddingSvc, txRunner)
	} else {
		retrievalHandler = handlers.NewRetrievalHandler(&NoOpRetrievalService{})
		resourceSvc = service.NewResourceService(resourceRepo, &NoOpChunkEmbedder{}, txRunner)
	}

	routerCfg := server.RouterConfig{
		AuthValidator:       authSvc,
		RetrievalHandler:    retrievalHandler,
		SharingHandler:      handlers.NewSharingHandler(sharingSvc),
		ConversationHandler: handlers.NewConversationHandler(conversationSvc),
		NotificationHandler: handlers.NewNotificationHandler(notificationSvc),
		ResourceHandler:     handlers.NewResourceHandler(resourceSvc),
		AuthHandler:         handlers.NewAuthHandler(authSvc),
		EventsHandler:       handlers.NewEventsHandler(hub),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if embeddingWorker != nil {
		embeddingWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// NoOpRetrievalService backs the retrieve endpoint when no embedding
// provider is configured.
type NoOpRetrievalService struct{}

func (s *NoOpRetrievalService) Retrieve(ctx context.Context, input service.RetrieveInput) (*service.RetrieveOutput, error) {
	return nil, fmt.Errorf("retrieval not configured: OPENAI_API_KEY required")
}

// NoOpChunkEmbedder keeps resource listing and deletion usable without
// an embedding provider; writes fail with a clear error.
type NoOpChunkEmbedder struct{}

func (e *NoOpChunkEmbedder) EmbedChunks(ctx context.Context, text string) ([]service.ChunkEmbedding, error) {
	return nil, fmt.Errorf("embedding provider not configured: OPENAI_API_KEY required")
}

func bootstrapInitialOrg(ctx context.Context, cfg *config.Config, authSvc *service.AuthService, orgRepo *repository.OrgRepository, userRepo *repository.UserRepository) error {
	org, err := orgRepo.GetByName(ctx, cfg.InitOrgName)
	if err != nil && !errors.Is(err, domain.ErrOrganizationNotFound) {
		return fmt.Errorf("failed to check existing org: %w", err)
	}

	if org == nil {
		org, err = authSvc.CreateOrg(ctx, cfg.InitOrgName)
		if err != nil {
			return fmt.Errorf("failed to create org: %w", err)
		}
		log.Printf("bootstrap: created organization '%s' (id: %s)", org.Name, org.ID)
	} else {
		log.Printf("bootstrap: organization '%s' already exists (id: %s)", org.Name, org.ID)
	}

	if cfg.InitUserEmail == "" {
		return nil
	}

	user, err := userRepo.GetByEmail(ctx, org.ID, cfg.InitUserEmail)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("failed to check existing user: %w", err)
	}

	if user == nil {
		name := cfg.InitUserName
		if name == "" {
			name = cfg.InitUserEmail
		}
		user, err = authSvc.CreateUser(ctx, org.ID, name, cfg.InitUserEmail)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		log.Printf("bootstrap: created user '%s' (id: %s)", user.Email, user.ID)
	} else {
		log.Printf("bootstrap: user '%s' already exists (id: %s)", user.Email, user.ID)
	}

	if cfg.InitAPIKey != "" {
		if !service.IsValidAPIToken(cfg.InitAPIKey) {
			return fmt.Errorf("invalid HIVEMESH_INIT_API_KEY format (expected 'hvm_<64 hex chars>')")
		}

		if identity, err := authSvc.ValidateAPIKey(ctx, cfg.InitAPIKey); err == nil && identity != nil {
			log.Printf("bootstrap: API key already exists (user: %s)", identity.UserID)
			return nil
		}

		if err := authSvc.CreateAPIKeyWithToken(ctx, user.ID, "bootstrap", cfg.InitAPIKey); err != nil {
			return fmt.Errorf("failed to create API key: %w", err)
		}
		log.Printf("bootstrap: created API key")
	}

	return nil
}

func runMigrations(databaseURL string) error {
	// golang-migrate needs a database/sql handle
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else {
		log.Printf("migrations: database is at version %d", version)
	}

	return nil
}
