package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/notify-engine/internal/api"
	"github.com/ignite/notify-engine/internal/automation"
	"github.com/ignite/notify-engine/internal/config"
	"github.com/ignite/notify-engine/internal/pkg/distlock"
	"github.com/ignite/notify-engine/internal/pkg/logger"
	"github.com/ignite/notify-engine/internal/repository/postgres"
	"github.com/ignite/notify-engine/internal/scheduler"
	"github.com/ignite/notify-engine/internal/service/dispatch"
	"github.com/ignite/notify-engine/internal/service/placeholder"
	"github.com/ignite/notify-engine/internal/service/recipient"
	"github.com/ignite/notify-engine/internal/service/rule"
	"github.com/ignite/notify-engine/internal/storage"
	"github.com/ignite/notify-engine/internal/template"
	"github.com/ignite/notify-engine/internal/transport"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

// extractHost returns the host part of a postgres URL for logging without
// the credentials.
func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func main() {
	configPath := "config/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.ShouldRedact())

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	err = db.PingContext(pingCtx)
	pingCancel()
	if err != nil {
		log.Fatalf("Failed to connect to database at %s: %v", extractHost(cfg.Database.URL), err)
	}
	log.Printf("Connected to PostgreSQL at %s", extractHost(cfg.Database.URL))

	// Redis backs the schedule registry and the fire locks
	if cfg.Redis.URL == "" {
		log.Fatal("REDIS_URL is required")
	}
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("Invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Printf("Connected to Redis at %s", redisOpts.Addr)

	// Templates
	var src template.Source
	switch cfg.Templates.Source {
	case "s3":
		s3src, err := template.NewS3SourceFromConfig(ctx, cfg.Templates.Region, cfg.Templates.Bucket, cfg.Templates.Prefix)
		if err != nil {
			log.Fatalf("Failed to initialize S3 template source: %v", err)
		}
		src = s3src
		log.Printf("Templates loaded from s3://%s/%s", cfg.Templates.Bucket, cfg.Templates.Prefix)
	default:
		src = postgres.NewTemplateRepo(db)
		log.Println("Templates loaded from PostgreSQL")
	}
	renderer := template.NewRenderer(template.NewCachedSource(src, cfg.Templates.CacheTTL()))

	// Transport, optionally audited
	sender, err := transport.New(ctx, transport.Options{
		Provider: cfg.Transport.Provider,
		From:     transport.From{Name: cfg.Transport.FromName, Email: cfg.Transport.FromEmail},
		SES: transport.SESOptions{
			Region:           cfg.Transport.SES.Region,
			AccessKeyID:      cfg.Transport.SES.AccessKey,
			SecretAccessKey:  cfg.Transport.SES.SecretKey,
			ConfigurationSet: cfg.Transport.SES.ConfigurationSet,
		},
		SparkPostAPIKey:  cfg.Transport.SparkPost.APIKey,
		SparkPostBaseURL: cfg.Transport.SparkPost.BaseURL,
	})
	if err != nil {
		log.Fatalf("Failed to initialize %s transport: %v", cfg.Transport.Provider, err)
	}
	log.Printf("Transport: %s", cfg.Transport.Provider)

	var delivery dispatch.Transport = sender
	var deliveries api.DeliveryReader
	if cfg.Audit.Enabled() {
		auditLog, err := storage.NewDeliveryLogFromConfig(ctx, cfg.Audit.Region, cfg.Audit.DynamoDBTable)
		if err != nil {
			log.Printf("Warning: delivery audit disabled: %v", err)
		} else {
			delivery = storage.NewAuditedTransport(sender, auditLog)
			deliveries = auditLog
			log.Printf("Delivery audit log: dynamodb table %s", cfg.Audit.DynamoDBTable)
		}
	}

	// Engine
	resolver := recipient.NewResolver(postgres.NewDirectoryRepo(db), postgres.NewPreferenceRepo(db))
	resolver.SetLookupConcurrency(cfg.Dispatch.LookupConcurrency)
	dispatcher := dispatch.NewDispatcher(resolver, renderer, delivery)
	dispatcher.SetConcurrency(cfg.Dispatch.Concurrency)
	dispatcher.SetSendTimeout(cfg.Dispatch.SendTimeout())

	builders := placeholder.NewRegistry()
	placeholder.RegisterFinance(builders, postgres.NewFinanceRepo(db))

	ruleRepo := postgres.NewRuleRepo(db)
	engine := automation.NewEngine(ruleRepo, dispatcher, builders)

	// Schedules
	registry := scheduler.NewRegistry(rdb, cfg.Redis.RegistryKey)
	rules := rule.NewService(ruleRepo, registry)
	if n, err := rules.SyncSchedules(ctx); err != nil {
		log.Printf("Warning: schedule sync incomplete (%d registered): %v", n, err)
	} else {
		log.Printf("Registered %d scheduled rules", n)
	}

	var runner *scheduler.Runner
	var jobs api.JobCounter
	if cfg.Scheduler.Enabled {
		runner = scheduler.NewRunner(registry, engine, distlock.NewFactory(rdb, db), scheduler.RunnerOptions{
			ReconcileInterval: cfg.Scheduler.ReconcileInterval(),
			LockTTL:           cfg.Scheduler.LockTTL(),
		})
		registry.OnChange(runner.Trigger)
		if err := runner.Start(ctx); err != nil {
			log.Fatalf("Failed to start schedule runner: %v", err)
		}
		jobs = runner
		log.Println("Schedule runner started")
	} else {
		log.Println("Schedule runner disabled; schedules are registered but not fired by this process")
	}

	// HTTP
	health := api.NewHealthChecker(db, rdb, engine, jobs)
	router := api.SetupRoutes(api.NewHandlers(rules, engine, deliveries), health, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if runner != nil {
		runner.Stop()
	}
	cancel()

	log.Println("Server stopped")
}
