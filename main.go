package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/apply"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/audit"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/config"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/controller"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/credential"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/db"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/exception"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/gate"
	logger "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/logging"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/model"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/notification"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/pipeline"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/policy"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/router"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/runner"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/util"
)

func main() {
	// Initialize configuration. A malformed gate graph or missing setting
	// is fatal here; the pipeline never starts on bad configuration.
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	cfg := config.GetConfig()

	// Initialize logger
	logger.InitLogger(config.GetString("log.dir"))
	defer logger.Sync()

	// Initialize Redis (state lock + rate limiting)
	if err := db.InitRedis(); err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer db.CloseRedis()

	// Open the exception registry
	exceptionStore, err := exception.Open(cfg.Gatekeeper.ExceptionDBPath)
	if err != nil {
		logger.Fatal("Failed to open exception registry", zap.Error(err))
	}
	defer exceptionStore.Close()

	// Initialize EventBus and its subscribers
	eventBus := util.NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eventBus.Start(ctx)
	notification.NewService(eventBus, nil)

	// Outcome audit trail
	auditRepository, err := audit.NewElasticsearchRepository(config.GetString("elasticsearch.url"))
	if err != nil {
		logger.Fatal("Failed to initialize audit repository", zap.Error(err))
	}
	auditService := audit.NewService(auditRepository)

	// Build the registered gates and their dependency schedule
	execRunner := gate.NewExecRunner()
	gates := make([]gate.Gate, 0, len(cfg.Gatekeeper.Gates))
	requires := make(map[string][]string)
	var advisoryGates []string
	for _, gc := range cfg.Gatekeeper.Gates {
		g, err := gate.FromConfig(gc, execRunner)
		if err != nil {
			logger.Fatal("Failed to build gate", zap.Error(err), zap.String("gate", gc.Name))
		}
		gates = append(gates, g)
		if len(gc.Requires) > 0 {
			requires[gc.Name] = gc.Requires
		}
		if g.Advisory() {
			advisoryGates = append(advisoryGates, g.Name())
		}
	}
	gateRunner, err := runner.New(gates, requires, cfg.Gatekeeper.MaxConcurrentGates)
	if err != nil {
		logger.Fatal("Invalid gate dependency graph", zap.Error(err))
	}

	// Decision policy. The threshold was validated at config load.
	threshold, _ := model.ParseSeverity(cfg.Gatekeeper.SeverityThreshold)
	engine := policy.NewEngine(threshold, advisoryGates)

	// Credential broker (federated trust exchange)
	roleARNs := make(map[string]string, len(cfg.Gatekeeper.Environments))
	environments := make([]string, 0, len(cfg.Gatekeeper.Environments))
	for _, env := range cfg.Gatekeeper.Environments {
		roleARNs[env.Name] = env.RoleARN
		environments = append(environments, env.Name)
	}
	broker, err := credential.NewBroker(ctx, roleARNs, credential.FileTokenSource)
	if err != nil {
		logger.Fatal("Failed to initialize credential broker", zap.Error(err))
	}

	// Apply coordinator over the distributed state lock
	coordinator := apply.NewCoordinator(
		db.NewRedisLocker(),
		apply.NewExecPlanner(cfg.Gatekeeper.Apply),
		apply.NewExecApplier(cfg.Gatekeeper.Apply),
		cfg.Gatekeeper.LockNamespace,
		cfg.Gatekeeper.LockTTL,
		cfg.Gatekeeper.LockWait,
		cfg.Gatekeeper.Apply.Timeout,
	)

	// Top-level pipeline
	gatekeeper := pipeline.NewPipeline(
		gateRunner,
		engine,
		broker,
		coordinator,
		exceptionStore,
		auditService,
		eventBus,
		environments,
		cfg.Gatekeeper.MaxCredentialLifetime,
	)

	// Initialize controllers
	controllers := &router.Controllers{
		Pipeline:  controller.NewPipelineController(gatekeeper, auditService),
		Exception: controller.NewExceptionController(exceptionStore),
	}

	// Set up the server
	engineRouter := router.SetupRouter(controllers, 100, time.Minute)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.GetString("server.port")),
		Handler: engineRouter,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", config.GetString("server.port")))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
