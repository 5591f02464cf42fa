package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hpc-gateway/api/rest/routes"
	"hpc-gateway/config"
	"hpc-gateway/core/coordination"
	"hpc-gateway/core/engine"
	"hpc-gateway/core/messaging"
	"hpc-gateway/core/monitoring"
	"hpc-gateway/core/repository"
	"hpc-gateway/core/scheduler"
	"hpc-gateway/handlers"
	"hpc-gateway/providers/aws"
	"hpc-gateway/providers/local"
	sshprovider "hpc-gateway/providers/ssh"
	"hpc-gateway/providers/unicore"

	"github.com/gorilla/mux"
)

func main() {
	cfg := config.Load()
	engineCfg, err := config.LoadEngineConfig(cfg.EngineConfigPath)
	if err != nil {
		log.Fatalf("Failed to load engine config: %v", err)
	}

	// Initialize database
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected successfully")

	registry := repository.NewRegistry(db)
	catalog := repository.NewCatalogRepository(db)
	credentials := repository.NewCredentialRepository(db)

	// Coordination and event publishing
	coordinator, err := coordination.NewService(cfg.EtcdEndpoints)
	if err != nil {
		log.Fatalf("Failed to connect to coordination service: %v", err)
	}
	defer coordinator.Close()

	publisher, err := messaging.NewEtcdPublisher(cfg.EtcdEndpoints, 3600)
	if err != nil {
		log.Fatalf("Failed to create event publisher: %v", err)
	}
	defer publisher.Close()

	// Scheduler: providers and handlers registered by name
	ctx := context.Background()
	sched := scheduler.NewScheduler(engineCfg)
	sched.RegisterProvider("local", local.New())
	sched.RegisterProvider("ssh", sshprovider.New())
	sched.RegisterProvider("ssh-fork", sshprovider.NewFork())
	sched.RegisterProvider("unicore", unicore.New())
	if cfg.AWSImageID != "" {
		cloudProvider, err := aws.New(ctx, cfg.AWSRegion, cfg.AWSImageID, cfg.AWSInstanceType)
		if err != nil {
			log.Fatalf("Failed to create cloud provider: %v", err)
		}
		sched.RegisterProvider("aws", cloudProvider)
	} else {
		log.Println("AWS_IMAGE_ID not set, cloud-burst submissions disabled")
	}
	sched.RegisterHandler(&handlers.EnvSetup{})
	sched.RegisterHandler(&handlers.DataStageIn{})
	sched.RegisterHandler(&handlers.DataStageOut{StagingDir: cfg.StagingDir})

	// Execution engine with its worker pool
	eng := engine.New(engine.Options{
		Registry:            registry,
		Catalog:             catalog,
		Credentials:         credentials,
		Publisher:           publisher,
		Coordinator:         coordinator,
		Scheduler:           sched,
		PoolSize:            engineCfg.PoolSize,
		MonitorEmailAddress: engineCfg.Monitor.EmailAddress,
		NotificationEnabled: engineCfg.Notification.Enabled,
		NotificationEmails:  engineCfg.Notification.Emails,
	})

	// Job monitor polls asynchronous jobs to completion
	monitor := monitoring.NewJobMonitor(eng, time.Duration(engineCfg.Monitor.PollIntervalSeconds)*time.Second)
	eng.SetMonitor(monitor)
	go monitor.Start(ctx)
	go monitor.WatchCancellations(ctx, coordinator)

	if err := eng.RecoverOutstanding(ctx); err != nil {
		log.Printf("Recovery sweep failed: %v", err)
	}

	exporter := monitoring.NewMetricsExporter(registry, monitor)

	// Setup routes
	r := mux.NewRouter()
	routes.SetupRoutes(r, registry, eng, coordinator, publisher, exporter)

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Starting server on port %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if err := server.Shutdown(context.Background()); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	eng.Stop()
	eng.Pool().Wait()
	log.Println("Server exited")
}
