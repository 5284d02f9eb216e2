package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/TaelanSakay/PlayGround/modules/api"
	"github.com/TaelanSakay/PlayGround/modules/broadcast"
	"github.com/TaelanSakay/PlayGround/modules/canvas"
	"github.com/TaelanSakay/PlayGround/modules/storage"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := LoadConfig()

	log.Println("=== Canvas Sync - Fiber + EventBus Pubsub ===")
	log.Printf("Store driver: %s", cfg.StoreDriver)
	log.Printf("NATS Port: %d", cfg.NATSPort)

	// The embedded NATS server carries the event bus and, with the
	// jetstream driver, the room documents.
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
		mono.WithJetStreamStorageDir(cfg.JetStreamDir),
		mono.WithNATSPort(cfg.NATSPort),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	logger := app.Logger()

	backend, err := storage.NewBackend(cfg.Storage())
	if err != nil {
		log.Fatalf("Failed to configure document store: %v", err)
	}

	storageModule := storage.NewModule(backend, logger.WithModule("storage"))
	broadcastModule := broadcast.NewModule(logger.WithModule("broadcast"))
	canvasModule, err := canvas.NewModule(storageModule.Store(), broadcastModule.Hub(), logger.WithModule("canvas"))
	if err != nil {
		log.Fatalf("Failed to create canvas module: %v", err)
	}
	apiModule := api.NewModule(cfg.API(), logger.WithModule("api"))

	// The hub and coordinator are not exposed via ServiceContainer.
	apiModule.SetSession(canvasModule.Coordinator(), broadcastModule.Hub())

	// Order: storage must be open before canvas creates the lobby room.
	app.Register(storageModule)   // Document store lifecycle
	app.Register(broadcastModule) // WebSocket hub + event consumer
	app.Register(canvasModule)    // Room directory services + session coordinator
	app.Register(apiModule)       // HTTP/WebSocket API

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg Config) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber with WebSocket support")
	log.Println("  - Event Bus: NATS JetStream (internal pubsub)")
	log.Printf("  - Document store: %s", cfg.StoreDriver)
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", cfg.Port)
	log.Println("  GET    /health            - Health check")
	log.Println("  GET    /api/v1/rooms      - List all rooms")
	log.Println("  POST   /api/v1/rooms      - Create a new room")
	log.Println("  GET    /api/v1/rooms/:id  - Get room details")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", cfg.Port)
	log.Printf("  Connect with: ws://localhost:%s/ws?name=yourname", cfg.Port)
	log.Println("  Then send: {\"type\":\"join\",\"payload\":{\"roomId\":\"lobby\",\"displayName\":\"you\"}}")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
