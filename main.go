package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/wfunc/marketgame/broadcast"
	"github.com/wfunc/marketgame/config"
	"github.com/wfunc/marketgame/logger"
	"github.com/wfunc/marketgame/monitor"
	"github.com/wfunc/marketgame/persistence"
	"github.com/wfunc/marketgame/server"
)

// openStore 按配置选择房间存储
func openStore(ctx context.Context, cfg config.DatabaseConfig) (persistence.RoomStore, error) {
	pg := cfg.Postgres
	switch cfg.Driver {
	case "", "memory":
		return persistence.NewMemoryStore(), nil
	case "redis":
		return persistence.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.KeyPrefix)
	case "postgres":
		return persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case "gorm":
		return persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func main() {
	// Initialize logger
	logger.Init("info")
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Init(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize room store
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to open %s store: %v", cfg.Database.Driver, err)
	}
	defer store.Close()
	logger.Log.Infof("Room store ready (%s).", cfg.Database.Driver)

	mon := monitor.NewMonitor("marketgame", prometheus.DefaultRegisterer)
	mon.StartServer(cfg.Server.MetricsAddress)

	var natsConn *nats.Conn
	if cfg.NATS.URL != "" {
		natsConn, err = broadcast.Connect(cfg.NATS.URL)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer natsConn.Drain()
	}

	// Initialize Game Server
	gameServer, err := server.NewGameServer(cfg, store, mon, natsConn)
	if err != nil {
		logger.Log.Fatalf("Failed to create server: %v", err)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := gameServer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Errorf("Shutdown error: %v", err)
		}
	}()

	// Start Server
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
