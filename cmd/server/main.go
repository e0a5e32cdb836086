package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/rl1809/order-placement/internal/adapter/handler"
	"github.com/rl1809/order-placement/internal/adapter/handler/pb"
	"github.com/rl1809/order-placement/internal/adapter/storage"
	"github.com/rl1809/order-placement/internal/config"
	"github.com/rl1809/order-placement/internal/core/service"
	"github.com/rl1809/order-placement/internal/port"
	"github.com/rl1809/order-placement/internal/telemetry"
)

type store struct {
	customers port.CustomerRepository
	products  port.ProductRepository
	orders    port.OrderRepository
	committer port.OrderCommitter
	catalog   catalogWriter
	close     func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		fatal(logger, "failed to open store", err)
	}
	logger.Info("store ready", "driver", cfg.StoreDriver)

	customers := st.customers
	products := st.products
	committer := st.committer
	opts := []service.Option{
		service.WithCommitTimeout(cfg.CommitTimeout),
		service.WithMaxAttempts(cfg.CommitMaxAttempts),
	}

	var (
		rdb       *redis.Client
		publisher *service.OrderPublisher
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			fatal(logger, "failed to connect redis", err)
		}
		logger.Info("connected to redis", "addr", cfg.RedisAddr)

		redisAdapter := storage.NewRedisAdapter(rdb)
		customers = storage.NewCachedCustomerRepository(customers, rdb, cfg.CustomerCacheTTL, logger)

		publisher = service.NewOrderPublisher(redisAdapter, cfg.PublisherQueueSize, cfg.PublisherWorkers, logger)
		publisher.Start()

		opts = append(opts, service.WithIdempotency(redisAdapter), service.WithPublisher(publisher))

		if cfg.InventoryDriver == config.InventoryRedis {
			inventory := storage.NewRedisInventory(rdb)
			loaded, err := loadInventoryGate(ctx, inventory, st.products, demoProductIDs())
			if err != nil {
				fatal(logger, "failed to load redis inventory", err)
			}
			products = inventory
			committer = service.NewCompensatingCommitter(inventory, st.orders)
			logger.Info("using redis inventory gate", "loaded_products", loaded)
		}
	}

	orderService := service.NewOrderService(customers, products, committer, st.orders, opts...)

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	pb.RegisterOrderServiceServer(grpcServer, handler.NewGRPCHandler(orderService, logger))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		fatal(logger, "failed to listen", err)
	}

	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", "error", err)
		}
	}()

	// Initialize HTTP server
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewHTTPHandler(orderService, logger).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown", "error", err)
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	if publisher != nil {
		publisher.Close()
		logger.Info("order publisher stopped")
	}

	if rdb != nil {
		rdb.Close()
	}
	st.close()
	logger.Info("connections closed")
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	st, err := openDriver(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.SeedDemoData {
		if err := seedDemoData(ctx, st); err != nil {
			st.close()
			return nil, err
		}
	}
	return st, nil
}

func openDriver(ctx context.Context, cfg *config.Config) (*store, error) {
	switch cfg.StoreDriver {
	case config.StoreMySQL:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, err
		}

		adapter := storage.NewMySQLAdapter(db)
		if err := adapter.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return &store{adapter, adapter, adapter, adapter, adapter, func() { db.Close() }}, nil

	case config.StorePostgres:
		adapter, err := storage.NewPostgresAdapter(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := adapter.Migrate(ctx); err != nil {
			adapter.Close()
			return nil, err
		}
		return &store{adapter, adapter, adapter, adapter, adapter, adapter.Close}, nil

	case config.StoreSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, err
		}
		adapter, err := storage.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &store{adapter, adapter, adapter, adapter, adapter, func() { adapter.Close() }}, nil

	default:
		adapter := storage.NewMemoryAdapter()
		return &store{adapter, adapter, adapter, adapter, adapter, func() {}}, nil
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
