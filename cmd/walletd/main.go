package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpc_adapter "github.com/JoeShih716/go-mem-wallet/internal/app/core/adapter/in/grpc"
	export_adapter "github.com/JoeShih716/go-mem-wallet/internal/app/core/adapter/out/export"
	jsonfile_adapter "github.com/JoeShih716/go-mem-wallet/internal/app/core/adapter/out/jsonfile"
	memory_adapter "github.com/JoeShih716/go-mem-wallet/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-mem-wallet/internal/app/core/adapter/out/mysql"
	notify_adapter "github.com/JoeShih716/go-mem-wallet/internal/app/core/adapter/out/notify"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-wallet/internal/app/core/usecase"
	"github.com/JoeShih716/go-mem-wallet/internal/config"
	"github.com/JoeShih716/go-mem-wallet/pkg/async"
	"github.com/JoeShih716/go-mem-wallet/pkg/credential"
	"github.com/JoeShih716/go-mem-wallet/pkg/logging"
	"github.com/JoeShih716/go-mem-wallet/pkg/metrics"
	"github.com/JoeShih716/go-mem-wallet/pkg/metrics/prometheus"
	"github.com/JoeShih716/go-mem-wallet/pkg/mysql"
	"github.com/JoeShih716/go-mem-wallet/pkg/wal"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	dumpJournal := flag.Bool("dump-journal", false, "print the journal entries and exit")
	flag.Parse()

	// 1. 載入設定
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if *dumpJournal {
		if err := printJournal(cfg.Journal.Path); err != nil {
			logger.Fatal("failed to dump journal", zap.Error(err))
		}
		return
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("walletd exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	// 2. 初始化 Store
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. 初始化 WAL，序號從最後一筆接續
	walletOpts := []memory_adapter.Option{memory_adapter.WithLogger(logger.Named("wallet"))}
	if cfg.Journal.Enabled {
		journal, err := wal.NewWAL(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer journal.Close()

		var last uint64
		err = wal.Replay(journal, func(entry *domain.JournalEntry) error {
			last = entry.Sequence
			return nil
		})
		if err != nil {
			return fmt.Errorf("replay journal: %w", err)
		}
		walletOpts = append(walletOpts,
			memory_adapter.WithJournal(journal),
			memory_adapter.WithJournalSequence(last))
	}

	// 4. 初始化錢包
	wallet, err := memory_adapter.NewMutexWallet(ctx, store,
		credential.NewBcrypt(cfg.Credential.BcryptCost),
		cfg.Policy.Policy(),
		walletOpts...)
	if err != nil {
		return err
	}

	// 5. Metrics
	var collector metrics.Collector = metrics.NoOpCollector{}
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		prom := prometheus.NewCollector(cfg.Metrics.Namespace)
		collector = prom
		mux := http.NewServeMux()
		mux.Handle("/metrics", prom.Handler())
		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			logger.Info("starting metrics server", zap.String("addr", cfg.Metrics.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	// 6. 提款通知: SMTP (斷路器) 或只寫 log
	var notifier usecase.Notifier = notify_adapter.NewLogNotifier(logger)
	if cfg.SMTP.Enabled {
		notifier = notify_adapter.NewBreaker("smtp",
			notify_adapter.NewSMTPNotifier(cfg.SMTP.SMTPConfig),
			cfg.Notify.Breaker,
			logger)
	}
	dispatcher := async.New(cfg.Notify.Config, async.WithErrorHandler(func(err error) {
		logger.Debug("notification task failed", zap.Error(err))
	}))
	defer func() {
		dispatcher.Close()
		stats := dispatcher.Stats()
		logger.Info("notification dispatcher stopped",
			zap.Int64("dispatched", stats.Dispatched),
			zap.Int64("dropped", stats.Dropped),
			zap.Int64("failed", stats.Failed))
	}()

	// 7. 初始化 UseCase
	coreUseCase := usecase.NewCoreUseCase(wallet,
		usecase.AdminCredential{User: cfg.Admin.User, Password: cfg.Admin.Password},
		usecase.WithNotifier(notifier, dispatcher),
		usecase.WithExporters(export_adapter.NewRegistry()),
		usecase.WithMetrics(collector),
		usecase.WithCoreLogger(logger),
	)

	// 8. 啟動 gRPC Server
	lis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpc_adapter.LoggingInterceptor(logger),
		grpc_adapter.AuthInterceptor(coreUseCase),
	))
	grpc_adapter.RegisterWalletServiceServer(s, grpc_adapter.NewGrpcServer(coreUseCase))
	reflection.Register(s)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting gRPC server", zap.String("addr", cfg.Server.Addr))
		serveErr <- s.Serve(lis)
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serveErr:
		return fmt.Errorf("grpc server: %w", err)
	}

	s.GracefulStop()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
	logger.Info("server exited")
	return nil
}

// openStore 依設定建立 Store，回傳關閉函式
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (usecase.Store, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverMySQL:
		client, err := mysql.NewClient(cfg.Storage.MySQL, logger.Named("mysql"))
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to mysql", zap.Stringer("target", &cfg.Storage.MySQL))
		store := mysql_adapter.NewStore(client)
		if cfg.Storage.AutoMigrate {
			if err := store.AutoMigrate(ctx); err != nil {
				client.Close()
				return nil, nil, fmt.Errorf("auto migrate: %w", err)
			}
		}
		return store, func() { client.Close() }, nil
	default:
		loc, err := cfg.Storage.Location()
		if err != nil {
			return nil, nil, err
		}
		store, err := jsonfile_adapter.NewStore(cfg.Storage.Dir, jsonfile_adapter.WithLocation(loc))
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using json file store", zap.String("dir", cfg.Storage.Dir))
		return store, func() {}, nil
	}
}

func printJournal(path string) error {
	journal, err := wal.NewWAL(path)
	if err != nil {
		return err
	}
	defer journal.Close()

	return wal.Replay(journal, func(entry *domain.JournalEntry) error {
		_, err := fmt.Printf("%d\t%s\t%s\tfrom=%s\tto=%s\tamount=%d\trequest=%d\t%s\n",
			entry.Sequence, entry.EntryID, entry.Type, entry.From, entry.To, entry.Amount, entry.RequestID, entry.Detail)
		return err
	})
}
