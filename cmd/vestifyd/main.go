package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"Vestify-Chain/internal/api"
	"Vestify-Chain/internal/auth"
	"Vestify-Chain/internal/config"
	"Vestify-Chain/internal/contracts"
	"Vestify-Chain/internal/form"
	"Vestify-Chain/internal/observability/alerting"
	"Vestify-Chain/internal/session"
	"Vestify-Chain/internal/session/keyed"
	"Vestify-Chain/internal/workflow"
	"Vestify-Chain/pkg/logger"
)

// main 是 vestifyd 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("vestifyd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("VESTIFY_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "vestify.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	defs, err := config.LoadContractDefinitions(cfg.Chain.Definitions)
	if err != nil {
		return err
	}

	provider, err := keyed.NewProvider(ctx, keyed.Config{
		RPCURL:        defs.Network.RPCURL,
		KeystorePath:  cfg.Signer.KeystorePath,
		PassphraseEnv: cfg.Signer.PassphraseEnv,
		PrivateKeyEnv: cfg.Signer.PrivateKeyEnv,
	})
	if err != nil {
		return err
	}
	defer provider.Close()

	sessions := session.NewManager(provider, defs.Network.ChainID, defs.Network.Name)

	gateway, err := contracts.NewFactory(defs.Contracts)
	if err != nil {
		return err
	}

	var runStore workflow.RunStore
	switch cfg.Storage.RunStore.Driver {
	case "", "memory":
		runStore = workflow.NewMemoryRunStore()
	case "mysql":
		store, err := workflow.NewMySQLRunStore(cfg.Storage.RunStore.DSN)
		if err != nil {
			return err
		}
		runStore = store
	default:
		return fmt.Errorf("未知的运行存储驱动: %s", cfg.Storage.RunStore.Driver)
	}

	var bus workflow.Publisher
	switch cfg.Events.Driver {
	case "", "memory":
		bus = workflow.NewMemoryBus(0)
	case "redis":
		redisBus, err := workflow.NewRedisBus(workflow.RedisBusConfig{
			Address:  cfg.Events.Redis.Address,
			Password: cfg.Events.Redis.Password,
			DB:       cfg.Events.Redis.DB,
			Channel:  cfg.Events.Redis.Channel,
		})
		if err != nil {
			return err
		}
		bus = redisBus
	case "rabbitmq":
		rabbitBus, err := workflow.NewRabbitMQBus(workflow.RabbitMQBusConfig{
			URL:        cfg.Events.RabbitMQ.URL,
			Queue:      cfg.Events.RabbitMQ.Queue,
			Durable:    cfg.Events.RabbitMQ.Durable,
			AutoDelete: cfg.Events.RabbitMQ.AutoDelete,
		})
		if err != nil {
			return err
		}
		bus = rabbitBus
	default:
		return fmt.Errorf("未知的事件驱动: %s", cfg.Events.Driver)
	}

	orch := workflow.NewOrchestrator(sessions, gateway,
		workflow.WithRunStore(runStore),
		workflow.WithPublisher(bus),
		workflow.WithAlertDispatcher(alerting.NewFanout(&alerting.LogNotifier{})),
		workflow.WithConfirmer(workflow.NewMinedConfirmer(
			time.Duration(cfg.Workflow.ConfirmTimeoutSeconds)*time.Second)),
	)
	defer func() {
		if err := orch.Close(); err != nil {
			log.Printf("关闭编排器失败: %v", err)
		}
	}()

	server := api.NewServer(cfg.Server.Address, sessions, orch,
		form.NewBuilder(time.Local), auth.NewService(cfg.Server.Tokens))

	if err := server.Start(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
