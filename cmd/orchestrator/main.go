package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/synapseflow/compute-orchestrator/internal/orchestrator"
	"github.com/synapseflow/compute-orchestrator/internal/platform/cache"
	"github.com/synapseflow/compute-orchestrator/internal/platform/config"
	"github.com/synapseflow/compute-orchestrator/internal/platform/credential"
	"github.com/synapseflow/compute-orchestrator/internal/platform/logger"
	"github.com/synapseflow/compute-orchestrator/internal/platform/messaging/kafka"
	"github.com/synapseflow/compute-orchestrator/internal/platform/metrics"
	"github.com/synapseflow/compute-orchestrator/internal/platform/telemetry"
	"github.com/synapseflow/compute-orchestrator/internal/resource"
	"github.com/synapseflow/compute-orchestrator/internal/worker"
)

const serviceName = "compute-orchestrator"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logger)
	log.Info("starting compute orchestrator", "version", cfg.Version, "environment", cfg.Service.Environment)

	m := metrics.New("orchestrator")
	tel, err := telemetry.New(telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.TracingEnabled,
		JaegerEndpoint: cfg.Telemetry.JaegerEndpoint,
	})
	if err != nil {
		log.Fatal("failed to initialize telemetry", "error", err)
	}
	defer tel.Close()

	orch := orchestrator.New(cfg.Orchestrator, log, m, tel)

	if cfg.Security.EncryptionKey != "" {
		encryptor, err := credential.NewEncryptor(&credential.Config{
			Key:        cfg.Security.EncryptionKey,
			KeyType:    cfg.Security.EncryptionKeyType,
			Iterations: 100000,
		})
		if err != nil {
			log.Warn("failed to build credential encryptor, remote worker tokens will be held in plaintext", "error", err)
		} else {
			orch.SetEncryptor(encryptor)
		}
	}

	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(cache.Config{
			Host:      cfg.Redis.Host,
			Port:      cfg.Redis.Port,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: serviceName,
		})
		if err != nil {
			log.Warn("failed to connect redis quota mirror, continuing without it", "error", err)
		} else {
			orch.ResourceManager().Pool.SetMirror(redisCache)
			defer redisCache.Close()
		}
	}

	if cfg.Kafka.Enabled {
		publisher, err := kafka.NewPublisher(&kafka.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		if err != nil {
			log.Warn("failed to connect kafka publisher, continuing without task event publishing", "error", err)
		} else {
			orch.AddHook(orchestrator.NewKafkaHookPublisher(publisher, log))
			defer publisher.Close()
		}
	}

	localClient := &loopbackLLMClient{}
	localWorker := worker.NewLocalLLMWorker("local-llm-0", "http://127.0.0.1:11434", localClient, log)
	if localWorker.Start(context.Background()) {
		orch.RegisterLocalLLM(localWorker)
	} else {
		log.Warn("local llm worker failed to start, running without a local tier")
	}

	if cfg.AWS.AccessKeyID != "" || cfg.AWS.Region != "" {
		awsCfg, err := worker.ResolveAWSConfig(context.Background(), worker.BedrockCredentials{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
		})
		if err != nil {
			log.Warn("failed to resolve aws credentials for bedrock worker, skipping registration", "error", err)
		} else {
			log.Info("resolved aws credentials for bedrock worker", "region", awsCfg.Region)
			bedrockWorker := worker.NewBedrockCloudLLMWorker("bedrock-0", 0.003, 4, &loopbackCloudLLMClient{}, orch.ResourceManager().Pool, log)
			orch.RegisterLLMAPI(bedrockWorker, resource.APIQuota{RequestsPerDay: 10000, TokensPerDay: 2_000_000, CostPerDayUSD: 50})
		}
	}

	remoteToken, err := worker.MintAuthToken("remote-0", cfg.Security.RemoteWorkerJWTSecret, time.Hour)
	if err != nil {
		log.Warn("failed to mint remote worker auth token, skipping registration", "error", err)
	} else {
		remoteWorker := worker.NewRemoteWorker("remote-0", "http://127.0.0.1:9090", remoteToken, 2,
			worker.CapabilitySet(worker.CapabilityToolCall), &loopbackRemoteClient{}, log)
		if remoteWorker.Start(context.Background()) {
			orch.RegisterRemoteWorker(remoteWorker, remoteToken)
		} else {
			log.Warn("remote worker failed to start, skipping registration")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	factory := func(id string) *worker.ContainerWorker {
		return worker.NewContainerWorker(id, 1, &loopbackContainerRunner{}, log)
	}
	if err := orch.Start(ctx, factory); err != nil {
		log.Fatal("failed to start orchestrator", "error", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down compute orchestrator")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	orch.Stop(shutdownCtx)
}
