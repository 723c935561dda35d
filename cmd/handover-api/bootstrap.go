package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LoadBay/HandoverDesk/config"
	uploadsapi "github.com/LoadBay/HandoverDesk/internal/api/uploads_api"
	"github.com/LoadBay/HandoverDesk/internal/broker/kafka"
	"github.com/LoadBay/HandoverDesk/internal/cache/rediscache"
	"github.com/LoadBay/HandoverDesk/internal/integrations/shopee"
	"github.com/LoadBay/HandoverDesk/internal/observability/metrics"
	"github.com/LoadBay/HandoverDesk/internal/services/recon"
	"github.com/LoadBay/HandoverDesk/internal/services/uploads"
	"github.com/LoadBay/HandoverDesk/internal/storage/pgparcel"
)

type handoverAPIApp struct {
	ctx    context.Context
	cancel context.CancelFunc

	opts     handoverAPIOpts
	api      *uploadsapi.UploadsAPI
	engine   *recon.Engine
	consumer *kafka.Consumer
	metrics  *metrics.Metrics

	closeDB    func()
	closeCache func() error
	closeProd  func() error
}

func mustBootstrapHandoverAPI() *handoverAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	httpAddr := cfg.Handover.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.Handover.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "handover-api"
	}
	statusTopic := cfg.Kafka.StatusChangedTopicName
	if statusTopic == "" {
		statusTopic = "parcel.status.changed"
	}
	updateTopic := cfg.Kafka.UpdateRequestedTopicName
	if updateTopic == "" {
		updateTopic = "parcel.update.requested"
	}
	retention := time.Duration(cfg.Handover.JobRetentionSeconds) * time.Second
	if retention <= 0 {
		retention = uploads.DefaultRetention
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers, statusTopic)
	consumer := kafka.NewConsumer(brokers, updateTopic, consumerGroup)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	var store uploads.JobStore
	switch cfg.Handover.JobStoreBackend {
	case "redis":
		store = uploads.NewRedisStore(rc, retention)
	default:
		mem := uploads.NewMemStore(retention)
		go mem.RunSweeper(ctx, time.Minute)
		store = mem
	}

	m := metrics.New("handover-api")
	engine := recon.New(st, producer)
	uploadSvc := uploads.New(store, engine, st, m)

	shopeeClient := shopee.New(cfg.Handover.ShopeeBaseURL)
	if cfg.Handover.ShopeeRateLimitPerMinute > 0 {
		shopeeClient = shopeeClient.WithRateLimiter(rc, int64(cfg.Handover.ShopeeRateLimitPerMinute))
	}
	adapter := shopee.NewAdapter(shopeeClient, engine, nil)

	api := uploadsapi.New(uploadSvc, adapter, st, st)

	return &handoverAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: handoverAPIOpts{
			httpAddr:            httpAddr,
			topic:               updateTopic,
			consumerGroup:       consumerGroup,
			jobStoreBackend:     cfg.Handover.JobStoreBackend,
			jobRetentionSeconds: int(retention / time.Second),
		},
		api:        api,
		engine:     engine,
		consumer:   consumer,
		metrics:    m,
		closeDB:    st.Close,
		closeCache: rc.Close,
		closeProd:  producer.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgparcel.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgparcel.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *handoverAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeProd != nil {
		_ = a.closeProd()
	}
	if a.closeCache != nil {
		_ = a.closeCache()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *handoverAPIApp) Run() error {
	return runHandoverAPI(a.ctx, a.opts, a.api, a.engine, a.consumer, a.metrics)
}
