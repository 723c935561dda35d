package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	uploadsapi "github.com/LoadBay/HandoverDesk/internal/api/uploads_api"
	"github.com/LoadBay/HandoverDesk/internal/broker/messages"
	"github.com/LoadBay/HandoverDesk/internal/models"
	"github.com/LoadBay/HandoverDesk/internal/observability/metrics"
	"github.com/LoadBay/HandoverDesk/internal/services/recon"
)

type handoverAPIOpts struct {
	httpAddr string

	topic         string
	consumerGroup string

	jobStoreBackend     string
	jobRetentionSeconds int

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

type recordApplier interface {
	ApplyRecord(ctx context.Context, rec models.UpdateRecord, handoverID *uint64) (recon.Result, error)
}

func runHandoverAPI(ctx context.Context, opts handoverAPIOpts, api *uploadsapi.UploadsAPI, engine recordApplier, consumer kafkaConsumer, m *metrics.Metrics) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8080"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()
	if m != nil {
		r.Use(m.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	// Operational settings only, never secrets.
	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		out := map[string]any{
			"jobStoreBackend":     opts.jobStoreBackend,
			"jobRetentionSeconds": opts.jobRetentionSeconds,
			"kafkaTopic":          opts.topic,
			"kafkaConsumerGroup":  opts.consumerGroup,
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	if m != nil {
		r.Handle("/metrics", m.Handler())
	}

	api.Routes(r)

	if consumer != nil {
		go func() {
			slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
			_ = consumer.Consume(ctx, func(_key, value []byte) error {
				var msg messages.ParcelUpdateRequested
				if err := json.Unmarshal(value, &msg); err != nil {
					return err
				}
				_, err := engine.ApplyRecord(ctx, toUpdateRecord(msg), nil)
				return err
			})
		}()
	}

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	return srv.Serve(lis)
}

func toUpdateRecord(msg messages.ParcelUpdateRequested) models.UpdateRecord {
	return models.UpdateRecord{
		TrackingNumber: msg.TrackingNumber,
		Status:         msg.Status,
		Direction:      msg.Direction,
		UpdatedBy:      msg.UpdatedBy,
		UpdatedAt:      msg.UpdatedAt,
		PortCode:       msg.PortCode,
		PackageType:    msg.PackageType,
	}
}
