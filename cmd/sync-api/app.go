package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/FleetSync/internal/api/http_api"
	shipmentsapi "github.com/BearBump/FleetSync/internal/api/shipments_api"
	"github.com/BearBump/FleetSync/internal/api/wshub"
	"github.com/BearBump/FleetSync/internal/broker/kafka"
	"github.com/BearBump/FleetSync/internal/broker/messages"
	"github.com/BearBump/FleetSync/internal/integrations/providers"
	"github.com/BearBump/FleetSync/internal/services/shipments"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type syncAPIOpts struct {
	grpcAddr    string
	httpAddr    string
	swaggerPath string
	version     string

	onListen func(grpcAddr, httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler kafka.Handler) error
}

type syncAPIDeps struct {
	svc       *shipments.Service
	probe     http_api.ProviderProbe
	providers []providers.Status
	checks    []http_api.Check

	// optional
	synced kafkaConsumer
	alerts kafkaConsumer
}

func runSyncAPI(ctx context.Context, opts syncAPIOpts, deps syncAPIDeps) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	hub := wshub.New()
	api := shipmentsapi.New(deps.svc)
	router := http_api.New(http_api.Options{
		Service:     deps.svc,
		Probe:       deps.probe,
		Providers:   deps.providers,
		Alerts:      hub,
		Checks:      deps.checks,
		SwaggerPath: opts.swaggerPath,
		Version:     opts.version,
	}).Router()

	grpcLis, err := net.Listen("tcp", opts.grpcAddr)
	if err != nil {
		return err
	}
	httpLis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		_ = grpcLis.Close()
		return err
	}

	if opts.onListen != nil {
		opts.onListen(grpcLis.Addr().String(), httpLis.Addr().String())
	}

	grpcErr := make(chan error, 1)
	go func() {
		grpcErr <- runGRPCServer(ctx, grpcLis, api)
	}()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, httpLis, router)
	}()

	if deps.synced != nil {
		go consume(ctx, "shipments.synced", deps.synced, func(ctx context.Context, rec kafka.Record) error {
			var m messages.ShipmentsSynced
			if err := json.Unmarshal(rec.Value, &m); err != nil {
				return errors.Wrap(kafka.ErrMalformed, err.Error())
			}
			if err := deps.svc.ApplySyncedEvent(ctx, m); err != nil {
				return errors.Wrap(kafka.ErrMalformed, err.Error())
			}
			return nil
		})
	}
	if deps.alerts != nil {
		go consume(ctx, "shipment.alerts", deps.alerts, hub.HandleKafka)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-grpcErr:
		return err
	case err := <-httpErr:
		return err
	}
}

func consume(ctx context.Context, name string, c kafkaConsumer, handle kafka.Handler) {
	slog.Info("kafka consumer started", "topic", name)
	err := c.Consume(ctx, handle)
	if err != nil && ctx.Err() == nil {
		slog.Error("kafka consumer stopped", "topic", name, "error", err)
	}
}

func runGRPCServer(ctx context.Context, lis net.Listener, api *shipmentsapi.ShipmentsAPI) error {
	s := grpc.NewServer()
	shipmentsapi.Register(s, api)

	hs := health.NewServer()
	hs.SetServingStatus(shipmentsapi.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	go func() {
		<-ctx.Done()
		hs.Shutdown()
		stopped := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			s.Stop()
		}
		_ = lis.Close()
	}()

	slog.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.Serve(lis)
}

func runHTTPServer(ctx context.Context, lis net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	return srv.Serve(lis)
}
