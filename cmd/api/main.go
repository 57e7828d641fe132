package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"lexora.org/internal/account"
	"lexora.org/internal/httpapi"
	"lexora.org/internal/obs"
)

var version = "0.3.0"

const healthServiceName = "lexora-api"

func main() {
	obs.Init()

	// Postgres when a DSN is configured, in-memory stores otherwise so the
	// service stays runnable locally without infrastructure.
	var store account.Store
	var probe httpapi.ReadyProbe
	if dsn := os.Getenv("LEXORA_PG_DSN"); dsn != "" {
		pg, err := account.OpenPG(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer pg.Close()
		store = pg
		probe = httpapi.ReadyProbe{DB: pg.DB()}
	} else {
		store = account.NewInMemory()
	}

	svc, err := account.NewService(store)
	if err != nil {
		log.Fatalf("account service: %v", err)
	}

	api := httpapi.New(probe, version, svc)

	addr := os.Getenv("LEXORA_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var grpcSrv *grpc.Server
	if grpcAddr := os.Getenv("LEXORA_GRPC_ADDR"); grpcAddr != "" {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		grpcSrv = grpc.NewServer()
		hs := health.NewServer()
		healthpb.RegisterHealthServer(grpcSrv, hs)
		go watchReadiness(probe, hs)
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				log.Fatalf("grpc serve: %v", err)
			}
		}()
		log.Printf("gRPC health endpoint on %s", grpcAddr)
	}

	log.Printf("Starting lexora-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	log.Println("Stopped")
}

// watchReadiness mirrors the HTTP readiness probe into the gRPC health
// service every few seconds.
func watchReadiness(probe httpapi.ReadyProbe, hs *health.Server) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		status := healthpb.HealthCheckResponse_SERVING
		if err := probe.Check(ctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		cancel()
		obs.SetReady(status == healthpb.HealthCheckResponse_SERVING)
		hs.SetServingStatus(healthServiceName, status)
		hs.SetServingStatus("", status)
		<-ticker.C
	}
}
