package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-realtime-parcels.git/internal/config"
	kafkax "github.com/ariefcatur/go-realtime-parcels.git/internal/kafka"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/metrics"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/redisx"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/replica"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/syncer"
	"github.com/joho/godotenv"
)

// replicator follows the parcel feed without serving the API and keeps the pebble
// checkpoint warm, so API instances start from recent rows.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.ReplicaDir == "" {
		log.Fatal("REPLICA_DIR is required")
	}
	cp, err := replica.NewPebbleCheckpoint(cfg.ReplicaDir)
	if err != nil {
		log.Fatalf("checkpoint: %v", err)
	}
	defer cp.Close()

	m := metrics.NewRegistry()
	rep := replica.New(m)
	n, err := rep.Restore(cp)
	if err != nil {
		log.Fatalf("restore: %v", err)
	}
	log.Printf("restored %d parcels from %s", n, cfg.ReplicaDir)

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &syncer.Service{
		Replica:     rep,
		Dedup:       &redisx.Deduper{Redis: rdb, Service: cfg.ServiceName + "-replicator"},
		Metrics:     m,
		ServiceName: cfg.ServiceName + "-replicator",
	}

	// Consumer
	group := getenv("REPLICATOR_GROUP", "parcel-replicator")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, cfg.ParcelTopic, cfg.FeedWorkers)
	cons.DeferCommit = true // offsets are committed by the checkpoint loop
	cons.OnReadError = svc.OnReadError
	cons.OnReadOK = svc.OnReadOK

	go func() {
		log.Printf("replicator consumer started: group=%s topic=%s workers=%d", group, cfg.ParcelTopic, cfg.FeedWorkers)
		if err := cons.Start(ctx, svc.HandleParcelChange); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	cpDone := make(chan struct{})
	go func() {
		defer close(cpDone)
		svc.RunCheckpoints(ctx, cp, cons, cfg.CheckpointInterval)
	}()

	// metrics only
	srv := &http.Server{Addr: getenv("REPLICATOR_ADDR", ":9091"), Handler: m.Handler()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics listen: %v", err)
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down replicator...")
	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel()
	<-cpDone
	if err := cons.Close(); err != nil {
		log.Printf("consumer close: %v", err)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
