package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-realtime-parcels.git/internal/config"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-realtime-parcels.git/internal/kafka"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/metrics"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/parcels"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/postgres"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/redisx"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/replica"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/syncer"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatalf("%v", err)
	}
	repo := &parcels.Repo{DB: db}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	pageCache := &redisx.Cache{Redis: rdb, TTL: cfg.PageCacheTTL}
	sessionCache := &redisx.Cache{Redis: rdb, TTL: redisx.TTLSession}

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, cfg.ParcelTopic, 1024)
	prod.Start(ctx)

	// Replica: checkpoint dulu, kalau kosong seed dari DB
	m := metrics.NewRegistry()
	rep := replica.New(m)
	cp, closeCP := openCheckpoint(cfg.ReplicaDir)
	defer closeCP()
	n, err := rep.Restore(cp)
	if err != nil {
		log.Printf("replica restore: %v", err)
	}
	if n == 0 {
		ps, err := repo.All(ctx)
		if err != nil {
			log.Fatalf("replica seed: %v", err)
		}
		n = rep.Load(ps)
	}
	log.Printf("replica ready: %d parcels", n)

	svc := &syncer.Service{
		Replica:     rep,
		Dedup:       &redisx.Deduper{Redis: rdb, Service: cfg.ServiceName},
		Producer:    prod,
		Metrics:     m,
		ServiceName: cfg.ServiceName,
	}

	// Consumer: tiap instance punya group sendiri supaya replica dapat seluruh feed
	group := cfg.ParcelGroup
	if group == "" {
		host, _ := os.Hostname()
		group = cfg.ServiceName + "-" + host
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, cfg.ParcelTopic, cfg.FeedWorkers)
	cons.DeferCommit = true // offsets are committed by the checkpoint loop
	cons.OnReadError = svc.OnReadError
	cons.OnReadOK = svc.OnReadOK
	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		log.Printf("feed consumer started: group=%s topic=%s workers=%d", group, cfg.ParcelTopic, cfg.FeedWorkers)
		if err := cons.Start(ctx, svc.HandleParcelChange); err != nil {
			log.Printf("consumer exit: %v", err)
		}
	}()

	cpDone := make(chan struct{})
	go func() {
		defer close(cpDone)
		svc.RunCheckpoints(ctx, cp, cons, cfg.CheckpointInterval)
	}()

	// Handlers
	router := httpx.NewRouter(m)
	(&httpx.ParcelsHandler{
		Repo:         repo,
		Cache:        pageCache,
		Feed:         svc,
		Replica:      rep,
		Metrics:      m,
		LiveDebounce: cfg.LiveDebounce,
	}).Register(router)
	(&httpx.QuotesHandler{Locale: cfg.MoneyLocale, Currency: cfg.MoneyCurrency}).Register(router)
	(&httpx.IdentityHandler{}).Register(router)
	httpx.NewSessionsHandler(sessionCache).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // flush & close writer
	cancel()          // stop consumer + checkpoint loop
	prod.WaitClosed() // drain
	<-feedDone
	<-cpDone
	if err := cons.Close(); err != nil {
		log.Printf("consumer close: %v", err)
	}
}

// openCheckpoint opens the pebble checkpoint in dir, or an in-memory one when dir is
// empty or cannot be opened.
func openCheckpoint(dir string) (replica.Checkpoint, func()) {
	if dir == "" {
		return replica.NewMemoryCheckpoint(), func() {}
	}
	p, err := replica.NewPebbleCheckpoint(dir)
	if err != nil {
		log.Printf("checkpoint %s: %v; falling back to memory", dir, err)
		return replica.NewMemoryCheckpoint(), func() {}
	}
	return p, func() {
		if err := p.Close(); err != nil {
			log.Printf("checkpoint close: %v", err)
		}
	}
}
