package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"envoy.ai/internal/observability"
	persistlog "envoy.ai/internal/persistence/log"
	"envoy.ai/internal/sim/diplomacy"
	"envoy.ai/internal/sim/diplomacy/execution"
	"envoy.ai/internal/sim/scenario"
	"envoy.ai/internal/sim/session"
	"envoy.ai/internal/sim/tuning"
	"envoy.ai/internal/sim/world"
	"envoy.ai/internal/transport/httpapi"
	"envoy.ai/internal/transport/ws"
)

func main() {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := parseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	tune, err := tuning.Load(cfg.TuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", cfg.TuningPath)
		tune = tuning.Default()
	}
	sc, err := scenario.Load(cfg.ScenarioPath)
	if err != nil {
		logger.Fatalf("load scenario: %v", err)
	}

	w, err := world.New(world.Config{
		DiplCostPct:  tune.DiplCostPct,
		ContactTurns: tune.ContactTurns,
	}, sc)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.New(reg)

	auditLog := persistlog.NewTreatyLogger(cfg.DataDir)
	defer auditLog.Close()
	recorders := []session.Recorder{auditLog}

	idx, history, err := openRuntimeIndex(cfg, sc.Name, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		recorders = append(recorders, idx)
		if mi, ok := idx.(metaIndex); ok {
			if err := mi.UpsertMeta(sc, tune); err != nil {
				logger.Printf("index backend: upsert meta: %v", err)
			}
		}
	}

	sessLogger := log.New(os.Stdout, "[session] ", log.LstdFlags|log.Lmicroseconds)
	sess, err := session.New(session.Config{
		Diplomacy: diplomacy.Config{
			Execution: execution.Config{CeaseFireTurns: tune.CeaseFireTurns},
		},
		TurnInterval:   time.Duration(tune.TurnSeconds) * time.Second,
		MaxQueue:       tune.MaxQueue,
		ScenarioDigest: sc.Digest,
	}, session.Options{
		World:     w,
		Logger:    sessLogger,
		Metrics:   metrics,
		Recorders: recorders,
		Advisor:   session.LogAdvisor{Logger: sessLogger},
	})
	if err != nil {
		logger.Fatalf("session: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := sess.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("session stopped: %v", err)
		}
	}()

	wsLogger := log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds)
	wsSrv := ws.NewServer(sess, ws.Config{
		MaxQueue:          tune.MaxQueue,
		RequestsPerSecond: tune.RateLimits.RequestsPerSecond,
		Burst:             tune.RateLimits.Burst,
	}, wsLogger, metrics)

	limiter := httpapi.NewIPRateLimiter(httpapi.DefaultRateLimitConfig, metrics)
	defer limiter.Stop()
	if cfg.AdminToken == "" {
		logger.Printf("admin endpoints restricted to loopback (ENVOY_ADMIN_TOKEN unset)")
	}
	router, err := httpapi.NewRouter(httpapi.RouterConfig{
		Session:        sess,
		History:        history,
		WS:             wsSrv.Handler(),
		Gatherer:       reg,
		Metrics:        metrics,
		AdminToken:     cfg.AdminToken,
		RateLimiter:    limiter,
		CORSOrigins:    cfg.CORSOrigins,
		DisableLogging: cfg.DisableHTTPLogging,
	})
	if err != nil {
		logger.Fatalf("router: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("scenario=%s digest=%s players=%d session=%s", sc.Name, sc.Digest, len(w.Players()), sess.ID())
	logger.Printf("listening on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-sess.Done()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
