// Package main provides the Bananas worker service for processing background jobs.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof" // #nosec G108 - pprof is intentionally exposed for debugging, isolated to separate port
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/muaviaUsmani/bananas/internal/config"
	"github.com/muaviaUsmani/bananas/internal/isolate"
	"github.com/muaviaUsmani/bananas/internal/job"
	"github.com/muaviaUsmani/bananas/internal/logger"
	"github.com/muaviaUsmani/bananas/internal/metrics"
	"github.com/muaviaUsmani/bananas/internal/observer"
	"github.com/muaviaUsmani/bananas/internal/queue"
	"github.com/muaviaUsmani/bananas/internal/worker"
)

// registerJobs wires every known job type into the registry used by both
// the parent loops and the re-exec'd child process (ForkIsolator mode).
func registerJobs(registry *job.Registry) error {
	if err := job.Register(registry, "Echo", func() *job.EchoJob { return &job.EchoJob{} }); err != nil {
		return err
	}
	if err := job.Register(registry, "Fail", func() *job.FailJob { return &job.FailJob{} }); err != nil {
		return err
	}
	return nil
}

func main() {
	registry := job.NewRegistry()
	if err := registerJobs(registry); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to register jobs: %v\n", err)
		os.Exit(1)
	}

	// Hidden entry point: when re-exec'd by ForkIsolator, read the envelope
	// from stdin, run the job, and exit with the matching status code.
	if isolate.IsChildExecRequest(os.Args) {
		stdin, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read job envelope: %v\n", err)
			os.Exit(1)
		}
		isolate.RunChildProcess(registry, stdin)
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := log.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close logger: %v\n", err)
		}
	}()
	logger.SetDefault(log)

	workerLog := log.WithComponent(logger.ComponentWorker).WithSource(logger.LogSourceInternal)
	workerLog.Info("worker starting",
		"queue", cfg.Worker.Queue,
		"concurrency", cfg.Worker.Concurrency,
		"fork_to_handle", cfg.Worker.ForkToHandle,
		"redis_url", cfg.RedisURL)

	pprofPort := os.Getenv("PPROF_PORT")
	if pprofPort == "" {
		pprofPort = "6061"
	}
	go func() {
		workerLog.Info("starting pprof server", "port", pprofPort)
		server := &http.Server{
			Addr:              ":" + pprofPort,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if err := server.ListenAndServe(); err != nil {
			workerLog.Error("pprof server failed", "error", err)
		}
	}()

	backend, err := queue.NewRedisBackend(cfg.RedisURL, queue.RedisOptions{})
	if err != nil {
		workerLog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			workerLog.Error("failed to close Redis backend", "error", err)
		}
	}()

	var jobIsolator isolate.Isolator
	if cfg.Worker.ForkToHandle {
		jobIsolator = isolate.NewForkIsolator(os.TempDir())
	} else {
		jobIsolator = isolate.NewInProcessIsolator()
	}

	promReg := prometheus.NewRegistry()
	obs := observer.NewMultiObserver(
		observer.NewMetricsObserver(metrics.Default()),
		observer.NewPrometheusObserver(promReg),
	)

	w := worker.New(backend, registry, jobIsolator, obs, worker.Config{
		ForkToHandle:            cfg.Worker.ForkToHandle,
		CleanSuccessfulJobsLogs: cfg.Worker.CleanSuccessfulJobsLogs,
		JobLogExpireSeconds:     cfg.Worker.JobLogExpireSeconds,
		QueueTimeout:            cfg.Worker.QueueTimeout,
		JobTimeout:              cfg.JobTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var stopping bool
	var stopMu sync.Mutex
	stop := func() bool {
		stopMu.Lock()
		defer stopMu.Unlock()
		return stopping
	}

	var wg sync.WaitGroup
	for i := 0; i < cfg.Worker.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLog.Info("worker loop started", "worker_id", id)
			w.Loop(ctx, cfg.Worker.Queue, stop)
			workerLog.Info("worker loop stopped", "worker_id", id)
		}(i)
	}

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m := metrics.GetMetrics()
				workerLog.Info("system metrics",
					"jobs_queued", m.TotalJobsQueued,
					"jobs_completed", m.TotalJobsCompleted,
					"jobs_retried", m.TotalJobsRetried,
					"jobs_removed", m.TotalJobsRemoved,
					"uptime", m.Uptime.String(),
				)
			}
		}
	}()

	sig := <-sigChan
	workerLog.Info("received shutdown signal, initiating graceful shutdown", "signal", sig)

	stopMu.Lock()
	stopping = true
	stopMu.Unlock()
	cancel()

	wg.Wait()
	workerLog.Info("worker shut down successfully")
}
