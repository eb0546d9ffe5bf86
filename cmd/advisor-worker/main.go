package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"plant-advisor/internal/common/camunda"
	"plant-advisor/internal/common/config"
	"plant-advisor/internal/common/database"
	"plant-advisor/internal/common/logger"
	"plant-advisor/internal/common/observability"
	"plant-advisor/internal/conversation"
	"plant-advisor/internal/recommend"
	gc "plant-advisor/internal/workers/plant-advisor/guided-conversation"
	pcp "plant-advisor/internal/workers/plant-advisor/plant-care-prediction"
	sf "plant-advisor/internal/workers/plant-advisor/submit-feedback"
)

func main() {
	bootLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewFromConfig(cfg.Logging)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	log.Info("Starting plant advisor worker", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs := observability.New(cfg.App.Name, log)
	health := database.NewHealth(2 * time.Second)

	b := connectBackends(ctx, cfg, health, log)
	defer b.close(log)

	// --- Recommendation engine ---
	snapshots, feedback := modelStore(ctx, cfg, b, log)
	opts := []recommend.Option{recommend.WithObservability(obs)}
	if snapshots != nil {
		opts = append(opts, recommend.WithPersistence(snapshots), recommend.WithFeedbackRepository(feedback))
	}
	rec := recommend.New(cfg.Recommend, log, opts...)
	if err := rec.Initialize(ctx); err != nil {
		log.Error("Model training failed, predictions will report MODEL_NOT_TRAINED", map[string]interface{}{"error": err.Error()})
	}

	// --- Conversation engine ---
	kb, err := knowledgeProvider(cfg, b, log)
	if err != nil {
		zapLog.Fatal("knowledge base failed to load", zap.Error(err))
	}
	conv := conversation.NewEngine(stateStore(ctx, cfg, b, log), rec, kb, log, conversation.WithObservability(obs))

	// --- Workers ---
	var registry *camunda.Registry
	if cfg.Camunda.Enabled {
		client, err := camunda.Connect(ctx, cfg.Camunda, log, 10)
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer client.Close()
		health.Register("zeebe", client.HealthCheck)

		registry = camunda.NewRegistry(client.Zeebe(), obs, log)
		registerWorkers(registry, cfg, conv, rec, log)
	}

	// --- Health & Metrics Server ---
	server := &http.Server{Addr: cfg.Server.Address, Handler: routes(health, rec), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("Health/Metrics server listening", map[string]interface{}{"address": cfg.Server.Address})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Health/Metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	log.Info("Shutdown signal received, stopping workers", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if registry != nil {
		registry.Close()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Health/Metrics server shutdown", map[string]interface{}{"error": err.Error()})
	}
	if err := rec.Save(shutdownCtx); err != nil {
		log.Warn("Final model save failed", map[string]interface{}{"error": err.Error()})
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Warn("Meter provider shutdown", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Plant advisor worker stopped", nil)
}

func registerWorkers(registry *camunda.Registry, cfg *config.Config, conv *conversation.Engine, rec *recommend.Engine, log logger.Logger) {
	if wc := config.GetWorkerConfig(cfg, gc.TaskType); wc.Enabled {
		if h, err := gc.NewHandler(gc.ConfigFromWorker(wc), conv, log); err != nil {
			log.Error("Worker not started", map[string]interface{}{"taskType": gc.TaskType, "error": err.Error()})
		} else {
			registry.Start(gc.TaskType, wc, h.Handle)
		}
	}

	if wc := config.GetWorkerConfig(cfg, sf.TaskType); wc.Enabled {
		if h, err := sf.NewHandler(sf.ConfigFromWorker(wc), rec, log); err != nil {
			log.Error("Worker not started", map[string]interface{}{"taskType": sf.TaskType, "error": err.Error()})
		} else {
			registry.Start(sf.TaskType, wc, h.Handle)
		}
	}

	if wc := config.GetWorkerConfig(cfg, pcp.TaskType); wc.Enabled {
		if h, err := pcp.NewHandler(pcp.ConfigFromWorker(wc), rec, log); err != nil {
			log.Error("Worker not started", map[string]interface{}{"taskType": pcp.TaskType, "error": err.Error()})
		} else {
			registry.Start(pcp.TaskType, wc, h.Handle)
		}
	}

	log.Info("Workers registered", map[string]interface{}{"taskTypes": registry.TaskTypes()})
}

func routes(health *database.Health, rec *recommend.Engine) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		failures := health.Run(r.Context())
		status := http.StatusOK
		body := map[string]interface{}{"status": "ready", "modelsTrained": rec.Trained()}
		if len(failures) > 0 || !rec.Trained() {
			status = http.StatusServiceUnavailable
			body["status"] = "not_ready"
			body["failures"] = failures
		}
		writeJSON(w, status, body)
	})
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, rec.Stats())
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
