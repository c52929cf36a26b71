package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"udl/internal/api"
	"udl/internal/api/handlers"
	"udl/internal/api/middleware"
	"udl/internal/engine/nodes"
	"udl/internal/engine/webhooks"
	"udl/internal/pkg/logger"
	"udl/internal/platform/config"
	"udl/internal/platform/database"
	"udl/internal/platform/models"
	"udl/internal/platform/repositories"
)

// buildStore creates the node store and indexes each plugin's id field per
// node type, so identity resolution hits the index instead of the scan
// fallback.
func buildStore(plugins []config.PluginConfig) *nodes.MemoryStore {
	store := nodes.NewMemoryStore()
	for _, plugin := range plugins {
		if plugin.IDField == "" {
			continue
		}
		for _, nodeType := range plugin.NodeTypes {
			store.RegisterIndex(nodeType, plugin.IDField)
		}
	}
	return store
}

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	deliveryRepo := repositories.NewDeliveryRepository(db)

	store := buildStore(cfg.Webhooks.Plugins)

	// Webhook registry: one default CRUD handler per configured plugin.
	registry := webhooks.NewRegistry()
	for _, plugin := range cfg.Webhooks.Plugins {
		var opts []webhooks.DefaultHandlerOption
		if plugin.IDField != "" {
			opts = append(opts, webhooks.WithIDField(plugin.IDField))
		}

		reg := webhooks.Registration{
			Path:    plugin.Path,
			Handler: webhooks.NewDefaultHandler(plugin.Name, opts...),
		}
		switch plugin.Verifier {
		case "hmac":
			reg.VerifySignature = webhooks.HMACVerifier(plugin.Secret, plugin.SignatureHeader)
		case "jwt":
			reg.VerifySignature = webhooks.JWTVerifier(plugin.Secret)
		}
		registry.Register(plugin.Name, reg)
	}

	// Outbound manager
	outboundConfigs := make([]webhooks.OutboundConfig, 0, len(cfg.Webhooks.Destinations))
	for _, dest := range cfg.Webhooks.Destinations {
		outboundConfigs = append(outboundConfigs, webhooks.OutboundConfig{
			URL:        dest.URL,
			Method:     dest.Method,
			Headers:    dest.Headers,
			Retries:    dest.Retries,
			RetryDelay: time.Duration(dest.RetryDelayMs) * time.Millisecond,
			Condition:  dest.Condition,
		})
	}
	manager := webhooks.NewManager(cfg.Webhooks.Source, outboundConfigs)

	// Queue: flushed batches are fanned out and every outcome recorded.
	queue := webhooks.NewQueue(time.Duration(cfg.Webhooks.DebounceMs)*time.Millisecond, func(batch webhooks.Batch) {
		batchID := "batch_" + uuid.New().String()
		results := manager.TriggerAll(context.Background(), batch)

		for _, result := range results {
			delivery := &models.Delivery{
				BatchID:      batchID,
				URL:          result.URL,
				Success:      result.Success,
				Skipped:      result.Skipped,
				Attempts:     result.Attempts,
				Error:        result.Error,
				WebhookCount: len(batch.Webhooks),
			}
			if err := deliveryRepo.Record(delivery); err != nil {
				zlog.Error().Err(err).Str("url", result.URL).Msg("failed to record webhook delivery")
			}
		}

		zlog.Info().
			Str("batch_id", batchID).
			Int("webhooks", len(batch.Webhooks)).
			Int("destinations", len(results)).
			Msg("webhook batch delivered")
	})
	defer queue.Stop()

	// Handlers
	webhookHandler := handlers.NewWebhookHandler(registry, queue, store, store, cfg.Webhooks.MaxBodyBytes)
	adminHandler := handlers.NewAdminHandler(registry, queue, deliveryRepo)
	healthHandler := handlers.NewHealthHandler(db, queue, deliveryRepo)

	deps := &api.Dependencies{
		WebhookHandler: webhookHandler,
		AdminHandler:   adminHandler,
		HealthHandler:  healthHandler,
	}
	if cfg.Admin.APIKeyHash != "" {
		deps.APIKeyMiddleware = middleware.NewAPIKeyMiddleware(cfg.Admin.APIKeyHash)
	}
	router := api.NewRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	zlog.Info().Str("addr", addr).Msg("server starting")
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
