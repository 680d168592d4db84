package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/whereabouts/internal/certs"
	"github.com/Veraticus/whereabouts/internal/cli"
	"github.com/Veraticus/whereabouts/internal/geofence"
	"github.com/Veraticus/whereabouts/internal/httpapi"
	"github.com/Veraticus/whereabouts/internal/location"
	"github.com/Veraticus/whereabouts/internal/model"
	"github.com/Veraticus/whereabouts/internal/mqtt"
	"github.com/Veraticus/whereabouts/internal/service"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var noSync bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the geofence bridge and check API",
		Long: `Connect to the host bridge over MQTT, keep geofences registered, process
transitions as they arrive, and serve on-demand checks over HTTP.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr(), "Waiting for in-flight transitions to finish")
			ctx := interrupts.HandleInterrupts(cmd.Context())
			return runServe(ctx, !noSync)
		},
	}

	cmd.Flags().BoolVar(&noSync, "no-sync", false, "skip registering geofences at startup")

	return cmd
}

func runServe(ctx context.Context, syncOnStart bool) error {
	cfg, store, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	policy, err := recencyPolicyFromConfig(cfg)
	if err != nil {
		return err
	}

	fixes, closeFixes := newFixStore(cfg)
	defer func() { _ = closeFixes() }()

	client, err := connectMQTT(cfg)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix)
	stats := geofence.NewStatisticsUpdater(store)
	handler := geofence.NewTransitionHandler(store,
		geofence.NewUsageUpdater(store, policy),
		stats,
		mqtt.NewNotifier(client, topics, cfg.MQTT.QoS))
	receiver := geofence.NewReceiver(handler)
	// Everything accepted must finish before storage closes.
	defer receiver.Wait()

	subscriber := mqtt.NewSubscriber(client, topics, cfg.MQTT.QoS, receiver, fixes)
	if err := subscriber.Start(); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer func() {
		if err := subscriber.Stop(); err != nil {
			slog.Warn("Failed to unsubscribe", "error", err)
		}
	}()

	manager := newManager(cfg, client, store)
	if !manager.HasLocationPermission() {
		slog.Warn("Fine location permission is not granted; checks will report PERMISSION_DENIED")
	}
	if syncOnStart {
		if _, err := syncGeofences(ctx, manager); err != nil {
			// The host may come up later; the refresh loop retries.
			slog.Warn("Initial geofence sync failed", "error", err)
		}
	}

	checker := geofence.NewCheckServiceWithConfig(store, permissionsFromConfig(cfg),
		location.NewStoreProvider(fixes, cfg.Location.MaxFixAge), stats,
		geofence.CheckConfig{CacheTTL: cfg.Location.CacheTTL})
	api := httpapi.NewServer(checker, func(event model.TransitionEvent) {
		receiver.Receive(event, nil)
	})
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.SetupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if cfg.HTTP.TLS {
		tlsConfig, err := certs.NewFileManager(cfg.HTTP.CertDir, cfg.HTTP.TLSHosts...).TLSConfig()
		if err != nil {
			return fmt.Errorf("failed to prepare TLS certificate: %w", err)
		}
		server.TLSConfig = tlsConfig
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("HTTP API listening", "addr", server.Addr, "tls", cfg.HTTP.TLS)
		var err error
		if server.TLSConfig != nil {
			// Certificates come from TLSConfig.
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		refreshLoop(gctx, store, manager, checker)
		return nil
	})

	err = g.Wait()
	slog.Info("Shutting down", "error", err)
	return err
}

// refreshLoop re-syncs registrations and drops the cached fix on the
// configured auto refresh interval.
func refreshLoop(ctx context.Context, store service.Storage, manager *geofence.Manager, checker *geofence.CheckService) {
	interval := func() time.Duration {
		cfg, err := store.GetGeofenceConfig(ctx)
		if err != nil || cfg.AutoRefreshInterval <= 0 {
			return model.DefaultGeofenceConfig().AutoRefreshInterval
		}
		return cfg.AutoRefreshInterval
	}

	timer := time.NewTimer(interval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			checker.ClearLocationCache()
			if _, err := syncGeofences(ctx, manager); err != nil && ctx.Err() == nil {
				slog.Warn("Periodic geofence sync failed", "error", err)
			}
			timer.Reset(interval())
		}
	}
}

func syncGeofences(ctx context.Context, manager *geofence.Manager) (geofence.SyncResult, error) {
	result, err := manager.SyncGeofences(ctx, nil)
	if err != nil {
		return result, err
	}
	slog.Info("Geofences synced", "registered", result.Registered, "removed", result.Removed)
	return result, nil
}
