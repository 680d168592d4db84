package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/whereabouts/internal/cli"
	"github.com/Veraticus/whereabouts/internal/common"
	"github.com/Veraticus/whereabouts/internal/config"
	"github.com/Veraticus/whereabouts/internal/geofence"
	"github.com/Veraticus/whereabouts/internal/location"
	"github.com/Veraticus/whereabouts/internal/mqtt"
	"github.com/Veraticus/whereabouts/internal/service"
	"github.com/Veraticus/whereabouts/internal/storage"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// loadConfig reads the typed configuration from the global viper instance.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// initStorage opens and migrates the configured database.
func initStorage(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, common.NewUserError("could not open the database at "+cfg.Database.Path, err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// openApp loads the configuration and opens storage in one step.
func openApp(ctx context.Context) (*config.Config, *storage.SQLiteStorage, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := initStorage(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func permissionsFromConfig(cfg *config.Config) geofence.PermissionSet {
	return geofence.PermissionSet{
		FineLocation:       cfg.Permissions.FineLocation,
		BackgroundLocation: cfg.Permissions.BackgroundLocation,
		Version:            cfg.Permissions.PlatformVersion,
	}
}

func recencyPolicyFromConfig(cfg *config.Config) (geofence.RecencyPolicy, error) {
	return geofence.ParseRecencyPolicy(cfg.Usage.RecencyPolicy)
}

// managerConfigFromConfig switches region commands to retried delivery only
// when more than one attempt is configured.
func managerConfigFromConfig(cfg *config.Config) geofence.ManagerConfig {
	mc := geofence.DefaultManagerConfig()
	if cfg.Registration.RetryAttempts > 1 {
		mc.Retry = &service.RetryOptions{
			MaxAttempts:  cfg.Registration.RetryAttempts,
			InitialDelay: cfg.Registration.RetryDelay,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		}
	}
	return mc
}

// newFixStore returns the configured fix store and a close function.
func newFixStore(cfg *config.Config) (location.FixStore, func() error) {
	if cfg.Location.Store == config.StoreRedis {
		client := location.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		return location.NewRedisFixStore(client, cfg.Location.MaxFixAge), client.Close
	}
	return location.NewMemoryFixStore(), func() error { return nil }
}

func connectMQTT(cfg *config.Config) (*mqtt.Client, error) {
	return mqtt.NewClient(mqtt.Options{
		Broker:         cfg.MQTT.Broker,
		ClientID:       cfg.MQTT.ClientID,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		ConnectTimeout: 10 * time.Second,
	})
}

// newManager builds a Manager publishing region commands over transport.
func newManager(cfg *config.Config, transport mqtt.Transport, store service.Storage) *geofence.Manager {
	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix)
	registrar := mqtt.NewRegistrar(transport, topics, cfg.MQTT.QoS)
	return geofence.NewManagerWithConfig(registrar, permissionsFromConfig(cfg), store, managerConfigFromConfig(cfg))
}

// brokerRegionRemover withdraws host regions over MQTT. It connects on first
// use so commands that remove nothing never dial the broker.
type brokerRegionRemover struct {
	cfg    *config.Config
	store  service.Storage
	client *mqtt.Client
}

func newBrokerRegionRemover(cfg *config.Config, store service.Storage) *brokerRegionRemover {
	return &brokerRegionRemover{cfg: cfg, store: store}
}

func (r *brokerRegionRemover) RemoveGeofence(ctx context.Context, locationID string) error {
	if r.client == nil {
		client, err := connectMQTT(r.cfg)
		if err != nil {
			return fmt.Errorf("%w: %w", common.ErrRegistrationFailed, err)
		}
		r.client = client
	}
	return newManager(r.cfg, r.client, r.store).RemoveGeofence(ctx, locationID)
}

func (r *brokerRegionRemover) Close() {
	if r.client != nil {
		r.client.Disconnect()
	}
}

// regionRemover returns nil when the caller asked to keep host regions.
func regionRemover(keep bool, remover *brokerRegionRemover) geofence.RegionRemover {
	if keep {
		return nil
	}
	return remover
}

// regionWarning reports a committed delete whose host region could not be
// withdrawn. Other errors pass through.
func regionWarning(out io.Writer, err error) error {
	if !errors.Is(err, common.ErrRegistrationFailed) {
		return err
	}
	fmt.Fprintln(out, cli.FormatWarning("Host region not removed: "+err.Error()))
	fmt.Fprintln(out, cli.FormatInfo("Run 'whereabouts sync --remove-all' followed by 'whereabouts sync' once the broker is reachable"))
	return nil
}

// notFound turns a missing row into a message naming what was looked up.
func notFound(what, id string, err error) error {
	if errors.Is(err, common.ErrNotFound) {
		return common.NewUserError(fmt.Sprintf("no %s with id %s", what, id), err)
	}
	return err
}

func optionalRadius(radius int) *int {
	if radius <= 0 {
		return nil
	}
	return &radius
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
