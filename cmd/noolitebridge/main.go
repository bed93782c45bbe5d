// nooLite bridge - MTRF-64 radio adapter to MQTT
//
// This is the main entry point for the bridge. It wires the serial adapter,
// the device list, the MQTT broker and the optional InfluxDB telemetry and
// SQLite reception journal together, then runs until SIGINT/SIGTERM or until
// the adapter reports a reception the bridge cannot classify.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/noolite-bridge/internal/bridges/noolite"
	"github.com/nerrad567/noolite-bridge/internal/device"
	"github.com/nerrad567/noolite-bridge/internal/infrastructure/config"
	"github.com/nerrad567/noolite-bridge/internal/infrastructure/database"
	"github.com/nerrad567/noolite-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/noolite-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/noolite-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/noolite-bridge/internal/journal"
	"github.com/nerrad567/noolite-bridge/internal/mtrf"
	"github.com/nerrad567/noolite-bridge/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// journalPruneInterval is how often expired journal rows are deleted.
const journalPruneInterval = time.Hour

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on a signal-driven shutdown and an error for any startup
// failure or for an unclassified reception.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting nooLite bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, logging.Identity{Version: version, BridgeID: cfg.Bridge.ID})
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Device list
	devices, err := device.LoadDevices(cfg.Bridge.DevicesFile)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}
	registry := device.NewRegistry(devices, log.Component("registry"))
	stats := registry.Stats()
	log.Info("device registry initialised",
		"path", cfg.Bridge.DevicesFile,
		"switches", stats.Switches,
		"sensors", stats.Sensors,
		"conflicts", stats.Conflicts,
	)

	// Adapter (opened later by the bridge's command queue)
	txMode, err := mtrf.ParseTxMode(cfg.Adapter.TxMode)
	if err != nil {
		return fmt.Errorf("adapter: %w", err)
	}
	adapter, err := newAdapter(cfg, txMode, log.Component("mtrf"))
	if err != nil {
		return fmt.Errorf("creating adapter: %w", err)
	}
	defer func() {
		log.Info("closing adapter")
		if closeErr := adapter.Close(); closeErr != nil {
			log.Error("error closing adapter", "error", closeErr)
		}
	}()

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	var telemetry noolite.Telemetry
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB, cfg.Bridge.ID)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
			stats := influxClient.Stats()
			log.Info("InfluxDB connection closed", "points", stats.Written, "rejected_batches", stats.Rejected)
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		telemetry = &influxTelemetry{client: influxClient, log: log.Component("telemetry")}
	} else {
		log.Info("InfluxDB disabled")
	}

	// Open the reception journal (optional)
	var db *database.DB
	var journalRepo journal.Repository
	var journalSink noolite.Journal
	if cfg.Database.Enabled {
		db, err = database.Open(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", db.Path())

		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		schema, versionErr := db.SchemaVersion(ctx)
		if versionErr != nil {
			return versionErr
		}
		log.Info("database migrations complete", "schema_version", schema)

		repo := journal.NewSQLiteRepository(db.DB)
		reportUnclassified(ctx, repo, log)
		journalRepo = repo
		writer := journal.NewWriter(journalRepo, 0, log.Component("journal"))
		defer func() {
			if closeErr := writer.Close(); closeErr != nil {
				log.Error("error closing journal", "error", closeErr)
			}
			log.Info("journal closed", "written", writer.Written(), "dropped", writer.Dropped())
		}()
		journalSink = writer
	} else {
		log.Info("reception journal disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	bridge, err := noolite.NewBridge(noolite.BridgeOptions{
		BridgeID:         cfg.Bridge.ID,
		Version:          version,
		Registry:         registry,
		MQTTClient:       mqttClient,
		Adapter:          adapter,
		TxMode:           txMode,
		CommandQoS:       byte(cfg.MQTT.QoS),
		PollOnStart:      cfg.Bridge.PollOnStart,
		QueueDelay:       cfg.GetAdapterDelay(),
		PublishBuffer:    cfg.Bridge.PublishBuffer,
		HealthInterval:   cfg.GetHealthInterval(),
		LegacyAutomation: cfg.Bridge.LegacyAutomation,
		Telemetry:        telemetry,
		Journal:          journalSink,
		Logger:           log.Component("bridge"),
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
	}()

	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"adapter_port", cfg.Adapter.Port,
		"tx_mode", txMode.String(),
		"mock_adapter", cfg.Adapter.Mock,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watchFatal(gctx, bridge.Fatal())
	})
	if journalRepo != nil && cfg.GetJournalRetention() > 0 {
		g.Go(func() error {
			pruneJournal(gctx, journalRepo, cfg.GetJournalRetention(), journalPruneInterval, log)
			return nil
		})
	}

	runErr := g.Wait()
	if runErr != nil {
		log.Error("shutting down on bridge failure", "error", runErr)
	} else {
		log.Info("shutdown signal received, cleaning up")
	}

	// Deferred calls run in reverse order:
	// 1. Bridge (unsubscribe, drain queue and publisher)
	// 2. Journal writer, database
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Adapter

	return runErr
}

// getConfigPath returns the configuration file path.
// Uses NOOLITE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("NOOLITE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// bridgeAdapter is the adapter surface main owns: the bridge's view plus Close.
type bridgeAdapter interface {
	noolite.Adapter
	Close() error
}

// newAdapter builds the serial MTRF-64 driver, or the logging-only stand-in
// when adapter.mock is set.
func newAdapter(cfg *config.Config, txMode mtrf.Mode, log mtrf.Logger) (bridgeAdapter, error) {
	if cfg.Adapter.Mock {
		log.Warn("using mock adapter, no radio traffic will be sent")
		return mtrf.NewMockAdapter(log), nil
	}

	opts, err := mtrf.PortOptions{
		BaudRate: cfg.Adapter.BaudRate,
		DataBits: cfg.Adapter.DataBits,
		StopBits: cfg.Adapter.StopBits,
		Parity:   cfg.Adapter.Parity,
	}.Normalize()
	if err != nil {
		return nil, err
	}

	return mtrf.NewAdapter(
		mtrf.SerialOpener(cfg.Adapter.Port, opts, cfg.GetAdapterReadTimeout()),
		mtrf.Options{TxMode: txMode, Logger: log},
	)
}

// watchFatal returns the first error delivered by the bridge, or nil once
// ctx is cancelled.
func watchFatal(ctx context.Context, fatal <-chan error) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-fatal:
		return err
	}
}

// unclassifiedReportLimit caps how many earlier unclassified receptions are
// logged at startup.
const unclassifiedReportLimit = 5

// journalLister is the part of the journal repository the startup report needs.
type journalLister interface {
	List(ctx context.Context, filter journal.Filter) (*journal.ListResult, error)
}

// reportUnclassified logs the newest unclassified receptions left by earlier
// runs. Each one stopped the bridge, so they are the first thing to look at
// after a restart.
func reportUnclassified(ctx context.Context, repo journalLister, log *logging.Logger) {
	res, err := repo.List(ctx, journal.Filter{
		Outcome: journal.OutcomeUnclassified,
		Limit:   unclassifiedReportLimit,
	})
	if err != nil {
		log.Warn("reading journal failed", "error", err)
		return
	}
	if res.Total == 0 {
		return
	}

	log.Warn("journal holds unclassified receptions", "total", res.Total)
	for _, e := range res.Entries {
		log.Warn("unclassified reception",
			"at", e.CreatedAt,
			"mode", e.Mode,
			"command", e.Command,
			"result", e.Result,
			"channel", e.Channel,
			"data", e.Data[:],
		)
	}
}

// journalPruner is the part of the journal repository the pruning loop needs.
type journalPruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// pruneJournal deletes journal rows older than retention once immediately and
// then every interval until ctx is cancelled.
func pruneJournal(ctx context.Context, repo journalPruner, retention, interval time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := repo.Prune(ctx, time.Now().Add(-retention))
		switch {
		case err != nil && ctx.Err() == nil:
			log.Error("journal prune failed", "error", err)
		case n > 0:
			log.Info("journal pruned", "deleted", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
// db and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// The adapter is verified during bridge Start, which opens the port and
	// leaves service mode before subscribing to command topics.

	return nil
}

// observationWriter is the part of the InfluxDB sink the bridge feeds.
type observationWriter interface {
	WriteObservation(obs influxdb.Observation) error
}

// influxTelemetry writes bridge observations to InfluxDB.
type influxTelemetry struct {
	client observationWriter
	log    *logging.Logger
}

// Observe implements noolite.Telemetry.
func (t *influxTelemetry) Observe(obs noolite.Observation) {
	if err := t.client.WriteObservation(toInfluxObservation(obs)); err != nil {
		t.log.Debug("observation not written", "channel", obs.Channel, "error", err)
	}
}

func toInfluxObservation(obs noolite.Observation) influxdb.Observation {
	return influxdb.Observation{
		Channel:     obs.Channel,
		Kind:        string(obs.Kind),
		Topic:       obs.Topic,
		Temperature: obs.Temperature,
		Humidity:    obs.Humidity,
		On:          obs.On,
		Time:        obs.Time,
	}
}
