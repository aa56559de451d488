// opensesame is the entrance access controller.
//
// It drives the keypad and switch matrix on two I2C expander boards, opens
// the door for known codes, rings the bell, switches the entrance lights
// and reports everything to the chat topics on the MQTT broker.
//
// Configuration is read from configs/config.yaml, or from the file named by
// OPENSESAME_CONFIG.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/opensesame/core/migrations"

	"github.com/opensesame/core/internal/audio"
	"github.com/opensesame/core/internal/audit"
	"github.com/opensesame/core/internal/bridges/callerid"
	"github.com/opensesame/core/internal/bus"
	"github.com/opensesame/core/internal/buttons"
	"github.com/opensesame/core/internal/garage"
	"github.com/opensesame/core/internal/infrastructure/config"
	"github.com/opensesame/core/internal/infrastructure/database"
	"github.com/opensesame/core/internal/infrastructure/influxdb"
	"github.com/opensesame/core/internal/infrastructure/logging"
	"github.com/opensesame/core/internal/infrastructure/mqtt"
	"github.com/opensesame/core/internal/notify"
	"github.com/opensesame/core/internal/orchestrator"
	"github.com/opensesame/core/internal/power"
	"github.com/opensesame/core/internal/remote"
	"github.com/opensesame/core/internal/validator"
	"github.com/opensesame/core/internal/watchdog"
)

// Version information, set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

// Channel capacities.
const (
	commandQueue      = 16
	notificationQueue = 64
	audioQueue        = 4
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires all components and blocks until ctx is cancelled or one of
// them fails. A cancelled ctx is a clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting opensesame",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("loading timezone: %w", err)
	}

	v, err := validator.FromConfig(cfg.Validator.Users, validator.Options{
		MaxLength:    cfg.Validator.MaxLength,
		TimeoutTicks: cfg.Validator.TimeoutTicks,
	})
	if err != nil {
		return fmt.Errorf("loading users: %w", err)
	}
	log.Info("users loaded", "users", v.Users())

	dispatchOpts := notify.Options{Source: cfg.Site.ID, Logger: log}

	if cfg.Database.Enabled {
		db, dbErr := database.Open(database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if dbErr != nil {
			return fmt.Errorf("opening database: %w", dbErr)
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		dispatchOpts.Journal = audit.NewSQLiteRepository(db.DB)
		log.Info("access journal ready", "path", db.Path())
	}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() { log.Info("MQTT connected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		dispatchOpts.Publisher = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		dispatchOpts.Telemetry = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	expanders, err := bus.Open(cfg.Hardware.I2CBus, cfg.Hardware.BoardA, cfg.Hardware.BoardB)
	if err != nil {
		return fmt.Errorf("opening expander bus: %w", err)
	}
	defer expanders.Close()

	boards := expanders.Devices()
	matrix, err := buttons.New(boards[0], boards[1], buttons.Options{
		LightTimeoutTicks: cfg.LightTimeoutTicks(),
		BellEnabled:       cfg.Buttons.BellEnable,
		Logger:            log.With("component", "buttons"),
	})
	if err != nil {
		return fmt.Errorf("initializing button matrix: %w", err)
	}
	defer func() {
		if closeErr := matrix.Close(); closeErr != nil {
			log.Error("error switching boards off", "error", closeErr)
		}
	}()

	commands := make(chan orchestrator.Command, commandQueue)
	notes := make(chan orchestrator.Notification, notificationQueue)
	audioEvents := make(chan orchestrator.AudioEvent, audioQueue)
	var audioOut chan<- orchestrator.AudioEvent
	if cfg.Audio.Enabled {
		audioOut = audioEvents
	}

	loopOpts := orchestrator.Options{
		BellStartHour: cfg.Buttons.BellStartHour,
		BellEndHour:   cfg.Buttons.BellEndHour,
		AudioBell:     cfg.Audio.Enabled,
		StrictInput:   cfg.Buttons.StrictInput,
		Latitude:      cfg.Site.Location.Latitude,
		Longitude:     cfg.Site.Location.Longitude,
		Location:      loc,
		TimeFormat:    cfg.Site.TimeFormat,
		SafeTimeout:   time.Duration(cfg.Hardware.Power.SafeTimeout) * time.Millisecond,
		Logger:        log.With("component", "orchestrator"),
	}
	if cfg.Hardware.Power.Enabled {
		sw, powerErr := power.Open(cfg.Hardware.Power.Pin)
		if powerErr != nil {
			return fmt.Errorf("opening power switch: %w", powerErr)
		}
		defer sw.Close()
		loopOpts.Power = sw
	}

	loop := orchestrator.New(matrix, v, commands, notes, audioOut, loopOpts)
	dispatcher := notify.New(dispatchOpts)

	// Everything is set up before the first task starts, so a setup error
	// never leaves a task running.
	tasks := []func(context.Context) error{
		loop.Run,
		func(ctx context.Context) error { return dispatcher.Run(ctx, notes) },
	}

	if cfg.Audio.Enabled {
		player, audioErr := newPlayer(cfg, log)
		if audioErr != nil {
			return audioErr
		}
		tasks = append(tasks, func(ctx context.Context) error { return player.Run(ctx, audioEvents, notes) })
	}

	if cfg.Garage.Enabled {
		lines, garageErr := garage.OpenLines(cfg.Garage)
		if garageErr != nil {
			return fmt.Errorf("opening garage inputs: %w", garageErr)
		}
		var door garage.DoorPublisher
		if mqttClient != nil {
			door = mqttClient
		}
		w := garage.New(lines, door, log.With("component", "garage"))
		tasks = append(tasks, func(ctx context.Context) error { return w.Run(ctx, commands, notes) })
	}

	if cfg.CallerID.Enabled {
		port, portErr := callerid.Open(cfg.CallerID)
		if portErr != nil {
			return fmt.Errorf("opening caller id modem: %w", portErr)
		}
		defer port.Close()
		listener, listenErr := callerid.New(port, cfg.CallerID.Numbers, log.With("component", "callerid"))
		if listenErr != nil {
			return listenErr
		}
		tasks = append(tasks, func(ctx context.Context) error {
			// A blocked read only returns once the port is closed.
			stop := context.AfterFunc(ctx, func() { port.Close() })
			defer stop()
			return listener.Run(ctx, commands, notes)
		})
	}

	if cfg.Hardware.Watchdog.Enabled {
		wd, wdErr := watchdog.Open(cfg.Hardware.Watchdog.Path)
		if wdErr != nil {
			return wdErr
		}
		defer wd.Close()
		interval := time.Duration(cfg.Hardware.Watchdog.Interval) * time.Millisecond
		tasks = append(tasks, func(ctx context.Context) error { return watchdog.Feed(ctx, wd, interval) })
	}

	in := &ingress{commands: commands, notes: notes, audio: audioOut, loc: loc, started: time.Now(), logger: log}

	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGALRM)
	defer signal.Stop(sigs)
	tasks = append(tasks, func(ctx context.Context) error { return in.signals(ctx, sigs) })

	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error { return task(gctx) })
	}

	if mqttClient != nil {
		if subErr := mqttClient.Subscribe(mqtt.Topics{}.Command(), byte(cfg.MQTT.QoS), in.handleMQTT); subErr != nil {
			log.Error("subscribing to commands failed", "error", subErr)
		}
	}

	log.Info("initialisation complete", "tasks", len(tasks))

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		log.Info("opensesame stopped")
		return nil
	}
	return err
}

// getConfigPath returns OPENSESAME_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("OPENSESAME_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// newPlayer creates the audio player and, if configured, the SSH client
// that passes fire alarms on to the peer controller.
func newPlayer(cfg *config.Config, log *logging.Logger) (*audio.Player, error) {
	opts := audio.Options{
		Binary:       cfg.Audio.Player,
		Bell:         cfg.Audio.Bell,
		Alarm:        cfg.Audio.Alarm,
		AlarmCommand: cfg.Remote.AlarmCommand,
		Logger:       log.With("component", "audio"),
	}
	if cfg.Remote.Enabled {
		peer, err := remote.New(cfg.Remote)
		if err != nil {
			return nil, fmt.Errorf("configuring remote peer: %w", err)
		}
		opts.Remote = peer
	}
	return audio.New(opts), nil
}
