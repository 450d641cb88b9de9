package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/airmon/cmd/airmon/console"
	"github.com/mklimuk/airmon/pkg/config"
	"github.com/mklimuk/airmon/poll"
	"github.com/mklimuk/airmon/sink"
)

var pollCmd = cli.Command{
	Name:  "poll",
	Usage: "poll the configured sensors and forward readings",
	Flags: append(busFlags(),
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to the YAML configuration",
			EnvVars: []string{"AIRMON_CONFIG"},
		},
		&cli.DurationFlag{Name: "interval", Usage: "time between polling cycles"},
		&cli.IntFlag{Name: "max-invalid", Usage: "stop after this many consecutive invalid readings of one sensor (0 disables)"},
		&cli.BoolFlag{Name: "legacy-invalid", Usage: "forward -1 for invalid values"},
		&cli.StringFlag{Name: "db", Usage: "SQLite database path"},
		&cli.StringFlag{Name: "listen", Usage: "address to expose /metrics on, e.g. :9100"},
	),
	Action: func(c *cli.Context) error {
		cfg, err := pollConfig(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		if len(cfg.Sensors) == 0 {
			return console.Exit(1, "no sensors configured")
		}

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		b, err := openBus(ctx, cfg)
		if err != nil {
			return console.Exit(1, "could not open bus: %s", console.Red(err))
		}
		defer b.Close()

		var sensors []poll.Sensor
		for _, sc := range cfg.Sensors {
			s, err := newSensor(b, b.id, sc)
			if err != nil {
				return console.Exit(1, "%s", console.Red(err))
			}
			if err := s.Initialize(ctx); err != nil {
				return console.Exit(1, "sensor initialization error: %s", console.Red(err))
			}
			sensors = append(sensors, s)
		}

		sinks, closeSinks, err := buildSinks(ctx, cfg.Sinks)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer closeSinks()

		loop := poll.NewLoop(sinks, sensors,
			poll.WithInterval(cfg.Interval),
			poll.WithMaxConsecutiveInvalid(cfg.MaxConsecutiveInvalid),
			poll.WithLegacyInvalid(cfg.LegacyInvalid),
		)
		slog.Info("polling", "sensors", len(sensors), "interval", cfg.Interval, "bus", b.id)
		if err := loop.Run(ctx); err != nil {
			return console.Exit(3, "polling stopped: %s", console.Red(err))
		}
		return nil
	},
}

func pollConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
	}
	applyBusFlags(c, &cfg)
	if c.IsSet("interval") {
		cfg.Interval = c.Duration("interval")
	}
	if c.IsSet("max-invalid") {
		cfg.MaxConsecutiveInvalid = c.Int("max-invalid")
	}
	if c.IsSet("legacy-invalid") {
		cfg.LegacyInvalid = c.Bool("legacy-invalid")
	}
	if c.IsSet("db") {
		cfg.Sinks.Database = c.String("db")
	}
	if c.IsSet("listen") {
		cfg.Sinks.Listen = c.String("listen")
	}
	return cfg, cfg.Validate()
}

func buildSinks(ctx context.Context, cfg config.Sinks) (poll.MultiSink, func(), error) {
	var sinks poll.MultiSink
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	if cfg.Log {
		sinks = append(sinks, poll.LogSink{})
	}
	if cfg.Database != "" {
		db, err := sink.OpenSQLite(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, db)
		closers = append(closers, func() {
			if err := db.Close(); err != nil {
				slog.Warn("could not close database", "error", err)
			}
		})
	}
	if cfg.Listen != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewBuildInfoCollector())
		p, err := sink.NewPrometheus(reg, cfg.Namespace)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("could not register metrics: %w", err)
		}
		sinks = append(sinks, p)
		srv := serveMetrics(cfg.Listen, reg)
		closers = append(closers, func() {
			shutdown, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdown)
		})
	}
	return sinks, closeAll, nil
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}
