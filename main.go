package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/rworker/cmd"
	"github.com/smazurov/rworker/internal/api"
	"github.com/smazurov/rworker/internal/channel"
	"github.com/smazurov/rworker/internal/config"
	"github.com/smazurov/rworker/internal/events"
	"github.com/smazurov/rworker/internal/logging"
	"github.com/smazurov/rworker/internal/metrics/exporters"
	"github.com/smazurov/rworker/internal/pool"
	"github.com/smazurov/rworker/internal/process"
	"github.com/smazurov/rworker/internal/systemd"
	"github.com/smazurov/rworker/internal/worker"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Address to listen on" short:"p" default:"127.0.0.1:8090" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings, both empty disables auth
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Pool settings
	PoolPrepared        int    `help:"Workers kept prepared" default:"0" toml:"pool.prepared" env:"POOL_PREPARED"`
	PoolUseCluster      string `help:"Spawn strategy (auto, true, false)" default:"auto" toml:"pool.use_cluster" env:"POOL_USE_CLUSTER"`
	PoolCwd             string `help:"Working directory of prepared workers" default:"" toml:"pool.cwd" env:"POOL_CWD"`
	PoolShutdownTimeout string `help:"How long shutdown waits for workers" default:"10s" toml:"pool.shutdown_timeout" env:"POOL_SHUTDOWN_TIMEOUT"`

	// Channel settings
	ChannelTransport string `help:"Worker channel transport (pipe, nats)" default:"pipe" toml:"channel.transport" env:"CHANNEL_TRANSPORT"`
	NatsHost         string `help:"Embedded NATS listen host" default:"127.0.0.1" toml:"nats.host" env:"NATS_HOST"`
	NatsPort         int    `help:"Embedded NATS listen port" default:"4222" toml:"nats.port" env:"NATS_PORT"`
	NatsEndpoint     string `help:"External NATS server url, skips the embedded server" default:"" toml:"nats.url" env:"NATS_URL"`

	// Observability settings
	MetricsEnabled bool `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`
	MetricsSSE     bool `help:"Publish pool stats on the event stream" default:"true" toml:"metrics.sse_enabled" env:"METRICS_SSE_ENABLED"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingPool    string `help:"Pool logging level" default:"info" toml:"logging.pool" env:"LOGGING_POOL"`
	LoggingProcess string `help:"Worker process logging level" default:"info" toml:"logging.process" env:"LOGGING_PROCESS"`
	LoggingCluster string `help:"Cluster logging level" default:"info" toml:"logging.cluster" env:"LOGGING_CLUSTER"`
	LoggingChannel string `help:"Channel logging level" default:"info" toml:"logging.channel" env:"LOGGING_CHANNEL"`
	LoggingNats    string `help:"Embedded NATS logging level" default:"warn" toml:"logging.nats" env:"LOGGING_NATS"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP    string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingConfig  string `help:"Config watcher logging level" default:"info" toml:"logging.config" env:"LOGGING_CONFIG"`
}

func (o *Options) poolConfig() config.PoolConfig {
	return config.PoolConfig{
		Prepared:        o.PoolPrepared,
		UseCluster:      o.PoolUseCluster,
		Cwd:             o.PoolCwd,
		ShutdownTimeout: o.PoolShutdownTimeout,
	}
}

func main() {
	// Processes forked by the pool run the same binary
	if inv, ok := worker.Detect(os.Args[1:]); ok {
		os.Exit(runWorker(inv))
	}

	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"pool":    opts.LoggingPool,
				"process": opts.LoggingProcess,
				"cluster": opts.LoggingCluster,
				"channel": opts.LoggingChannel,
				"nats":    opts.LoggingNats,
				"api":     opts.LoggingAPI,
				"http":    opts.LoggingHTTP,
				"config":  opts.LoggingConfig,
			},
		})

		logger := logging.GetLogger("main")

		poolConfig := opts.poolConfig()
		if err := poolConfig.Validate(); err != nil {
			logger.Error("Invalid pool configuration", "error", err)
			os.Exit(1)
		}

		if opts.AuthUsername == "" && !isLoopback(opts.Port) {
			logger.Warn("API listens beyond loopback without auth, anyone reaching it can spawn workers", "addr", opts.Port)
		}

		host, err := process.CurrentHost()
		if err != nil {
			logger.Error("Failed to inspect host process", "error", err)
			os.Exit(1)
		}

		eventBus := events.New()
		notifier := systemd.NewNotifier()

		var natsServer *channel.Server
		var natsTransport *channel.NATSTransport
		var transport channel.Transport

		switch opts.ChannelTransport {
		case "nats":
			url := opts.NatsEndpoint
			if url == "" {
				natsServer = channel.NewServer(channel.ServerOptions{
					Host:   opts.NatsHost,
					Port:   opts.NatsPort,
					Logger: logging.GetLogger("nats"),
				})
				if startErr := natsServer.Start(); startErr != nil {
					logger.Error("Failed to start embedded NATS server", "error", startErr)
					os.Exit(1)
				}
				url = natsServer.ClientURL()
			}
			natsTransport, err = channel.NewNATSTransport(url, logging.GetLogger("channel"))
			if err != nil {
				logger.Error("Failed to connect channel transport", "error", err)
				os.Exit(1)
			}
			transport = natsTransport
		default:
			transport = channel.NewPipeTransport(logging.GetLogger("channel"))
		}

		launcher := process.NewExecLauncher(logging.GetLogger("process"), nil)
		cluster := process.NewCluster(launcher, host.IsClusterWorker, logging.GetLogger("cluster"))

		factory := pool.NewFactory(&pool.FactoryOptions{
			Host:      host,
			Direct:    process.NewDirectFork(launcher, logging.GetLogger("process")),
			Cluster:   process.NewClusterFork(cluster, logging.GetLogger("cluster")),
			Transport: transport,
			Logger:    logging.GetLogger("pool"),
		})
		manager := pool.NewManager(&pool.ManagerOptions{
			Factory: factory,
			Events:  eventBus,
			Logger:  logging.GetLogger("pool"),
		})

		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			Manager:      manager,
			EventBus:     eventBus,
		}
		if opts.MetricsEnabled {
			apiOpts.PrometheusHandler = exporters.HTTPHandler()
		}
		server := api.NewServer(apiOpts)

		var sseExporter *exporters.SSEExporter
		if opts.MetricsSSE {
			sseExporter = exporters.NewSSEExporter(eventBus)
		}

		configLogger := logging.GetLogger("config")
		poolWatcher := config.NewWatcher(opts.Config, config.LoadPoolConfig, configLogger)
		poolWatcher.OnReload(func(pc config.PoolConfig) {
			spawned, reloadErr := manager.EnsurePrepared(context.Background(), pc.Prepared, pc.ForkOptions())
			if reloadErr != nil {
				configLogger.Warn("Failed to top up prepared pool", "target", pc.Prepared, "error", reloadErr)
				return
			}
			configLogger.Info("Pool configuration reloaded", "prepared", pc.Prepared, "spawned", spawned)
		})

		loggingWatcher := config.NewWatcher(opts.Config, func(path string) (logging.Config, error) {
			return config.LoadLoggingConfig(path), nil
		}, configLogger)
		loggingWatcher.OnReload(func(lc logging.Config) {
			logging.SetLevels(lc.Level, lc.Modules)
		})

		hooks.OnStart(func() {
			if poolConfig.Prepared > 0 {
				if prepErr := manager.Prepare(context.Background(), poolConfig.Prepared, poolConfig.ForkOptions()); prepErr != nil {
					logger.Error("Failed to prepare workers", "count", poolConfig.Prepared, "error", prepErr)
				}
			}

			if sseExporter != nil {
				sseExporter.Start(context.Background())
			}

			for _, w := range []interface{ Start() error }{poolWatcher, loggingWatcher} {
				if watchErr := w.Start(); watchErr != nil {
					logger.Warn("Config hot reload disabled", "path", opts.Config, "error", watchErr)
				}
			}

			serveErr := make(chan error, 1)
			go func() {
				serveErr <- server.Start(opts.Port)
			}()

			if _, notifyErr := notifier.Ready(); notifyErr != nil {
				logger.Warn("Failed to notify systemd", "error", notifyErr)
			}
			_, _ = notifier.Status("%d workers prepared", manager.PreparedCount())

			if startErr := <-serveErr; startErr != nil {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if _, notifyErr := notifier.Stopping(); notifyErr != nil {
				logger.Warn("Failed to notify systemd", "error", notifyErr)
			}

			_ = poolWatcher.Stop()
			_ = loggingWatcher.Stop()
			if sseExporter != nil {
				sseExporter.Stop()
			}

			ctx, cancel := context.WithTimeout(context.Background(), poolConfig.Timeout())
			defer cancel()

			if stopErr := server.Stop(ctx); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if shutdownErr := manager.Shutdown(ctx); shutdownErr != nil {
				logger.Warn("Workers still running after shutdown timeout", "error", shutdownErr)
			}

			if natsTransport != nil {
				_ = natsTransport.Close()
			}
			if natsServer != nil {
				natsServer.Stop()
			}
		})
	})

	cli.Root().Use = "rworker"
	cli.Root().AddCommand(cmd.CreateCheckConfigCmd())
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	cli.Run()
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// runWorker serves the channel of a forked worker until the parent closes
// it or terminates the process.
func runWorker(inv worker.Invocation) int {
	level := os.Getenv(config.EnvPrefix + "LOGGING_LEVEL")
	if level == "" {
		level = "info"
	}
	logging.Initialize(logging.Config{Level: level, Format: "text"})
	logger := logging.GetLogger("worker").With("process_id", inv.ID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	if err := worker.Run(ctx, inv, logger); err != nil {
		logger.Error("Worker failed", "error", err)
		return 1
	}
	return 0
}
