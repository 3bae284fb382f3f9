// Command hive starts a single node: it loads configuration from an
// optional TOML file plus the process environment, launches the logger
// service, brings the worker pool and bootstrap service up, serves the
// diagnostics surface if a listen address was configured, and waits for
// a termination signal before shutting down cleanly.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"go.uber.org/zap"

	"github.com/hiveworks/hive"
	"github.com/hiveworks/hive/config"
	"github.com/hiveworks/hive/diag"
	"github.com/hiveworks/hive/logservice"
)

type fileConfig struct {
	Threads       int    `toml:"threads" default:"8" env:"HIVE_THREADS"`
	Harbor        int    `toml:"harbor" default:"1" env:"HIVE_HARBOR"`
	Bootstrap     string `toml:"bootstrap" env:"HIVE_BOOTSTRAP"`
	LoggerPath    string `toml:"logger_path" env:"HIVE_LOGGER_PATH"`
	LogServiceMod string `toml:"log_service" default:"logger" env:"HIVE_LOG_SERVICE"`
	Profile       bool   `toml:"profile" default:"true" env:"HIVE_PROFILE"`
	CPath         string `toml:"cpath" env:"HIVE_CPATH"`
	DiagListen    string `toml:"diag_listen" env:"HIVE_DIAG_LISTEN"`
	DiagReport    string `toml:"diag_report" default:"@every 30s" env:"HIVE_DIAG_REPORT"`
}

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	zl, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		return 1
	}
	defer zl.Sync()
	logger := hive.NewZapLogger(zl)

	loader := config.NewLoader()
	if *configPath != "" {
		loader.AddFileSource(*configPath, config.KindTOML, 10)
	}
	loader.AddEnvSource("HIVE", 20)

	fc := &fileConfig{}
	if err := loader.Load(context.Background(), fc); err != nil {
		logger.Error("config load failed", "error", err)
		return 1
	}

	cfg := hive.Config{
		Threads:       fc.Threads,
		Harbor:        fc.Harbor,
		Bootstrap:     fc.Bootstrap,
		LoggerPath:    fc.LoggerPath,
		LogServiceMod: fc.LogServiceMod,
		Profile:       fc.Profile,
		CPath:         fc.CPath,
	}

	node := hive.New(cfg, nil, logger)
	node.Events().Subscribe(func(evt cloudevents.Event) {
		logger.Info("lifecycle event", "type", evt.Type(), "id", evt.ID())
	})

	logCfg := logservice.DefaultConfig()
	if fc.LoggerPath != "" {
		logCfg.Target = "file"
		logCfg.Path = fc.LoggerPath
	}
	logMod := logservice.Module(logCfg)
	if err := node.RegisterModule(logMod); err != nil {
		logger.Error("registering logger module", "error", err)
		return 1
	}
	if _, _, err := node.Launch(logMod.Name); err != nil {
		logger.Error("launching logger service", "error", err)
		return 1
	}

	if err := node.Run(nil); err != nil {
		logger.Error("node startup failed", "error", err)
		return 1
	}

	server := diag.New(node)
	if fc.DiagReport != "" {
		if _, err := server.StartReporting(fc.DiagReport); err != nil {
			logger.Warn("diag reporting disabled", "error", err)
		}
		defer server.StopReporting()
	}

	var httpServer *http.Server
	if fc.DiagListen != "" {
		httpServer = &http.Server{Addr: fc.DiagListen, Handler: server.Handler()}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("diag server failed", "error", err)
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = httpServer.Shutdown(ctx)
		cancel()
	}
	node.Registry().RetireAll()
	node.Shutdown()
	return 0
}
