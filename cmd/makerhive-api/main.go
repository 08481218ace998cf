package main

/*
Important principles: stateless as much as possible

Incoming REST call --> http.go
There is one handler per route (v1/controllers). It parses the parameters and
calls the business logic (v1/services), which talks to whichever backend the
store selector picked (internal/docstore).
*/

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.elastic.co/ecszap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/makerhive/makerhive/internal/docstore"
)

var buildtime string

func main() {
	initLogging()

	zap.S().Infof("This is makerhive-api build date: %s", buildtime)

	cfg := docstore.ConfigFromEnv()
	store, err := docstore.Connect(context.Background(), cfg)
	if err != nil {
		zap.S().Fatalf("Failed to connect to a storage backend: %s", err)
	}
	zap.S().Infof("Connected to %s backend", store.Kind())

	initPrometheus()
	initHealthCheck(store)

	go SetupRestAPI(store)

	awaitShutdown(store)
}

func initLogging() {
	logLevel := os.Getenv("LOGGING_LEVEL")
	encoderConfig := ecszap.NewDefaultEncoderConfig()
	var core zapcore.Core
	switch logLevel {
	case "DEVELOPMENT":
		core = ecszap.NewCore(encoderConfig, os.Stdout, zap.DebugLevel)
	default:
		core = ecszap.NewCore(encoderConfig, os.Stdout, zap.InfoLevel)
	}
	logger := zap.New(core, zap.AddCaller())
	zap.ReplaceGlobals(logger)
}

func initPrometheus() {
	metricsPath := "/metrics"
	metricsPort := ":2112"
	zap.S().Debugf("Setting up metrics %s %v", metricsPath, metricsPort)

	http.Handle(metricsPath, promhttp.Handler())
	go func() {
		/* #nosec G114 */
		err := http.ListenAndServe(metricsPort, nil)
		if err != nil {
			zap.S().Errorf("Error starting metrics: %s", err)
		}
	}()
}

func initHealthCheck(store docstore.Store) {
	zap.S().Debugf("Setting up healthcheck")

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(1000))
	health.AddReadinessCheck("store", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return store.Ping(ctx)
	})
	go func() {
		/* #nosec G114 */
		err := http.ListenAndServe("0.0.0.0:8086", health)
		if err != nil {
			zap.S().Errorf("Error starting healthcheck: %s", err)
		}
	}()
}

func awaitShutdown(store docstore.Store) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigs
	zap.S().Infof("Received SIG %v", sig)

	zap.S().Debugf("Closing store")
	if err := store.Close(context.Background()); err != nil {
		zap.S().Warnf("Error closing store: %s", err)
	}
	_ = zap.L().Sync()
	os.Exit(0)
}
