// Package main runs the device verification service with an in-memory registry.
// All registrations are lost when the process stops.
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-deviceguard/pkg/config"
	"github.com/tendant/simple-deviceguard/pkg/device"
	deviceapi "github.com/tendant/simple-deviceguard/pkg/device/api"
	"github.com/tendant/simple-deviceguard/pkg/router"
)

type Config struct {
	LogLevel     string `env:"LOG_LEVEL" env-default:"info"`
	DeviceConfig config.DeviceConfig

	// Server
	AppConfig app.AppConfig
}

func main() {
	// Load .env before reading LOG_LEVEL
	loadEnvFile()

	cfg := Config{}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: false,
		Level:     parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	corsConfig := config.NewCORSConfigFromEnv()
	prefixConfig := config.LoadPrefixConfig()

	if err := config.Validate(
		cfg.DeviceConfig.Validate,
		corsConfig.Validate,
		prefixConfig.Validate,
	); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting Device Verification Service")
	slog.Info(strings.Repeat("=", 60))

	deviceRepo := device.NewInMemDeviceRepository()
	deviceService := device.NewDeviceService(
		deviceRepo,
		device.WithMaxDevicesPerUser(cfg.DeviceConfig.MaxDevicesPerUser),
		device.WithReuseWindow(cfg.DeviceConfig.ReuseWindow),
		device.WithMetrics(device.NewMetrics(prometheus.DefaultRegisterer)),
	)
	deviceHandle := deviceapi.NewDeviceHandler(deviceService)

	// Setup HTTP server
	server := newApp(cfg.AppConfig)
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	router.SetupRoutes(server.R, router.Config{
		PrefixConfig:   prefixConfig,
		CORSConfig:     corsConfig,
		DeviceHandle:   deviceHandle,
		MetricsHandler: promhttp.Handler(),
	})

	slog.Info("Device Verification Service Ready",
		"maxDevicesPerUser", cfg.DeviceConfig.MaxDevicesPerUser,
		"reuseWindow", cfg.DeviceConfig.ReuseWindow,
		"devicePrefix", prefixConfig.Device,
		"metricsPrefix", prefixConfig.Metrics)
	slog.Info(strings.Repeat("=", 60))

	server.Run()
}

// newApp builds the chi-demo app without its global CORS handler, which would
// answer preflights before the CORS_* settings applied by router.SetupRoutes.
func newApp(appConfig app.AppConfig) *app.App {
	return app.NewApp(
		app.WithAppConfig(appConfig),
		app.WithMetrics(appConfig.Metrics.Enabled),
		app.WithReqLogger(app.DefaultHttpLogger()),
	)
}

func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// loadEnvFile loads .env from the executable's directory, falling back to the working directory
func loadEnvFile() {
	execPath, err := os.Executable()
	if err != nil {
		return
	}

	envFile := filepath.Join(filepath.Dir(execPath), ".env")
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		cwd, _ := os.Getwd()
		envFile = filepath.Join(cwd, ".env")
	}

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		slog.Debug("No .env file found (using environment variables or defaults)")
		return
	}

	slog.Info("Loading configuration from .env file", "path", envFile)
	if err := godotenv.Load(envFile); err != nil {
		slog.Warn("Failed to load .env file", "error", err)
	}
}
