package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	pkgconfig "github.com/tendant/simple-deviceguard/pkg/config"
	deviceapi "github.com/tendant/simple-deviceguard/pkg/device/api"
)

// Config holds all the dependencies and handlers needed to setup routes
type Config struct {
	// Prefix configuration for all routes
	PrefixConfig pkgconfig.PrefixConfig

	// CORS applied to the verification routes
	CORSConfig pkgconfig.CORSConfig

	DeviceHandle *deviceapi.DeviceHandler

	// Optional: served at PrefixConfig.Metrics when set
	MetricsHandler http.Handler
}

// SetupRoutes mounts the verification routes and the metrics endpoint on the provided router
func SetupRoutes(router chi.Router, cfg Config) {
	if cfg.MetricsHandler != nil && cfg.PrefixConfig.Metrics != "" {
		router.Handle(cfg.PrefixConfig.Metrics, cfg.MetricsHandler)
	}

	router.Group(func(r chi.Router) {
		if cfg.CORSConfig.Enabled {
			r.Use(cors.Handler(corsOptions(cfg.CORSConfig)))
		}
		r.Mount(cfg.PrefixConfig.Device, deviceapi.Handler(cfg.DeviceHandle))
	})

	slog.Info("Device routes mounted", "prefix", cfg.PrefixConfig.Device, "cors", cfg.CORSConfig.Enabled)
}

func corsOptions(c pkgconfig.CORSConfig) cors.Options {
	return cors.Options{
		AllowedOrigins:   c.AllowedOrigins,
		AllowedMethods:   c.AllowedMethods,
		AllowedHeaders:   c.AllowedHeaders,
		AllowCredentials: c.AllowCredentials,
		MaxAge:           c.MaxAge,
	}
}
