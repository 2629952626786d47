package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.elastic.co/apm/module/apmechov4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/plxtools/plx-data-service/internal/api"
	"github.com/plxtools/plx-data-service/internal/cache"
	"github.com/plxtools/plx-data-service/internal/config"
)

func Run() {
	cfg := ParseCLI()

	logger := SetupLogger(cfg.Debug)
	defer logger.Sync()

	cfg.LocationDetails = LoadLocations(logger, cfg.ConfigFile)

	plxapi := api.NewPlxAPI(&cfg, logger)

	if cfg.UseCache {
		SetupCache(plxapi.Cache, cfg.CachePollingInterval, cfg.CacheMaxBytes, logger)
	}

	e := SetupServer(plxapi)

	address := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	go func() {
		if err := e.Start(address); err != nil {
			logger.Info("shutting down the server")
		}
	}()

	// Wait for interrupt, then give in-flight requests 10 seconds to drain.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}
}

func ParseCLI() config.Config {
	cfg := config.Config{}
	pflag.StringVarP(&cfg.Host, "host", "i", "0.0.0.0", "Host where the server will run")
	pflag.IntVarP(&cfg.Port, "port", "p", 5075, "Port where the server will run")
	pflag.BoolVarP(&cfg.Debug, "debug", "d", false, "Whether or not to enable debug logging")
	pflag.StringVarP(&cfg.ConfigFile, "config", "c", "./pdsConfig.json", "Location of the locations config file")
	pflag.BoolVarP(&cfg.UseCache, "use-cache", "u", true, "Use local file cache. Can be disabled for certain cases like testing.")
	pflag.StringVarP(&cfg.CacheLocation, "cache-location", "C", "./pdscache/", "Where the cache will be stored")
	pflag.IntVarP(&cfg.CachePollingInterval, "cache-polling-interval", "P", 60, "How often to check the cache (in seconds)")
	pflag.Int64VarP(&cfg.CacheMaxBytes, "cache-max-bytes", "m", 1000000000, "How large to allow the cache to be")
	pflag.Parse()

	return cfg
}

// SetupLogger sets up the zap.Logger structured logger.
func SetupLogger(debug bool) *zap.Logger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	logger, logErr := zap.Config{
		Encoding:    "json",
		Level:       zap.NewAtomicLevelAt(level),
		OutputPaths: []string{"stdout"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:  "message",
			LevelKey:    "level",
			EncodeLevel: zapcore.CapitalLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.ISO8601TimeEncoder,

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,
		},
	}.Build()
	if logErr != nil {
		log.Fatalf("Couldn't setup logger: %v", logErr)
	}

	return logger
}

// LoadLocations reads the locations config file and returns its
// LocationDetails section.
func LoadLocations(logger *zap.Logger, configFile string) []config.Location {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		logger.Fatal(
			"Error reading config file",
			zap.String("config_file", configFile),
			zap.Error(err),
		)
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		logger.Fatal(
			"Error decoding config file",
			zap.String("config_file", configFile),
			zap.Error(err),
		)
	}
	return cfg.LocationDetails
}

// SetupCache creates the cache directory tree and kicks off one monitor
// goroutine per cache subdirectory.
func SetupCache(c *cache.Cache, pollingIntervalSeconds int, maxBytes int64, logger *zap.Logger) {
	if err := c.Setup(); err != nil {
		logger.Error("error creating cache directories", zap.Error(err))
		return
	}
	interval := time.Duration(pollingIntervalSeconds) * time.Second
	go c.Monitor(cache.FetchedDir, interval, maxBytes)
	go c.Monitor(cache.WindowsDir, interval, maxBytes)
}

func SetupServer(plxapi *api.API) *echo.Echo {
	e := echo.New()

	e.Debug = plxapi.Cfg.Debug

	// Setup Middleware
	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(apmechov4.Middleware())

	// File-system routes
	e.GET("/plx/fs", plxapi.GetFileLocations)
	e.GET("/plx/fs/:location/*", plxapi.GetDirectoryContents)

	// Recording metadata routes
	e.GET("/plx/hdr/:location/*", plxapi.GetPlxHeader)
	e.GET("/plx/summary/:location/*", plxapi.GetSummary)
	e.GET("/plx/frames/:type/:location/*", plxapi.GetFrames)
	e.GET("/plx/check/:type/:location/*", plxapi.GetCheckFrames)

	// Data extraction routes
	e.GET("/plx/cont/:type/:tstart/:tend/:location/*", plxapi.GetContinuous)
	e.GET("/plx/discrete/:type/:tstart/:tend/:location/*", plxapi.GetDiscrete)

	// Add Prometheus as middleware for metrics gathering
	p := prometheus.NewPrometheus("plx_data_service", nil)
	p.Use(e)

	return e
}
