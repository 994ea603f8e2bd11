package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openfanctl/pcfan-agent/internal/agent"
	"github.com/openfanctl/pcfan-agent/pkg/log"
)

var (
	configFile  string
	metricsAddr string
	debug       bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", ":9666", "listen address of the prometheus endpoint")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

var rootCmd = &cobra.Command{
	Use:   "pcfan-agent",
	Short: "pcfan-agent drives a 4-wire PWM fan along a calibrated curve, fed by an ambient temperature sensor",
	RunE:  runAgent,
}

// loadConfig merges defaults, the config file and PCFAN_* environment
// variables into the agent configuration.
func loadConfig() (agent.FanAgentConfig, error) {
	var cfg agent.FanAgentConfig

	v := viper.New()
	v.SetConfigName("pcfan-agent")
	v.AddConfigPath("/etc/pcfan-agent")
	v.AddConfigPath(".")
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	v.SetEnvPrefix("pcfan")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("sensor", agent.SensorDHT11)
	v.SetDefault("tick_interval", "5s")
	v.SetDefault("critical_temperature_threshold", 60)
	v.SetDefault("curve", []map[string]any{
		{"temperature": 20, "percent": 30},
		{"temperature": 65, "percent": 100},
	})
	v.SetDefault("probe_port", "/dev/ttyACM0")
	v.SetDefault("hal.sensor_line_pin", 4)
	v.SetDefault("hal.tach_pin", 17)
	v.SetDefault("hal.i2c_device", "/dev/i2c-1")
	v.SetDefault("hal.simulated", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func runAgent(cmd *cobra.Command, _ []string) error {
	// setup logger
	zapCfg := zap.NewProductionConfig()
	if debug {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapLogger := zap.Must(zapCfg.Build()).With(zap.String("app", "pcfan-agent"))
	defer func() { _ = zapLogger.Sync() }()
	_ = zap.ReplaceGlobals(zapLogger.With(zap.String("scope", "global")))

	baseCtx := log.IntoContext(cmd.Context(), zapLogger)
	ctx, stop := signal.NotifyContext(baseCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		log.FromContext(ctx).Error("Failed to load configuration", zap.Error(err))
		return err
	}

	fanAgent, err := agent.NewFanAgent(ctx, cfg)
	if err != nil {
		log.FromContext(ctx).Error("Failed to create agent", zap.Error(err))
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)

	// Run agent
	eg.Go(func() error {
		if err := fanAgent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.FromContext(ctx).Error("Agent failed", zap.Error(err))
			return err
		}
		return nil
	})

	// Serve prometheus endpoint
	promHandler := http.NewServeMux()
	promHandler.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: metricsAddr, Handler: promHandler}
	eg.Go(func() error {
		log.FromContext(ctx).Info("Serving metrics", zap.String("addr", metricsAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.FromContext(baseCtx).Info("Exiting")
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
