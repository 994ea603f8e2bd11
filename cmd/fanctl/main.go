package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfanctl/pcfan-agent/pkg/probe"
)

type probeClientContextKey int

const defaultProbeClientContextKey probeClientContextKey = 0

var (
	portName string
	timeout  time.Duration
)

func init() {
	rootCmd.PersistentFlags().
		StringVar(&portName, "port", "/dev/ttyACM0", "serial port of the fan probe")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "timeout for probe requests")
}

func clientIntoContext(ctx context.Context, client *probe.Client) context.Context {
	return context.WithValue(ctx, defaultProbeClientContextKey, client)
}

func clientFromContext(ctx context.Context) *probe.Client {
	client, ok := ctx.Value(defaultProbeClientContextKey).(*probe.Client)
	if !ok {
		panic("probe client not found in context")
	}
	return client
}

// awaitTelemetry polls a cached-telemetry accessor until the probe has
// reported a value, or the context runs out.
func awaitTelemetry[T any](ctx context.Context, fetch func() (T, error)) (T, error) {
	for {
		value, err := fetch()
		if err == nil || !errors.Is(err, probe.ErrNoTelemetry) {
			return value, err
		}
		select {
		case <-ctx.Done():
			return value, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "fanctl",
	Short: "fanctl talks to a pcfan probe board over its serial link",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		origCtx := cmd.Context()

		ctx, cancelCtx := context.WithTimeout(origCtx, timeout)

		// setup signal handler channels
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			// Wait for context cancel or signal
			select {
			case <-ctx.Done():
			case <-sigs:
				// On signal, cancel context
				cancelCtx()
			}
		}()

		client, err := probe.Dial(portName)
		if err != nil {
			return err
		}
		go func() {
			_ = client.Run(ctx)
		}()

		cmd.SetContext(clientIntoContext(ctx, client))
		return nil
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
