package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfanctl/pcfan-agent/pkg/probe"
)

func init() {
	rootCmd.AddCommand(cmdRead)
}

var cmdRead = &cobra.Command{
	Use:   "read",
	Short: "Print the latest sensor reading reported by the probe",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		client := clientFromContext(ctx)

		reading, err := awaitTelemetry(ctx, client.Reading)
		if err != nil {
			return err
		}
		fmt.Printf("temperature: %.1f°C\nhumidity: %.1f%%\n", reading.Temperature, reading.Humidity)

		// The raw payload is best effort; old probe firmware does not report it
		payload, err := client.RawPayload()
		if err != nil {
			if errors.Is(err, probe.ErrNoTelemetry) {
				return nil
			}
			return err
		}
		fmt.Printf("raw payload: %#02x %#02x %#02x %#02x %#02x\n",
			payload[0], payload[1], payload[2], payload[3], payload[4])
		return nil
	},
}
