package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/openfanctl/pcfan-agent/pkg/fan"
)

func init() {
	cmdFan.AddCommand(cmdFanSet)
	cmdFan.AddCommand(cmdFanRPM)
	rootCmd.AddCommand(cmdFan)
}

var (
	cmdFan = &cobra.Command{
		Use:   "fan",
		Short: "Fan-related commands for the probe board",
	}

	cmdFanSet = &cobra.Command{
		Use:     "set <percent>",
		Example: "fanctl fan set 50",
		Short:   "Set the fan power in percent",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := clientFromContext(ctx)

			percent, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return err
			}
			power, err := fan.NewPower(percent)
			if err != nil {
				return err
			}

			return client.SetFanPower(ctx, power)
		},
	}

	cmdFanRPM = &cobra.Command{
		Use:   "rpm",
		Short: "Print the fan speed reported by the probe",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			client := clientFromContext(ctx)

			rpm, err := awaitTelemetry(ctx, client.FanRPM)
			if err != nil {
				return err
			}
			fmt.Printf("%.0f RPM\n", rpm)
			return nil
		},
	}
)
