//go:build !tinygo

package hal

import "context"

// NewFanControlHal returns a HAL for the fan controller board with the given
// configuration.
func NewFanControlHal(ctx context.Context, opts FanControlHalOpts) (FanControlHal, error) {
	if opts.Simulated {
		return NewSimulatedHal(), nil
	}
	return newPlatformHal(ctx, opts)
}
