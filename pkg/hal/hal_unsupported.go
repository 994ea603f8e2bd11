//go:build !linux && !tinygo

package hal

import (
	"context"
	"errors"
)

func newPlatformHal(_ context.Context, _ FanControlHalOpts) (FanControlHal, error) {
	return nil, errors.New("no hardware support on this platform, use the simulated hal")
}
