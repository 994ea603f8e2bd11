//go:build tinygo

package main

import (
	"context"
	"fmt"
	"machine"
	"sync/atomic"
	"time"

	"github.com/openfanctl/pcfan-agent/pkg/hal"
	"github.com/openfanctl/pcfan-agent/pkg/util"
)

// pinLine implements hal.Line on a machine pin, reconfiguring direction as
// the protocol alternates between driving and sampling.
type pinLine struct {
	pin   machine.Pin
	input bool
	clock util.Clock
}

func newPinLine(pin machine.Pin) *pinLine {
	pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return &pinLine{pin: pin, input: true, clock: util.RealClock{}}
}

func (l *pinLine) DriveLow() error {
	l.asOutput()
	l.pin.Low()
	return nil
}

func (l *pinLine) DriveHigh() error {
	l.asOutput()
	l.pin.High()
	return nil
}

func (l *pinLine) asOutput() {
	if l.input {
		l.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		l.input = false
	}
}

func (l *pinLine) ReadLevel() (hal.Level, error) {
	if !l.input {
		l.pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
		l.input = true
	}
	return hal.Level(l.pin.Get()), nil
}

func (l *pinLine) WaitForLevel(ctx context.Context, level hal.Level, timeout time.Duration) (time.Duration, error) {
	return util.WaitFor(ctx, l.clock, timeout, func() (bool, error) {
		current, err := l.ReadLevel()
		if err != nil {
			return false, err
		}
		return current == level, nil
	})
}

// tachCounter counts falling edges on the tachometer pin from the pin
// interrupt handler.
type tachCounter struct {
	pin   machine.Pin
	count atomic.Uint32
}

func newTachCounter(pin machine.Pin) (*tachCounter, error) {
	t := &tachCounter{pin: pin}
	pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	if err := pin.SetInterrupt(machine.PinFalling, func(machine.Pin) {
		t.count.Add(1)
	}); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *tachCounter) Reset() error {
	t.count.Store(0)
	return nil
}

func (t *tachCounter) Count() (uint32, error) {
	return t.count.Load(), nil
}

// pwmSlice is the subset of the machine PWM peripheral the fan output needs.
type pwmSlice interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	SetTop(top uint32)
	Set(channel uint8, value uint32)
}

// fanPWM implements hal.PwmOutput on a machine PWM slice.
type fanPWM struct {
	slice   pwmSlice
	channel uint8
}

func newFanPWM(slice pwmSlice, pin machine.Pin) (*fanPWM, error) {
	if err := slice.Configure(machine.PWMConfig{}); err != nil {
		return nil, err
	}
	channel, err := slice.Channel(pin)
	if err != nil {
		return nil, err
	}
	return &fanPWM{slice: slice, channel: channel}, nil
}

func (f *fanPWM) SetPeriodAndDuty(top, compare uint16) error {
	if compare > top {
		return fmt.Errorf("compare %d exceeds top %d", compare, top)
	}
	f.slice.SetTop(uint32(top))
	f.slice.Set(f.channel, uint32(compare))
	return nil
}
