//go:build !tinygo

package hal

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"tinygo.org/x/drivers"
)

// fails if the mocks do not implement their interfaces
var (
	_ Line          = &LineMock{}
	_ PwmOutput     = &PwmOutputMock{}
	_ PulseCounter  = &PulseCounterMock{}
	_ FanControlHal = &FanControlHalMock{}
)

// LineMock implements a mock for the Line interface
type LineMock struct {
	mock.Mock
}

func (m *LineMock) DriveLow() error {
	args := m.Called()
	return args.Error(0)
}

func (m *LineMock) DriveHigh() error {
	args := m.Called()
	return args.Error(0)
}

func (m *LineMock) ReadLevel() (Level, error) {
	args := m.Called()
	return args.Get(0).(Level), args.Error(1)
}

func (m *LineMock) WaitForLevel(ctx context.Context, level Level, timeout time.Duration) (time.Duration, error) {
	args := m.Called(ctx, level, timeout)
	return args.Get(0).(time.Duration), args.Error(1)
}

// PwmOutputMock implements a mock for the PwmOutput interface
type PwmOutputMock struct {
	mock.Mock
}

func (m *PwmOutputMock) SetPeriodAndDuty(top, compare uint16) error {
	args := m.Called(top, compare)
	return args.Error(0)
}

// PulseCounterMock implements a mock for the PulseCounter interface
type PulseCounterMock struct {
	mock.Mock
}

func (m *PulseCounterMock) Reset() error {
	args := m.Called()
	return args.Error(0)
}

func (m *PulseCounterMock) Count() (uint32, error) {
	args := m.Called()
	return args.Get(0).(uint32), args.Error(1)
}

// FanControlHalMock implements a mock for the FanControlHal interface
type FanControlHalMock struct {
	mock.Mock
}

func (m *FanControlHalMock) SensorLine() Line {
	args := m.Called()
	return args.Get(0).(Line)
}

func (m *FanControlHalMock) Fan() PwmOutput {
	args := m.Called()
	return args.Get(0).(PwmOutput)
}

func (m *FanControlHalMock) Tachometer() PulseCounter {
	args := m.Called()
	return args.Get(0).(PulseCounter)
}

func (m *FanControlHalMock) I2C() (drivers.I2C, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(drivers.I2C), args.Error(1)
}

func (m *FanControlHalMock) PwmClockHz() float64 {
	args := m.Called()
	return args.Get(0).(float64)
}

func (m *FanControlHalMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
