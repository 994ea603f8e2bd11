//go:build linux && !tinygo

package hal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/openfanctl/pcfan-agent/pkg/hal/bcm2711"
	"github.com/openfanctl/pcfan-agent/pkg/log"
	"github.com/openfanctl/pcfan-agent/pkg/util"
	"github.com/warthog618/gpiod"
	"go.uber.org/zap"
	"tinygo.org/x/drivers"
)

const defaultI2CDevice = "/dev/i2c-1"

const (
	bcm2711PeripheryBaseAddr = 0xFE000000
	bcm2711RegPwmAddr        = bcm2711PeripheryBaseAddr + 0x20C000
	bcm2711GpioAddr          = bcm2711PeripheryBaseAddr + 0x200000
	bcm2711ClkAddr           = bcm2711PeripheryBaseAddr + 0x101000
	bcm2711ClkManagerPwd     = 0x5A << 24 // (31 - 24) on CM_GP0CTL/CM_GP1CTL/CM_GP2CTL regs
	bcm2711PageSize          = 4096

	bcm2711RegGpfsel1 = 0x01

	bcm2711RegPwmCtl  = 0x00
	bcm2711RegPwmRng1 = 0x04
	bcm2711RegPwmDat1 = 0x05

	bcm2711RegPwmCtlBitMsen1 = 7 // Mark-space mode (pwm1)
	bcm2711RegPwmCtlBitPwen1 = 0 // Enable (pwm1)

	bcm2711RegPwmclkCntrl          = 0x28
	bcm2711RegPwmclkDiv            = 0x29
	bcm2711RegPwmclkCntrlBitSrcOsc = 0
	bcm2711RegPwmclkCntrlBitEnable = 4

	// The PWM peripheral is clocked from the 54MHz oscillator divided by 2,
	// giving 27MHz counter ticks.
	bcm2711OscillatorHz = 54_000_000
	bcm2711PwmClkDiv    = 2
)

type linuxHal struct {
	opts FanControlHalOpts

	devmem   *os.File
	gpioMem8 []uint8
	gpioMem  []uint32
	pwmMem8  []uint8
	pwmMem   []uint32
	clkMem8  []uint8
	clkMem   []uint32

	gpioChip0 *gpiod.Chip

	sensorLine *gpiodLine
	tach       *gpiodTach

	i2cMu sync.Mutex
	i2c   *i2cDev
}

// newPlatformHal sets up the BCM2711 fan controller hardware: the DHT11 line
// and tachometer input via gpiod, the fan PWM via memory-mapped PWM
// registers.
func newPlatformHal(ctx context.Context, opts FanControlHalOpts) (FanControlHal, error) {
	// /dev/gpiomem doesn't allow the register-level PWM setup
	devmem, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, os.ModePerm)
	if err != nil {
		return nil, err
	}

	gpioChip0, err := gpiod.NewChip("gpiochip0")
	if err != nil {
		return nil, err
	}

	gpioMem, gpioMem8, err := bcm2711.Mmap(devmem, bcm2711GpioAddr, bcm2711PageSize)
	if err != nil {
		return nil, err
	}
	pwmMem, pwmMem8, err := bcm2711.Mmap(devmem, bcm2711RegPwmAddr, bcm2711PageSize)
	if err != nil {
		return nil, err
	}
	clkMem, clkMem8, err := bcm2711.Mmap(devmem, bcm2711ClkAddr, bcm2711PageSize)
	if err != nil {
		return nil, err
	}

	h := &linuxHal{
		opts:      opts,
		devmem:    devmem,
		gpioMem:   gpioMem,
		gpioMem8:  gpioMem8,
		pwmMem:    pwmMem,
		pwmMem8:   pwmMem8,
		clkMem:    clkMem,
		clkMem8:   clkMem8,
		gpioChip0: gpioChip0,
	}

	halKind.WithLabelValues("bcm2711").Set(1)

	log.FromContext(ctx).Info("starting hal setup", zap.String("hal", "bcm2711"))
	if err := h.setup(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *linuxHal) setup(ctx context.Context) error {
	var err error

	h.sensorLine, err = newGpiodLine(h.gpioChip0, h.opts.SensorLinePin)
	if err != nil {
		return fmt.Errorf("requesting sensor line: %w", err)
	}

	h.tach = &gpiodTach{}
	h.tach.line, err = h.gpioChip0.RequestLine(
		h.opts.TachPin,
		gpiod.WithEventHandler(h.tach.handleEdge),
		gpiod.WithFallingEdge,
		gpiod.WithPullUp,
	)
	if err != nil {
		return fmt.Errorf("requesting tach line: %w", err)
	}

	// FAN PWM output on GPIO 12 -> bcm2711RegGpfsel1 8:6, alt0
	h.gpioMem[bcm2711RegGpfsel1] = (h.gpioMem[bcm2711RegGpfsel1] &^ (0b111 << 6)) | (0b100 << 6)
	if err := h.setPwm0Clock(); err != nil {
		return err
	}

	log.FromContext(ctx).Info("hal setup done",
		zap.Int("sensor_line_pin", h.opts.SensorLinePin),
		zap.Int("tach_pin", h.opts.TachPin),
	)
	return nil
}

func (h *linuxHal) SensorLine() Line {
	return h.sensorLine
}

func (h *linuxHal) Fan() PwmOutput {
	return h
}

func (h *linuxHal) Tachometer() PulseCounter {
	return h.tach
}

// I2C opens the configured i2c-dev bus on first use.
func (h *linuxHal) I2C() (drivers.I2C, error) {
	h.i2cMu.Lock()
	defer h.i2cMu.Unlock()
	if h.i2c != nil {
		return h.i2c, nil
	}

	device := h.opts.I2CDevice
	if device == "" {
		device = defaultI2CDevice
	}
	i2c, err := openI2CDev(device)
	if err != nil {
		return nil, err
	}
	h.i2c = i2c
	return h.i2c, nil
}

func (h *linuxHal) PwmClockHz() float64 {
	return bcm2711OscillatorHz / bcm2711PwmClkDiv
}

// setPwm0Clock routes the oscillator through the PWM clock manager with a
// fixed divisor.
func (h *linuxHal) setPwm0Clock() error {
	// Stop pwm; the clock cannot be reconfigured while the channel runs
	h.pwmMem[bcm2711RegPwmCtl] &^= 1 << bcm2711RegPwmCtlBitPwen1
	time.Sleep(10 * time.Microsecond)

	// Stop clock w/o any changes, they cannot be made in the same step
	h.clkMem[bcm2711RegPwmclkCntrl] = bcm2711ClkManagerPwd | (h.clkMem[bcm2711RegPwmclkCntrl] &^ (1 << bcm2711RegPwmclkCntrlBitEnable))
	time.Sleep(10 * time.Microsecond)

	// Wait for the clock to not be busy so we can perform the changes
	for h.clkMem[bcm2711RegPwmclkCntrl]&(1<<7) != 0 {
		time.Sleep(10 * time.Microsecond)
	}

	h.clkMem[bcm2711RegPwmclkDiv] = bcm2711ClkManagerPwd | (uint32(bcm2711PwmClkDiv) << 12)
	time.Sleep(10 * time.Microsecond)

	// Start clock (passwd, enable, source oscillator)
	h.clkMem[bcm2711RegPwmclkCntrl] = bcm2711ClkManagerPwd | (1 << bcm2711RegPwmclkCntrlBitEnable) | (1 << bcm2711RegPwmclkCntrlBitSrcOsc)
	time.Sleep(10 * time.Microsecond)

	return nil
}

// SetPeriodAndDuty programs PWM channel 1 in mark-space mode. RNG1 holds the
// period in clock ticks, DAT1 the on-time.
func (h *linuxHal) SetPeriodAndDuty(top, compare uint16) error {
	if compare > top {
		return fmt.Errorf("compare %d exceeds top %d", compare, top)
	}

	h.pwmMem[bcm2711RegPwmCtl] = (1 << bcm2711RegPwmCtlBitMsen1) | (1 << bcm2711RegPwmCtlBitPwen1)
	time.Sleep(10 * time.Microsecond)
	h.pwmMem[bcm2711RegPwmRng1] = uint32(top)
	time.Sleep(10 * time.Microsecond)
	h.pwmMem[bcm2711RegPwmDat1] = uint32(compare)

	pwmTop.Set(float64(top))
	pwmCompare.Set(float64(compare))
	return nil
}

// Close releases all lines and memory mappings
func (h *linuxHal) Close() error {
	h.i2cMu.Lock()
	var i2cErr error
	if h.i2c != nil {
		i2cErr = h.i2c.Close()
	}
	h.i2cMu.Unlock()

	return errors.Join(
		i2cErr,
		h.sensorLine.Close(),
		h.tach.line.Close(),
		syscall.Munmap(h.gpioMem8),
		syscall.Munmap(h.pwmMem8),
		syscall.Munmap(h.clkMem8),
		h.devmem.Close(),
		h.gpioChip0.Close(),
	)
}

// gpiodLine implements Line on top of a gpiod line request, reconfiguring
// direction as the protocol alternates between driving and sampling.
type gpiodLine struct {
	mu    sync.Mutex
	line  *gpiod.Line
	input bool
	clock util.Clock
}

func newGpiodLine(chip *gpiod.Chip, offset int) (*gpiodLine, error) {
	// The DHT11 bus idles high; request as input first so the sensor is not
	// disturbed before the first read.
	line, err := chip.RequestLine(offset, gpiod.AsInput)
	if err != nil {
		return nil, err
	}
	return &gpiodLine{line: line, input: true, clock: util.RealClock{}}, nil
}

func (l *gpiodLine) DriveLow() error {
	return l.drive(0)
}

func (l *gpiodLine) DriveHigh() error {
	return l.drive(1)
}

func (l *gpiodLine) drive(value int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.input {
		if err := l.line.Reconfigure(gpiod.AsOutput(value)); err != nil {
			return err
		}
		l.input = false
		return nil
	}
	return l.line.SetValue(value)
}

func (l *gpiodLine) ReadLevel() (Level, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readLevelLocked()
}

func (l *gpiodLine) readLevelLocked() (Level, error) {
	if !l.input {
		if err := l.line.Reconfigure(gpiod.AsInput); err != nil {
			return Low, err
		}
		l.input = true
	}
	v, err := l.line.Value()
	if err != nil {
		return Low, err
	}
	return Level(v != 0), nil
}

func (l *gpiodLine) WaitForLevel(ctx context.Context, level Level, timeout time.Duration) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return util.WaitFor(ctx, l.clock, timeout, func() (bool, error) {
		current, err := l.readLevelLocked()
		if err != nil {
			return false, err
		}
		return current == level, nil
	})
}

func (l *gpiodLine) Close() error {
	return l.line.Close()
}

// gpiodTach counts falling edges on the tachometer line from the gpiod event
// handler.
type gpiodTach struct {
	line  *gpiod.Line
	count atomic.Uint32
}

func (t *gpiodTach) handleEdge(gpiod.LineEvent) {
	t.count.Add(1)
	tachEdgeCount.Inc()
}

func (t *gpiodTach) Reset() error {
	t.count.Store(0)
	return nil
}

func (t *gpiodTach) Count() (uint32, error) {
	return t.count.Load(), nil
}
