//go:build tinygo

package main

import (
	"context"
	"machine"
	"time"

	"github.com/openfanctl/pcfan-agent/pkg/dht11"
	"github.com/openfanctl/pcfan-agent/pkg/fan"
	"github.com/openfanctl/pcfan-agent/pkg/mcp9808"
	"github.com/openfanctl/pcfan-agent/pkg/probe"
	"github.com/openfanctl/pcfan-agent/pkg/util"
)

const (
	sensorPin  = machine.GP2
	tachPin    = machine.GP3
	fanPwmPin  = machine.GP4 // PWM2 channel A
	defaultFan = 40.0
)

func main() {
	var controller *Controller
	var line *pinLine
	var tach *tachCounter
	var pwm *fanPWM
	var precision *mcp9808.Device
	var err error

	// Configure status LED
	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	machine.LED.Set(false)

	// Configure UART towards the agent
	err = machine.UART0.Configure(machine.UARTConfig{TX: machine.UART0_TX_PIN, RX: machine.UART0_RX_PIN})
	if err != nil {
		println("[!] Failed to initialize UART0:", err.Error())
		goto errprint
	}
	machine.UART0.SetBaudRate(probe.Baudrate)

	// DHT11 data line and fan tachometer
	line = newPinLine(sensorPin)
	tach, err = newTachCounter(tachPin)
	if err != nil {
		println("[!] Failed to initialize tachometer:", err.Error())
		goto errprint
	}

	// Fan PWM output
	pwm, err = newFanPWM(machine.PWM2, fanPwmPin)
	if err != nil {
		println("[!] Failed to initialize fan PWM:", err.Error())
		goto errprint
	}

	// Optional MCP9808 precision sensor
	err = machine.I2C0.Configure(machine.I2CConfig{
		Frequency: 100 * machine.KHz,
		SDA:       machine.I2C0_SDA_PIN,
		SCL:       machine.I2C0_SCL_PIN,
	})
	if err != nil {
		println("[!] Failed to initialize I2C0:", err.Error())
		goto errprint
	}
	precision = mcp9808.New(machine.I2C0)
	if present, err := precision.Present(); err != nil || !present {
		println("[*] No MCP9808 found, using DHT11 temperature only")
		precision = nil
	}

	println("[+] IO initialized, starting controller...")

	controller = &Controller{
		UART:            machine.UART0,
		Climate:         dht11.New(line, util.RealClock{}),
		Precision:       precision,
		Fan:             pwm,
		Tach:            fan.NewTachReader(tach, util.RealClock{}, 0),
		PwmClockHz:      float64(machine.CPUFrequency()),
		DefaultFanPower: defaultFan,
	}

	err = controller.Run(context.Background())

	// Blinking -> something went wrong
errprint:
	ledState := false
	for {
		ledState = !ledState
		machine.LED.Set(ledState)
		// Repeat error message
		println("[FATAL] controller exited with error:", err)
		time.Sleep(500 * time.Millisecond)
	}
}
