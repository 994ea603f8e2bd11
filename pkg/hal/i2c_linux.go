//go:build linux && !tinygo

package hal

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// I2C_SLAVE ioctl of the Linux i2c-dev driver
const i2cSlaveIoctl = 0x0703

// i2cDev implements drivers.I2C on top of a Linux i2c-dev character device.
// Transactions select the slave address, write the register pointer and read
// the response as separate syscalls; the kernel inserts the repeated start.
type i2cDev struct {
	mu   sync.Mutex
	file *os.File
	addr uint16
}

func openI2CDev(path string) (*i2cDev, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening i2c device %s: %w", path, err)
	}
	return &i2cDev{file: file, addr: 0xffff}, nil
}

func (d *i2cDev) Tx(addr uint16, w, r []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.addr != addr {
		if err := unix.IoctlSetInt(int(d.file.Fd()), i2cSlaveIoctl, int(addr)); err != nil {
			return fmt.Errorf("selecting i2c address 0x%02x: %w", addr, err)
		}
		d.addr = addr
	}

	if len(w) > 0 {
		if _, err := d.file.Write(w); err != nil {
			return fmt.Errorf("i2c write: %w", err)
		}
	}
	if len(r) > 0 {
		if _, err := io.ReadFull(d.file, r); err != nil {
			return fmt.Errorf("i2c read: %w", err)
		}
	}
	return nil
}

func (d *i2cDev) Close() error {
	return d.file.Close()
}
