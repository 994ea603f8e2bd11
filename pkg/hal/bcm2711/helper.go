package bcm2711

import (
	"os"
	"syscall"
	"unsafe"
)

// Mmap maps a peripheral register page and returns both a 32-bit register
// view and the raw byte slice needed for munmap.
func Mmap(file *os.File, base int64, length int) ([]uint32, []uint8, error) {
	mem8, err := syscall.Mmap(
		int(file.Fd()),
		base,
		length,
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_SHARED,
	)
	if err != nil {
		return nil, nil, err
	}
	// The peripherals are accessed as 32 bit registers.
	mem32 := unsafe.Slice((*uint32)(unsafe.Pointer(&mem8[0])), len(mem8)/4)
	return mem32, mem8, nil
}
