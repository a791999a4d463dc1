package evdev

import (
	"os"
	"unsafe"

	evdev "github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"
)

// absRange is the reported range of one absolute axis.
type absRange struct {
	value, min, max int32
}

// normalize maps v into [0, 1]. A degenerate range maps to 0.
func (r absRange) normalize(v int32) float64 {
	if r.max <= r.min {
		return 0
	}
	n := float64(v-r.min) / float64(r.max-r.min)
	switch {
	case n < 0:
		return 0
	case n > 1:
		return 1
	}
	return n
}

// eviocgabs is EVIOCGABS(abs): _IOR('E', 0x40 + abs, struct input_absinfo).
func eviocgabs(abs int) uintptr {
	const size = unsafe.Sizeof(absInfo{})
	return uintptr(2<<30 | int(size)<<16 | 'E'<<8 | (0x40 + abs))
}

// absInfo mirrors struct input_absinfo.
type absInfo struct {
	Value, Minimum, Maximum, Fuzz, Flat, Resolution int32
}

// readAbsRange queries the kernel for the range of axis code.
func readAbsRange(f *os.File, code int) (absRange, error) {
	var info absInfo
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), eviocgabs(code), uintptr(unsafe.Pointer(&info))); errno != 0 {
		return absRange{}, errno
	}
	return absRange{value: info.Value, min: info.Minimum, max: info.Maximum}, nil
}

// absAxes are the X and Y ranges of an absolute pointer.
type absAxes struct {
	x, y absRange
}

// readAbsAxes returns the ranges of ABS_X and ABS_Y, or nil when the device
// does not report both.
func readAbsAxes(f *os.File) *absAxes {
	x, err := readAbsRange(f, evdev.ABS_X)
	if err != nil {
		return nil
	}
	y, err := readAbsRange(f, evdev.ABS_Y)
	if err != nil {
		return nil
	}
	return &absAxes{x: x, y: y}
}
