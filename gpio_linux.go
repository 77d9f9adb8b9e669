//go:build linux

package softcan

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// sysfsHostIO implements HostIO over the legacy Linux sysfs GPIO interface
// (/sys/class/gpio). No external dependencies; plain file I/O only.
//
// Notes:
//   - Exporting pins requires write access to /sys/class/gpio; run as root
//     or arrange udev permissions.
//   - sysfs cannot configure the internal pull-up; InputPullup falls back
//     to a plain input. Use an external pull-up resistor, which a CAN
//     transceiver setup provides anyway.
//   - Timing goes through the Go runtime and is best-effort; bit rates
//     above 125 kbit/s are unlikely to work.
type sysfsHostIO struct {
	start time.Time
	value map[int]*os.File
	dir   map[int]*os.File
}

const sysfsGPIORoot = "/sys/class/gpio"

// NewSysfsHostIO exports the given pins and opens their sysfs control
// files. Close unexports them again.
func NewSysfsHostIO(pins ...int) (HostIO, error) {
	h := &sysfsHostIO{
		start: time.Now(),
		value: make(map[int]*os.File, len(pins)),
		dir:   make(map[int]*os.File, len(pins)),
	}
	for _, pin := range pins {
		if err := h.exportPin(pin); err != nil {
			h.close()
			return nil, err
		}
	}
	return h, nil
}

func (h *sysfsHostIO) exportPin(pin int) error {
	base := fmt.Sprintf("%s/gpio%d", sysfsGPIORoot, pin)
	if _, err := os.Stat(base); os.IsNotExist(err) {
		if err := writeSysfs(sysfsGPIORoot+"/export", strconv.Itoa(pin)); err != nil {
			return fmt.Errorf("softcan: export gpio%d: %w", pin, err)
		}
		// The gpioN directory appears asynchronously after export.
		for i := 0; i < 100; i++ {
			if _, err := os.Stat(base); err == nil {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
	dir, err := os.OpenFile(base+"/direction", os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("softcan: open gpio%d direction: %w", pin, err)
	}
	val, err := os.OpenFile(base+"/value", os.O_RDWR, 0)
	if err != nil {
		dir.Close()
		return fmt.Errorf("softcan: open gpio%d value: %w", pin, err)
	}
	h.dir[pin] = dir
	h.value[pin] = val
	return nil
}

// Close releases the control files and unexports the pins.
func (h *sysfsHostIO) Close() error {
	h.close()
	return nil
}

func (h *sysfsHostIO) close() {
	for pin, f := range h.value {
		f.Close()
		delete(h.value, pin)
		_ = writeSysfs(sysfsGPIORoot+"/unexport", strconv.Itoa(pin))
	}
	for pin, f := range h.dir {
		f.Close()
		delete(h.dir, pin)
	}
}

func writeSysfs(path, s string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(s)
	return err
}

// Micros returns microseconds since the backend was created.
func (h *sysfsHostIO) Micros() int64 {
	return time.Since(h.start).Microseconds()
}

// DelayMicros sleeps most of the interval and spins the remainder, since
// timer resolution alone is too coarse for bit timing.
func (h *sysfsHostIO) DelayMicros(n int64) {
	deadline := h.Micros() + n
	if n > 200 {
		time.Sleep(time.Duration(n-100) * time.Microsecond)
	}
	for h.Micros() < deadline {
	}
}

func (h *sysfsHostIO) PinMode(pin int, mode PinMode) {
	f, ok := h.dir[pin]
	if !ok {
		return
	}
	switch mode {
	case Output:
		_, _ = f.WriteAt([]byte("out"), 0)
	default:
		_, _ = f.WriteAt([]byte("in"), 0)
	}
}

func (h *sysfsHostIO) DigitalWrite(pin int, high bool) {
	f, ok := h.value[pin]
	if !ok {
		return
	}
	b := []byte("0")
	if high {
		b[0] = '1'
	}
	_, _ = f.WriteAt(b, 0)
}

func (h *sysfsHostIO) DigitalRead(pin int) bool {
	f, ok := h.value[pin]
	if !ok {
		return true
	}
	var b [1]byte
	if _, err := f.ReadAt(b[:], 0); err != nil {
		return true
	}
	return b[0] != '0'
}
