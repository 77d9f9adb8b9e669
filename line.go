package softcan

// lineDriver is a thin abstraction over the two GPIO lines. Driving low
// asserts dominant; driving high or releasing the pin yields recessive.
type lineDriver struct {
	io    HostIO
	rxPin int
	txPin int
}

func (l lineDriver) driveDominant()  { l.io.DigitalWrite(l.txPin, false) }
func (l lineDriver) driveRecessive() { l.io.DigitalWrite(l.txPin, true) }

// release flips TX to input (high-Z) so another node may drive dominant,
// and returns a func that restores the pin to output-recessive. The
// restore must run on every exit path of the ACK slot.
func (l lineDriver) release() (restore func()) {
	l.io.PinMode(l.txPin, Input)
	return func() {
		l.io.PinMode(l.txPin, Output)
		l.driveRecessive()
	}
}

// sample reads the RX line; true is recessive.
func (l lineDriver) sample() bool { return l.io.DigitalRead(l.rxPin) }
