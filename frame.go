package softcan

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Frame represents a classical CAN 2.0A base frame.
//
// Only standard (11-bit) identifiers and data frames are supported; the
// RTR, IDE and r0 bits exist on the wire but are always driven dominant
// and are not exposed here. CRC, stuff and delimiter bits are
// protocol-level and never appear in a Frame.
type Frame struct {
	ID   uint32 // 11-bit identifier
	DLC  uint8  // 0..8; larger values are clamped to 8 on transmit
	Data [8]byte
}

// MaxStdID is the largest valid 11-bit identifier.
const MaxStdID = 0x7FF

// MaxDLC is the largest payload length of a classical CAN frame.
const MaxDLC = 8

var (
	ErrInvalidID  = errors.New("softcan: invalid identifier")
	ErrInvalidLen = errors.New("softcan: invalid data length")
)

// Validate returns an error if the frame is not valid. A DLC above 8 is
// not an error; it is clamped on transmit.
func (f Frame) Validate() error {
	if f.ID > MaxStdID {
		return ErrInvalidID
	}
	return nil
}

// MustFrame constructs a Frame and panics if invalid. Convenience for
// examples and tests.
func MustFrame(id uint32, data []byte) Frame {
	if id > MaxStdID {
		panic(ErrInvalidID)
	}
	if len(data) > MaxDLC {
		panic(ErrInvalidLen)
	}
	var f Frame
	f.ID = id
	f.DLC = uint8(len(data))
	copy(f.Data[:], data)
	return f
}

// EffectiveDLC returns the DLC clamped to the classical CAN maximum of 8.
func (f Frame) EffectiveDLC() uint8 {
	if f.DLC > MaxDLC {
		return MaxDLC
	}
	return f.DLC
}

// String renders the frame as "ID [len] DA TA ..".
func (f Frame) String() string {
	n := f.EffectiveDLC()
	var b strings.Builder
	fmt.Fprintf(&b, "%03X [%d]", f.ID, n)
	for i := uint8(0); i < n; i++ {
		fmt.Fprintf(&b, " %02X", f.Data[i])
	}
	return b.String()
}

// MarshalBinary encodes the frame to the Linux SocketCAN "struct can_frame"
// layout (16 bytes). This layout is widely used and suitable for capture or
// transport; the bridges use it as their binary payload.
//
// Layout (little-endian):
//
//	0..3  can_id (standard, no flags)
//	4     can_dlc
//	5..7  padding (zero)
//	8..15 data bytes
func (f Frame) MarshalBinary() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], f.ID)
	buf[4] = f.EffectiveDLC()
	copy(buf[8:16], f.Data[:])
	return buf, nil
}

// UnmarshalBinary decodes a frame from the SocketCAN can_frame layout.
// Extended and RTR flags are rejected; this node speaks 2.0A data frames
// only.
func (f *Frame) UnmarshalBinary(data []byte) error {
	if len(data) < 16 {
		return fmt.Errorf("softcan: need 16 bytes, got %d", len(data))
	}
	const (
		canEffFlag = 0x80000000
		canRtrFlag = 0x40000000
	)
	id := binary.LittleEndian.Uint32(data[0:4])
	if id&(canEffFlag|canRtrFlag) != 0 {
		return fmt.Errorf("softcan: extended/RTR frames not supported (id=0x%X)", id)
	}
	f.ID = id & MaxStdID
	f.DLC = data[4]
	if f.DLC > MaxDLC {
		f.DLC = MaxDLC
	}
	copy(f.Data[:], data[8:16])
	return f.Validate()
}
