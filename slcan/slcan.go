// Package slcan implements the SLCAN (serial CAN) ASCII framing for
// standard data frames, as used by the candump and cansend tools.
package slcan

import (
	"fmt"
	"strings"

	"github.com/lufla/softcan"
)

// Encode converts a frame into its SLCAN line, e.g. "t1234DEADBEEF".
// The trailing carriage return of the serial protocol is not included.
func Encode(f softcan.Frame) string {
	dlc := f.EffectiveDLC()
	var b strings.Builder
	b.WriteByte('t')
	fmt.Fprintf(&b, "%03X", f.ID&softcan.MaxStdID)
	b.WriteByte('0' + dlc)
	for i := uint8(0); i < dlc; i++ {
		fmt.Fprintf(&b, "%02X", f.Data[i])
	}
	return b.String()
}

// Decode parses an SLCAN line into a frame. Only standard data frames
// ('t') are accepted; remote and extended variants are rejected since the
// soft node cannot transmit them.
func Decode(s string) (softcan.Frame, error) {
	var f softcan.Frame
	s = strings.TrimRight(s, "\r\n")
	if len(s) == 0 {
		return f, fmt.Errorf("slcan: empty line")
	}
	switch s[0] {
	case 't':
	case 'T', 'r', 'R':
		return f, fmt.Errorf("slcan: unsupported frame type %q", s[0])
	default:
		return f, fmt.Errorf("slcan: bad line %q", s)
	}
	if len(s) < 5 {
		return f, fmt.Errorf("slcan: line too short %q", s)
	}
	id, err := parseHex(s[1:4])
	if err != nil {
		return f, fmt.Errorf("slcan: bad identifier in %q", s)
	}
	if id > softcan.MaxStdID {
		return f, fmt.Errorf("slcan: identifier 0x%X out of range", id)
	}
	dlc := int(s[4] - '0')
	if dlc < 0 || dlc > softcan.MaxDLC {
		return f, fmt.Errorf("slcan: bad dlc %q", s[4])
	}
	if len(s) != 5+2*dlc {
		return f, fmt.Errorf("slcan: want %d data chars, got %d", 2*dlc, len(s)-5)
	}
	f.ID = id
	f.DLC = uint8(dlc)
	for i := 0; i < dlc; i++ {
		v, err := parseHex(s[5+2*i : 7+2*i])
		if err != nil {
			return softcan.Frame{}, fmt.Errorf("slcan: bad data byte %d in %q", i, s)
		}
		f.Data[i] = byte(v)
	}
	return f, nil
}

func parseHex(s string) (uint32, error) {
	var v uint32
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			v = v<<4 | uint32(c-'0')
		case c >= 'A' && c <= 'F':
			v = v<<4 | uint32(c-'A'+10)
		case c >= 'a' && c <= 'f':
			v = v<<4 | uint32(c-'a'+10)
		default:
			return 0, fmt.Errorf("slcan: bad hex %q", s)
		}
	}
	return v, nil
}
