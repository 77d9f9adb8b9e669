package canopen

import (
	"fmt"

	"github.com/lufla/softcan"
)

// NMTCommand is the command specifier of the NMT service.
type NMTCommand uint8

const (
	NMTStart               NMTCommand = 0x01
	NMTStop                NMTCommand = 0x02
	NMTEnterPreOperational NMTCommand = 0x80
	NMTResetNode           NMTCommand = 0x81
	NMTResetCommunication  NMTCommand = 0x82
)

// NMTState encodes the node state as carried in heartbeats.
type NMTState uint8

const (
	StateBootup         NMTState = 0x00
	StateStopped        NMTState = 0x04
	StateOperational    NMTState = 0x05
	StatePreOperational NMTState = 0x7F
)

// BuildNMT builds an NMT command frame. node 0 addresses all nodes.
func BuildNMT(cmd NMTCommand, node uint8) softcan.Frame {
	var f softcan.Frame
	f.ID = FCNMT.COBID(0)
	f.DLC = 2
	f.Data[0] = byte(cmd)
	f.Data[1] = node
	return f
}

// ParseNMT decodes an NMT frame, returning the command and target node.
func ParseNMT(f softcan.Frame) (NMTCommand, uint8, error) {
	if f.ID != FCNMT.COBID(0) {
		return 0, 0, fmt.Errorf("canopen: not an NMT frame (id=0x%X)", f.ID)
	}
	if f.DLC < 2 {
		return 0, 0, fmt.Errorf("canopen: NMT frame too short: %d", f.DLC)
	}
	return NMTCommand(f.Data[0]), f.Data[1], nil
}
