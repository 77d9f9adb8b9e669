// Package canopen provides small CANopen building blocks on top of the
// softcan node: COB-ID helpers, NMT commands and heartbeat (NMT error
// control) encode/decode, plus a heartbeat producer driven through a
// softcan.Pump.
//
// It is not a CANopen stack; there is no object dictionary and no SDO
// machinery. The helpers cover what a bit-banged node on a slow bus can
// realistically participate in.
package canopen

import (
	"fmt"

	"github.com/lufla/softcan"
)

// NodeID is a CANopen node identifier (1..127). Zero addresses all nodes
// where a service defines a broadcast, e.g. NMT.
type NodeID uint8

// Validate checks that the node identifier is in the range 1..127.
func (n NodeID) Validate() error {
	if n < 1 || n > 127 {
		return fmt.Errorf("canopen: invalid node id %d (valid 1..127)", n)
	}
	return nil
}

// FunctionCode is a CANopen COB-ID base per CiA 301.
type FunctionCode uint16

const (
	FCNMT       FunctionCode = 0x000 // fixed, broadcast
	FCSync      FunctionCode = 0x080 // fixed
	FCEmergency FunctionCode = 0x080 // + node id
	FCTime      FunctionCode = 0x100 // fixed
	FCTPDO1     FunctionCode = 0x180
	FCRPDO1     FunctionCode = 0x200
	FCTPDO2     FunctionCode = 0x280
	FCRPDO2     FunctionCode = 0x300
	FCTPDO3     FunctionCode = 0x380
	FCRPDO3     FunctionCode = 0x400
	FCTPDO4     FunctionCode = 0x480
	FCRPDO4     FunctionCode = 0x500
	FCHeartbeat FunctionCode = 0x700 // NMT error control
)

// COBID composes the 11-bit identifier for this function code and node.
// NMT and TIME ignore the node id. SYNC and EMCY share the base 0x080:
// with node 0 the result is the fixed SYNC id, otherwise the node id is
// added as for EMCY.
func (fc FunctionCode) COBID(node NodeID) uint32 {
	switch fc {
	case FCNMT, FCTime:
		return uint32(fc)
	case FCSync:
		if node == 0 {
			return uint32(fc)
		}
	}
	return uint32(uint16(fc) + uint16(node))
}

// SplitCOBID infers the function code and node id of an 11-bit identifier
// using the standard base ranges. Overlaps (SYNC is EMCY of node 0) are
// resolved toward the fixed id.
func SplitCOBID(id uint32) (FunctionCode, NodeID, error) {
	if id > softcan.MaxStdID {
		return 0, 0, fmt.Errorf("canopen: invalid 11-bit id 0x%X", id)
	}
	u := uint16(id)
	switch u {
	case uint16(FCNMT):
		return FCNMT, 0, nil
	case uint16(FCSync):
		return FCSync, 0, nil
	case uint16(FCTime):
		return FCTime, 0, nil
	}
	for _, fc := range []FunctionCode{
		FCEmergency, FCTPDO1, FCRPDO1, FCTPDO2, FCRPDO2,
		FCTPDO3, FCRPDO3, FCTPDO4, FCRPDO4, FCHeartbeat,
	} {
		if u > uint16(fc) && u <= uint16(fc)+0x7F {
			return fc, NodeID(u - uint16(fc)), nil
		}
	}
	return 0, 0, fmt.Errorf("canopen: id 0x%X not in CANopen base ranges", id)
}
