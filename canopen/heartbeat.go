package canopen

import (
	"fmt"
	"time"

	"github.com/lufla/softcan"
)

// Heartbeat is one NMT error control message from a node.
type Heartbeat struct {
	Node  NodeID
	State NMTState
}

// BuildHeartbeat encodes a heartbeat frame: one byte holding the state.
func BuildHeartbeat(node NodeID, state NMTState) (softcan.Frame, error) {
	if err := node.Validate(); err != nil {
		return softcan.Frame{}, err
	}
	var f softcan.Frame
	f.ID = FCHeartbeat.COBID(node)
	f.DLC = 1
	f.Data[0] = byte(state)
	return f, nil
}

// ParseHeartbeat decodes a heartbeat frame into node id and state.
func ParseHeartbeat(f softcan.Frame) (Heartbeat, error) {
	fc, node, err := SplitCOBID(f.ID)
	if err != nil {
		return Heartbeat{}, err
	}
	if fc != FCHeartbeat {
		return Heartbeat{}, fmt.Errorf("canopen: not a heartbeat frame (id=0x%X)", f.ID)
	}
	if f.DLC < 1 {
		return Heartbeat{}, fmt.Errorf("canopen: heartbeat too short: %d", f.DLC)
	}
	return Heartbeat{Node: node, State: NMTState(f.Data[0])}, nil
}

// SubscribeHeartbeats delivers parsed heartbeats from the pump. A non-nil
// nodeFilter restricts delivery to one producer. The returned cancel must
// be called when done; it closes the channel.
func SubscribeHeartbeats(pump *softcan.Pump, nodeFilter *NodeID, buffer int) (<-chan Heartbeat, func()) {
	frames, cancelFrames := pump.Subscribe(func(f softcan.Frame) bool {
		hb, err := ParseHeartbeat(f)
		if err != nil {
			return false
		}
		return nodeFilter == nil || hb.Node == *nodeFilter
	}, buffer)

	out := make(chan Heartbeat, buffer)
	go func() {
		defer close(out)
		for f := range frames {
			hb, err := ParseHeartbeat(f)
			if err != nil {
				continue
			}
			out <- hb
		}
	}()
	return out, cancelFrames
}

// ProduceHeartbeats transmits this node's heartbeat through the pump every
// interval until stop is closed. State changes take effect on the next
// beat; read them through the state func so the producer always reports
// the current value.
func ProduceHeartbeats(pump *softcan.Pump, node NodeID, state func() NMTState, interval time.Duration, stop <-chan struct{}) error {
	if err := node.Validate(); err != nil {
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
			f, err := BuildHeartbeat(node, state())
			if err != nil {
				return err
			}
			if err := pump.Send(f); err != nil {
				if err == softcan.ErrPumpClosed || err == softcan.ErrBusOff {
					return err
				}
				// Transient transmit failures (lost arbitration, missing
				// ACK) are retried on the next beat.
			}
		}
	}
}
