package softcan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lufla/softcan"
	"github.com/lufla/softcan/sim"
)

const (
	simBitrate = 10_000 // 100 µs bit time keeps the virtual timeline readable
	simBitUs   = 100
	txStartUs  = 50 // transmit mid-way through the receivers' sample grid
)

type simNode struct {
	port *sim.Port
	node *softcan.Node
}

func newSimNode(bus *sim.Bus) *simNode {
	port := bus.Port()
	return &simNode{port: port, node: softcan.New(port, testRXPin, testTXPin)}
}

// rxLog collects what a receiver process observed.
type rxLog struct {
	frames []softcan.Frame
	errs   int
	polls  int
}

// spawnReceiver runs a poll loop for the node, sampling more often than
// the bit rate, until the simulation stops.
func spawnReceiver(bus *sim.Bus, name string, sn *simNode, quantumUs int64, log *rxLog) {
	bus.Spawn(name, func() {
		if err := sn.node.Begin(simBitrate); err != nil {
			panic(err)
		}
		for bus.Running() {
			var f softcan.Frame
			switch sn.node.Poll(&f) {
			case softcan.MessageOk:
				log.frames = append(log.frames, f)
			case softcan.FrameError:
				log.errs++
			}
			log.polls++
			sn.port.DelayMicros(quantumUs)
		}
	})
}

// spawnSender transmits the frames back to back with a short bus-idle gap
// between them and records each Send result.
func spawnSender(bus *sim.Bus, name string, sn *simNode, startUs int64, frames []softcan.Frame, errs *[]error) {
	bus.Spawn(name, func() {
		if err := sn.node.Begin(simBitrate); err != nil {
			panic(err)
		}
		sn.port.DelayMicros(startUs)
		for _, f := range frames {
			*errs = append(*errs, sn.node.Send(f))
			sn.port.DelayMicros(10 * simBitUs)
		}
	})
}

func TestLoopbackRoundTrip(t *testing.T) {
	sent := []softcan.Frame{
		softcan.MustFrame(0x123, []byte{0xDE, 0xAD, 0xBE, 0xEF}),
		softcan.MustFrame(0x000, nil),
		softcan.MustFrame(0x000, []byte{0, 0, 0, 0, 0, 0, 0, 0}),
		softcan.MustFrame(0x7FF, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}),
		softcan.MustFrame(0x555, []byte{0xAA}),
		softcan.MustFrame(0x042, []byte{1, 2, 3}),
	}

	bus := sim.New()
	rx := newSimNode(bus)
	tx := newSimNode(bus)
	var log rxLog
	var errs []error
	spawnReceiver(bus, "rx", rx, 7, &log)
	spawnSender(bus, "tx", tx, txStartUs, sent, &errs)
	bus.Run(250_000)

	require.Len(t, errs, len(sent))
	for i, err := range errs {
		assert.NoError(t, err, "frame %d", i)
	}
	assert.Equal(t, sent, log.frames, "frames must arrive intact and in order")
	assert.Zero(t, log.errs)
	assert.Equal(t, 0, tx.node.TEC())
	assert.Equal(t, 0, rx.node.REC())
	assert.Equal(t, softcan.ErrorActive, tx.node.State())
	assert.Equal(t, softcan.ErrorActive, rx.node.State())
}

func TestTwoReceivers(t *testing.T) {
	frame := softcan.MustFrame(0x2A5, []byte{0xCA, 0xFE})

	bus := sim.New()
	rxB := newSimNode(bus)
	rxC := newSimNode(bus)
	tx := newSimNode(bus)
	var logB, logC rxLog
	var errs []error
	spawnReceiver(bus, "rx-b", rxB, 7, &logB)
	spawnReceiver(bus, "rx-c", rxC, 11, &logC)
	spawnSender(bus, "tx", tx, txStartUs, []softcan.Frame{frame}, &errs)
	bus.Run(50_000)

	require.Len(t, errs, 1)
	assert.NoError(t, errs[0])
	assert.Equal(t, []softcan.Frame{frame}, logB.frames)
	assert.Equal(t, []softcan.Frame{frame}, logC.frames)
	assert.Zero(t, logB.errs)
	assert.Zero(t, logC.errs)
}

func TestCorruptedFrameGetsNoAck(t *testing.T) {
	frame := softcan.MustFrame(0x123, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	wire := softcan.WireBits(frame)

	// Flip one recessive bit inside the CRC field, where the transmitter
	// does not monitor arbitration, by pulling the wired-AND line dominant
	// for the middle of that bit time.
	glitchIdx := -1
	for i := len(wire) - 1; i >= len(wire)-crcFieldWindow; i-- {
		if wire[i] {
			glitchIdx = i
			break
		}
	}
	require.GreaterOrEqual(t, glitchIdx, 0, "frame must have a recessive CRC bit")

	bus := sim.New()
	rx := newSimNode(bus)
	tx := newSimNode(bus)
	glitch := bus.Port()
	var log rxLog
	var errs []error
	spawnReceiver(bus, "rx", rx, 7, &log)
	spawnSender(bus, "tx", tx, txStartUs, []softcan.Frame{frame}, &errs)
	bus.Spawn("glitch", func() {
		glitch.DelayMicros(txStartUs + int64(glitchIdx)*simBitUs + 20)
		glitch.DigitalWrite(1, false)
		glitch.PinMode(1, softcan.Output)
		glitch.DelayMicros(60)
		glitch.PinMode(1, softcan.Input)
	})
	bus.Run(50_000)

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], softcan.ErrNoAck)
	assert.Equal(t, 8, tx.node.TEC(), "missing ACK scores a transmit error")
	assert.Equal(t, 1, log.errs)
	assert.Equal(t, 1, rx.node.REC())
	assert.Empty(t, log.frames)
}

// crcFieldWindow bounds the backwards search for a recessive wire bit to
// the tail of the frame, which holds the CRC field.
const crcFieldWindow = 15

func TestArbitrationLoss(t *testing.T) {
	low := softcan.MustFrame(0x100, []byte{0xB0, 0x0B})
	high := softcan.MustFrame(0x200, []byte{0xAA})

	bus := sim.New()
	rx := newSimNode(bus)
	loser := newSimNode(bus)
	winner := newSimNode(bus)
	var log rxLog
	var loserErrs, winnerErrs []error
	spawnReceiver(bus, "rx", rx, 7, &log)
	// Both transmitters start their SOF at the same instant; 0x100 beats
	// 0x200 at the second identifier bit.
	spawnSender(bus, "tx-high", loser, txStartUs, []softcan.Frame{high}, &loserErrs)
	spawnSender(bus, "tx-low", winner, txStartUs, []softcan.Frame{low}, &winnerErrs)
	bus.Run(50_000)

	require.Len(t, loserErrs, 1)
	assert.ErrorIs(t, loserErrs[0], softcan.ErrArbitrationLost)
	assert.Equal(t, 0, loser.node.TEC(), "arbitration loss is not a transmit error")
	assert.Equal(t, softcan.ErrorActive, loser.node.State())

	require.Len(t, winnerErrs, 1)
	assert.NoError(t, winnerErrs[0], "the dominant id must win arbitration")
	assert.Equal(t, 0, winner.node.TEC())

	require.Len(t, log.frames, 1)
	assert.Equal(t, low, log.frames[0])
	assert.Zero(t, log.errs)
}

func TestDLCClampOnWire(t *testing.T) {
	over := softcan.Frame{ID: 0x124, DLC: 12}
	for i := range over.Data {
		over.Data[i] = byte(i + 1)
	}

	bus := sim.New()
	rx := newSimNode(bus)
	tx := newSimNode(bus)
	var log rxLog
	var errs []error
	spawnReceiver(bus, "rx", rx, 7, &log)
	spawnSender(bus, "tx", tx, txStartUs, []softcan.Frame{over}, &errs)
	bus.Run(50_000)

	require.Len(t, errs, 1)
	assert.NoError(t, errs[0])
	require.Len(t, log.frames, 1)
	got := log.frames[0]
	assert.Equal(t, uint32(0x124), got.ID)
	assert.Equal(t, uint8(8), got.DLC, "wire advertises the clamped DLC")
	assert.Equal(t, [8]byte{1, 2, 3, 4, 5, 6, 7, 8}, got.Data)
}

func TestStuffViolationIsFrameError(t *testing.T) {
	bus := sim.New()
	rx := newSimNode(bus)
	rogue := bus.Port()
	var log rxLog
	spawnReceiver(bus, "rx", rx, 7, &log)
	// Six dominant bit times with no stuff bit violate the stuffing rule.
	bus.Spawn("rogue", func() {
		rogue.DelayMicros(txStartUs)
		rogue.DigitalWrite(1, false)
		rogue.PinMode(1, softcan.Output)
		rogue.DelayMicros(6 * simBitUs)
		rogue.PinMode(1, softcan.Input)
	})
	bus.Run(20_000)

	assert.Equal(t, 1, log.errs)
	assert.Equal(t, 1, rx.node.REC())
	assert.Empty(t, log.frames)
	assert.Equal(t, softcan.ErrorActive, rx.node.State())
}

func TestIdleBusProducesNothing(t *testing.T) {
	bus := sim.New()
	rx := newSimNode(bus)
	var log rxLog
	spawnReceiver(bus, "rx", rx, 7, &log)
	bus.Run(10_000)

	assert.Positive(t, log.polls)
	assert.Empty(t, log.frames)
	assert.Zero(t, log.errs)
	assert.Equal(t, 0, rx.node.REC())
}
