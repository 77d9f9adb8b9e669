// Package softcan implements a software-only Controller Area Network
// (CAN 2.0A) node that transmits and receives standard 11-bit-identifier
// frames by bit-banging two digital I/O lines, without a CAN controller.
//
// It includes:
//   - A core Frame type with validation and binary marshaling helpers
//   - A Node with a blocking bit-banged transmitter (SOF, bit stuffing,
//     per-bit arbitration, CRC-15, ACK slot) and a non-blocking,
//     cadence-driven receiver state machine
//   - Fault confinement (TEC/REC counters and the Error-Active,
//     Error-Passive and Bus-Off states)
//   - A Pump that drives a Node from a background goroutine and fans
//     frames out to filtered subscribers
//   - A Linux sysfs GPIO backend (linux-only)
//
// The node consumes only the HostIO primitives: a monotonic microsecond
// clock, a blocking microsecond delay, and two digital pins. The sim
// package provides a deterministic in-memory wired-AND bus implementing
// HostIO for tests and simulations.
package softcan
