// Package xcubus provides a simulated CAN transport over UDP for tests
// and bench environments without bus hardware.
//
// It includes:
//   - A Frame type carrying CAN FD length codes, with a compact binary
//     wire codec (15-byte header + payload)
//   - A process-wide channel registry that multiplexes any number of
//     in-process bus endpoints onto named simulated buses
//   - A UDP bus endpoint that transmits encoded frames to a fixed
//     listener and dequeues delivered frames with timeout semantics
//   - A relay that decodes incoming datagrams back into registry
//     channels, plus a subscriber mux and a logging decorator
package xcubus
