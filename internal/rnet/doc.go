// Package rnet implements the Russound RNet bus protocol engine.
//
// RNet is the binary bus spoken by Russound multi-zone audio controllers
// (CAV/CAM/CAA/MCA). The controller is reached over an RS-232 line or a
// serial-to-TCP adapter; either way the engine sees a raw byte stream.
//
// # Architecture
//
// Data flows through five layers, leaf first:
//
//	transport bytes ─► StreamParser ─► Decode ─► Listener.ZoneStateChanged
//	                                                       ▲
//	SendLogicalCommand ─► Encode ─► FinalizeFrame ─► Manager.SendCommand
//
//   - Checksum / FinalizeFrame: the RNet checksum and the 0xF7 terminator
//   - Template / Encode: fixed-layout command templates patched per zone
//   - StreamParser: reassembles 0xF7-terminated frames from arbitrary chunks
//   - Decode: fixed-priority matchers turning frames into zone state updates
//   - Manager: transport lifecycle, retry scheduling and dispatch
//
// # Addressing
//
// Zones are addressed by ZoneID{Controller, Zone}, both 1-based. On the wire
// both are zero-based:
//
//	zone, _ := rnet.NewZoneID(1, 3)
//	frame, _ := rnet.BuildCommand(rnet.VolumeSet, zone, 20)
//
// # Connection strings
//
//   - "/tcp/192.168.1.40:9999" → TCP (serial-to-ethernet adapter)
//   - "/dev/ttyUSB0"          → local serial port
//
// # Thread Safety
//
// Manager is safe for concurrent use. StreamParser is not; each transport
// session owns its own parser.
package rnet
