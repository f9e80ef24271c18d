// Package device implements the narrow device-side USB surface that class
// drivers plug into: SETUP packet handling, descriptor marshaling, and
// control-request dispatch to interfaces.
//
// It is the seam between a class implementation (such as
// [github.com/ardnew/softdfu/device/class/dfu]) and whatever enclosing USB
// stack or hardware layer actually moves bytes on the bus. The enclosing
// stack delivers SETUP packets to [Device.HandleControl] and answers the
// host according to the result: reply bytes for an IN data stage, a
// zero-length ACK, or a STALL handshake when an error is returned.
//
// # Control-Only Scope
//
// Only the default control pipe is modeled. There is no endpoint registry
// and no transfer engine: a DFU run-time interface declares zero endpoints
// and every request it understands travels over EP0.
//
// # Zero-Allocation Design
//
// The package follows zero-allocation patterns suitable for bare-metal and
// TinyGo targets:
//
//   - Serialization via MarshalTo(buf) instead of allocating Bytes()
//   - Parse functions with output parameters instead of returning pointers
//   - Fixed-size arrays instead of maps for interfaces and configurations
//   - Caller-provided buffers for descriptor generation and reply data
//
// # Class Drivers
//
// The [ClassDriver] interface enables class implementations:
//
//	type ClassDriver interface {
//	    Init(iface *Interface) error
//	    HandleSetup(iface *Interface, setup *SetupPacket, data, reply []byte) (int, bool, error)
//	    BusReset()
//	    Close() error
//	}
//
// Drivers that carry class-specific descriptors after their interface
// descriptor additionally implement [ClassDescriptorWriter]; the bytes are
// folded into the configuration descriptor during enumeration.
package device
