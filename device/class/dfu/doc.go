// Package dfu implements the run-time portion of the USB Device Firmware
// Upgrade (DFU) class, specification version 1.1a.
//
// DFU defines two USB classes: DFU mode, used to transfer new firmware and
// flash the device, and the run-time class, which advertises DFU capability
// on a normally operating device and handles the detach handshake that
// moves it toward DFU mode. This package implements only the run-time
// class: it answers DFU_DETACH and stalls everything else. Firmware
// transfer belongs to the bootloader the device detaches into.
//
// # Detach Handshake
//
// The host issues DFU_DETACH with a proposed timeout. The application's
// [Ops.AllowDetach] hook may reject it (the request is stalled and nothing
// changes) or accept it with an effective timeout, which is clamped to the
// configured maximum.
//
// What happens next depends on [Config.WillDetach]:
//
//   - WillDetach true: [Ops.Detach] runs immediately, within the request.
//   - WillDetach false: the machine arms a timer and waits. The detach
//     fires when the timer expires on a [Runtime.Tick], or earlier if the
//     host issues a bus reset.
//
// Either way [Ops.Detach] runs exactly once. It typically reboots the
// device into a DFU-capable bootloader and never returns.
//
// # Integration
//
// The application's main loop must call [Runtime.Tick] regularly (every
// few milliseconds) with the elapsed time; it is the only place where time
// passes for the state machine. The enclosing stack delivers control
// requests through the [device.ClassDriver] contract and bus resets
// through [Runtime.BusReset].
//
//	ops := &bootloaderOps{}
//	rt := dfu.New(ops, dfu.DefaultConfig())
//
//	config := device.NewConfiguration(1)
//	rt.ConfigureInterface(config, 0, 0)
//
//	dev := device.NewDevice()
//	dev.AddConfiguration(config)
//
//	for {
//	    // ... poll the USB stack ...
//	    rt.Tick(1) // every 1 ms
//	}
//
// # Descriptors
//
// The run-time interface descriptor (class 0xFE, subclass 0x01, protocol
// 0x01, zero endpoints) and the 9-byte DFU functional descriptor are
// emitted from [Config]. The functional descriptor is appended to the
// configuration descriptor automatically and also served in response to
// an interface-addressed GET_DESCRIPTOR.
//
// # References
//
//   - USB Device Firmware Upgrade Specification, Revision 1.1
package dfu
