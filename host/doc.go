// Package host provides the host-side counterpart to the device run-time
// class: locating a run-time DFU interface on an attached USB device and
// issuing the DFU_DETACH request that sends the device toward DFU mode.
//
// It is built on github.com/google/gousb. After a successful detach the
// device typically drops off the bus and re-enumerates as its bootloader
// with a different product ID; talking to the bootloader is the job of a
// DFU-mode tool (dfu-util or similar), not this package.
//
// # Usage
//
//	ctx := gousb.NewContext()
//	defer ctx.Close()
//
//	dev, err := host.Open(ctx, 0x1209, 0x0001, "")
//	if err != nil {
//	    // handle pkg.ErrNoDevice / pkg.ErrNoInterface
//	}
//	defer dev.Close()
//
//	if err := dev.Detach(255); err != nil {
//	    // the device rejected or stalled the request
//	}
package host
