package host

import (
	"fmt"

	"github.com/google/gousb"

	"github.com/ardnew/softdfu/device"
	"github.com/ardnew/softdfu/device/class/dfu"
	"github.com/ardnew/softdfu/pkg"
)

// RuntimeInterface identifies a run-time DFU interface within a device's
// descriptor tree.
type RuntimeInterface struct {
	Config    int // bConfigurationValue
	Interface int // bInterfaceNumber
	Alternate int // bAlternateSetting
}

// FindRuntimeInterface scans a device descriptor tree for an interface
// with the run-time DFU identification codes (class 0xFE, subclass 0x01,
// protocol 0x01).
func FindRuntimeInterface(desc *gousb.DeviceDesc) (RuntimeInterface, bool) {
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if uint8(alt.Class) == dfu.ClassApplicationSpecific &&
					uint8(alt.SubClass) == dfu.SubclassFirmwareUpgrade &&
					uint8(alt.Protocol) == dfu.ProtocolRuntime {
					return RuntimeInterface{
						Config:    cfg.Number,
						Interface: intf.Number,
						Alternate: alt.Alternate,
					}, true
				}
			}
		}
	}
	return RuntimeInterface{}, false
}

// Device wraps an open gousb device carrying a run-time DFU interface.
type Device struct {
	dev  *gousb.Device
	intf RuntimeInterface

	Serial  string
	Product string
}

// Open opens the first device matching vid:pid that carries a run-time
// DFU interface. If serial is non-empty, only a device with that serial
// number matches. Returns pkg.ErrNoDevice if no device matches, or
// pkg.ErrNoInterface if a matching device has no run-time DFU interface.
func Open(ctx *gousb.Context, vid, pid gousb.ID, serial string) (*Device, error) {
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == vid && desc.Product == pid
	})
	if err != nil {
		// OpenDevices may return opened devices alongside an error
		for _, d := range devs {
			d.Close()
		}
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devs) == 0 {
		return nil, pkg.ErrNoDevice
	}

	var (
		selected *Device
		seen     bool
	)
	for _, d := range devs {
		if selected != nil {
			d.Close()
			continue
		}

		sn, _ := d.SerialNumber()
		if serial != "" && sn != serial {
			d.Close()
			continue
		}
		seen = true

		ri, ok := FindRuntimeInterface(d.Desc)
		if !ok {
			pkg.LogWarn(pkg.ComponentHost, "device has no run-time DFU interface",
				"vid", vid, "pid", pid, "serial", sn)
			d.Close()
			continue
		}

		product, _ := d.Product()
		selected = &Device{
			dev:     d,
			intf:    ri,
			Serial:  sn,
			Product: product,
		}
		pkg.LogDebug(pkg.ComponentHost, "run-time DFU interface found",
			"config", ri.Config,
			"interface", ri.Interface,
			"alternate", ri.Alternate)
	}

	if selected == nil {
		if seen {
			return nil, pkg.ErrNoInterface
		}
		return nil, pkg.ErrNoDevice
	}
	return selected, nil
}

// detachRequestType is the bmRequestType of DFU_DETACH: host-to-device,
// class, interface recipient.
const detachRequestType = device.RequestDirectionHostToDevice |
	device.RequestTypeClass | device.RequestRecipientInterface

// Detach issues DFU_DETACH with the given timeout in milliseconds. The
// device either acknowledges and begins its transition toward DFU mode,
// or stalls the request (detach refused or unsupported).
func (d *Device) Detach(timeoutMS uint16) error {
	pkg.LogInfo(pkg.ComponentHost, "issuing DFU_DETACH",
		"interface", d.intf.Interface,
		"timeoutMS", timeoutMS)

	_, err := d.dev.Control(detachRequestType, dfu.RequestDetach,
		timeoutMS, uint16(d.intf.Interface), nil)
	if err != nil {
		return fmt.Errorf("detach request: %w", err)
	}
	return nil
}

// ReadFunctionalDescriptor requests the DFU functional descriptor from
// the run-time interface. gousb does not expose class-specific extra
// descriptors from the configuration, so it is fetched with a direct
// GET_DESCRIPTOR control transfer.
func (d *Device) ReadFunctionalDescriptor() (dfu.FunctionalDescriptor, error) {
	const requestType = device.RequestDirectionDeviceToHost |
		device.RequestTypeStandard | device.RequestRecipientInterface

	var desc dfu.FunctionalDescriptor
	var buf [dfu.FunctionalDescriptorSize]byte
	n, err := d.dev.Control(requestType, device.RequestGetDescriptor,
		uint16(dfu.DescriptorTypeFunctional)<<8, uint16(d.intf.Interface), buf[:])
	if err != nil {
		return desc, fmt.Errorf("functional descriptor request: %w", err)
	}
	if err := dfu.ParseFunctionalDescriptor(buf[:n], &desc); err != nil {
		return desc, err
	}
	return desc, nil
}

// String returns a human-readable device identity.
func (d *Device) String() string {
	return fmt.Sprintf("%s [%s] interface %d", d.Product, d.Serial, d.intf.Interface)
}

// Close releases the underlying USB device.
func (d *Device) Close() error {
	return d.dev.Close()
}
