package device

import (
	"sync"

	"github.com/ardnew/softdfu/pkg"
)

// MaxConfigurations is the maximum number of configurations per device.
const MaxConfigurations = 4

// Device represents the device-side view of the USB function: its
// configurations, the active configuration, and the control-request
// dispatch that routes interface-addressed requests to class drivers.
//
// The enclosing stack owns enumeration and the actual bus transport; it
// feeds SETUP packets to [Device.HandleControl] and bus resets to
// [Device.Reset].
type Device struct {
	// Configurations - fixed-size array for zero allocation
	configurations     [MaxConfigurations]*Configuration
	configurationCount int
	activeConfig       *Configuration

	// Synchronization
	mutex sync.RWMutex

	// Event callback
	onReset func()
}

// NewDevice creates a new USB device.
func NewDevice() *Device {
	return &Device{}
}

// AddConfiguration adds a configuration to the device. The first
// configuration added becomes the active configuration.
func (d *Device) AddConfiguration(config *Configuration) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.configurationCount >= MaxConfigurations {
		return pkg.ErrNoMemory
	}

	// Check for duplicate configuration value
	for idx := 0; idx < d.configurationCount; idx++ {
		if d.configurations[idx].Value == config.Value {
			return pkg.ErrBusy
		}
	}

	d.configurations[d.configurationCount] = config
	d.configurationCount++
	if d.activeConfig == nil {
		d.activeConfig = config
	}

	pkg.LogDebug(pkg.ComponentDevice, "configuration added",
		"value", config.Value)

	return nil
}

// GetConfiguration returns the configuration with the given value.
func (d *Device) GetConfiguration(value uint8) *Configuration {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	for idx := 0; idx < d.configurationCount; idx++ {
		if d.configurations[idx].Value == value {
			return d.configurations[idx]
		}
	}
	return nil
}

// ActiveConfiguration returns the currently active configuration.
func (d *Device) ActiveConfiguration() *Configuration {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.activeConfig
}

// SetConfiguration selects the active configuration by value, as on a
// SET_CONFIGURATION request from the host.
func (d *Device) SetConfiguration(value uint8) error {
	config := d.GetConfiguration(value)
	if config == nil {
		return pkg.ErrInvalidParameter
	}

	d.mutex.Lock()
	d.activeConfig = config
	d.mutex.Unlock()

	pkg.LogDebug(pkg.ComponentDevice, "configuration selected",
		"value", value)
	return nil
}

// GetInterface returns the interface with the given number from the
// active configuration.
func (d *Device) GetInterface(number uint8) *Interface {
	d.mutex.RLock()
	config := d.activeConfig
	d.mutex.RUnlock()

	if config == nil {
		return nil
	}
	return config.GetInterface(number)
}

// HandleControl dispatches a SETUP request to the addressed interface's
// class driver. data holds the OUT data stage (may be nil), reply receives
// the IN data stage. Returns the number of reply bytes.
//
// A non-nil error means the request must be answered with a STALL
// handshake; a nil error with n == 0 means a zero-length ACK.
func (d *Device) HandleControl(setup *SetupPacket, data, reply []byte) (int, error) {
	pkg.LogDebug(pkg.ComponentDevice, "setup received",
		"request", setup.String())

	// Only interface-addressed class requests and interface-addressed
	// GET_DESCRIPTOR reach class drivers; everything else belongs to the
	// enclosing stack's standard request handling.
	routable := setup.IsInterfaceRecipient() &&
		(setup.IsClass() ||
			(setup.IsStandard() && setup.Request == RequestGetDescriptor))
	if !routable {
		return 0, pkg.ErrInvalidRequest
	}

	iface := d.GetInterface(setup.InterfaceNumber())
	if iface == nil {
		pkg.LogWarn(pkg.ComponentDevice, "setup for unknown interface",
			"interface", setup.InterfaceNumber())
		return 0, pkg.ErrStall
	}

	n, handled, err := iface.HandleSetup(setup, data, reply)
	if !handled {
		return 0, pkg.ErrStall
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Reset handles a USB bus reset: every class driver in the active
// configuration is notified, then the reset callback runs.
func (d *Device) Reset() {
	d.mutex.RLock()
	config := d.activeConfig
	callback := d.onReset
	d.mutex.RUnlock()

	pkg.LogDebug(pkg.ComponentDevice, "bus reset")

	if config != nil {
		for _, iface := range config.Interfaces() {
			iface.BusReset()
		}
	}
	if callback != nil {
		callback()
	}
}

// SetOnReset sets the bus reset callback.
func (d *Device) SetOnReset(cb func()) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.onReset = cb
}

// Close releases resources held by the device.
func (d *Device) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	var lastErr error
	for idx := 0; idx < d.configurationCount; idx++ {
		if err := d.configurations[idx].Close(); err != nil {
			lastErr = err
		}
		d.configurations[idx] = nil
	}
	d.configurationCount = 0
	d.activeConfig = nil
	return lastErr
}
