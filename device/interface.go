package device

import (
	"sync"

	"github.com/ardnew/softdfu/pkg"
)

// MaxInterfacesPerConfiguration is the maximum number of interfaces per
// configuration.
const MaxInterfacesPerConfiguration = 8

// MaxClassDescriptorSize is the largest class-specific descriptor block an
// interface may append to the configuration descriptor.
const MaxClassDescriptorSize = 64

// Interface represents a USB interface within a configuration.
//
// A DFU run-time interface carries no endpoints: every request it handles
// travels over the default control pipe.
type Interface struct {
	// Descriptor data
	Number           uint8 // Interface number
	AlternateSetting uint8 // Current alternate setting
	Class            uint8 // Interface class
	SubClass         uint8 // Interface subclass
	Protocol         uint8 // Interface protocol

	// String descriptor index
	StringIndex uint8

	// Class driver
	classDriver ClassDriver
	mutex       sync.RWMutex
}

// ClassDriver defines the interface for USB class-specific handling.
type ClassDriver interface {
	// Init initializes the class driver for the interface.
	Init(iface *Interface) error

	// HandleSetup processes a SETUP request addressed to the interface.
	// data holds the OUT data stage (may be nil), reply receives the IN
	// data stage. Returns the number of reply bytes written, whether the
	// request was recognized, and an error if the request must be answered
	// with a STALL handshake.
	HandleSetup(iface *Interface, setup *SetupPacket, data, reply []byte) (int, bool, error)

	// BusReset is called when the host issues a USB bus reset.
	BusReset()

	// Close releases any resources held by the class driver.
	Close() error
}

// ClassDescriptorWriter is implemented by class drivers that append
// class-specific descriptors immediately after their interface descriptor
// in the configuration descriptor.
type ClassDescriptorWriter interface {
	// ClassDescriptorTo writes the class-specific descriptor block to buf.
	// Returns the number of bytes written, or 0 if buf is too small.
	ClassDescriptorTo(buf []byte) int
}

// NewInterface creates a new interface from a descriptor.
func NewInterface(desc *InterfaceDescriptor) *Interface {
	return &Interface{
		Number:           desc.InterfaceNumber,
		AlternateSetting: desc.AlternateSetting,
		Class:            desc.InterfaceClass,
		SubClass:         desc.InterfaceSubClass,
		Protocol:         desc.InterfaceProtocol,
		StringIndex:      desc.InterfaceIndex,
	}
}

// SetClassDriver sets the class driver for this interface.
func (i *Interface) SetClassDriver(driver ClassDriver) error {
	i.mutex.Lock()
	oldDriver := i.classDriver
	i.classDriver = driver
	i.mutex.Unlock()

	// Close old driver outside the lock
	if oldDriver != nil {
		if err := oldDriver.Close(); err != nil {
			pkg.LogWarn(pkg.ComponentDevice, "error closing previous class driver",
				"error", err)
		}
	}

	// Initialize new driver outside the lock to avoid re-entrant locking
	// when driver callbacks access interface methods
	if driver != nil {
		return driver.Init(i)
	}
	return nil
}

// ClassDriver returns the current class driver.
func (i *Interface) ClassDriver() ClassDriver {
	i.mutex.RLock()
	defer i.mutex.RUnlock()
	return i.classDriver
}

// HandleSetup forwards a SETUP request to the class driver.
func (i *Interface) HandleSetup(setup *SetupPacket, data, reply []byte) (int, bool, error) {
	i.mutex.RLock()
	driver := i.classDriver
	i.mutex.RUnlock()

	if driver == nil {
		return 0, false, nil
	}
	return driver.HandleSetup(i, setup, data, reply)
}

// BusReset forwards a bus reset notification to the class driver.
func (i *Interface) BusReset() {
	i.mutex.RLock()
	driver := i.classDriver
	i.mutex.RUnlock()

	if driver != nil {
		driver.BusReset()
	}
}

// ClassDescriptorTo writes the class driver's class-specific descriptors
// to buf. Returns 0 if the driver carries none.
func (i *Interface) ClassDescriptorTo(buf []byte) int {
	i.mutex.RLock()
	driver := i.classDriver
	i.mutex.RUnlock()

	if writer, ok := driver.(ClassDescriptorWriter); ok {
		return writer.ClassDescriptorTo(buf)
	}
	return 0
}

// Descriptor returns the interface descriptor.
func (i *Interface) Descriptor() *InterfaceDescriptor {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	return &InterfaceDescriptor{
		Length:            InterfaceDescriptorSize,
		DescriptorType:    DescriptorTypeInterface,
		InterfaceNumber:   i.Number,
		AlternateSetting:  i.AlternateSetting,
		NumEndpoints:      0,
		InterfaceClass:    i.Class,
		InterfaceSubClass: i.SubClass,
		InterfaceProtocol: i.Protocol,
		InterfaceIndex:    i.StringIndex,
	}
}

// Close releases resources held by the interface.
func (i *Interface) Close() error {
	i.mutex.Lock()
	driver := i.classDriver
	i.classDriver = nil
	i.mutex.Unlock()

	if driver != nil {
		return driver.Close()
	}
	return nil
}

// Configuration represents a USB device configuration.
type Configuration struct {
	// Descriptor data
	Value       uint8 // Configuration value for SET_CONFIGURATION
	Attributes  uint8 // Configuration attributes (bus/self powered, remote wakeup)
	MaxPower    uint8 // Maximum power consumption (2mA units)
	StringIndex uint8 // String descriptor index

	// Interfaces - fixed-size array for zero allocation
	interfaces     [MaxInterfacesPerConfiguration]*Interface
	interfaceCount int
	mutex          sync.RWMutex
}

// NewConfiguration creates a new configuration.
func NewConfiguration(value uint8) *Configuration {
	return &Configuration{
		Value:      value,
		Attributes: ConfigAttrBusPowered,
		MaxPower:   50, // 100mA default
	}
}

// AddInterface adds an interface to the configuration.
func (c *Configuration) AddInterface(iface *Interface) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.interfaceCount >= MaxInterfacesPerConfiguration {
		return pkg.ErrNoMemory
	}

	// Check for duplicate interface number
	for idx := 0; idx < c.interfaceCount; idx++ {
		if c.interfaces[idx].Number == iface.Number {
			return pkg.ErrBusy
		}
	}

	c.interfaces[c.interfaceCount] = iface
	c.interfaceCount++

	pkg.LogDebug(pkg.ComponentDevice, "interface added to configuration",
		"config", c.Value,
		"interface", iface.Number)

	return nil
}

// GetInterface returns the interface with the given number.
func (c *Configuration) GetInterface(number uint8) *Interface {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	for idx := 0; idx < c.interfaceCount; idx++ {
		if c.interfaces[idx].Number == number {
			return c.interfaces[idx]
		}
	}
	return nil
}

// Interfaces returns all interfaces in the configuration.
// The returned slice references internal storage; do not modify.
func (c *Configuration) Interfaces() []*Interface {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.interfaces[:c.interfaceCount]
}

// NumInterfaces returns the number of interfaces.
func (c *Configuration) NumInterfaces() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.interfaceCount
}

// Descriptor returns the configuration descriptor.
func (c *Configuration) Descriptor() *ConfigurationDescriptor {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.descriptorLocked()
}

// descriptorLocked builds the configuration descriptor.
// Caller must hold the mutex.
func (c *Configuration) descriptorLocked() *ConfigurationDescriptor {
	return &ConfigurationDescriptor{
		Length:             ConfigurationDescriptorSize,
		DescriptorType:     DescriptorTypeConfiguration,
		TotalLength:        c.calculateTotalLength(),
		NumInterfaces:      uint8(c.interfaceCount),
		ConfigurationValue: c.Value,
		ConfigurationIndex: c.StringIndex,
		Attributes:         c.Attributes,
		MaxPower:           c.MaxPower,
	}
}

// calculateTotalLength calculates the total configuration descriptor length,
// including class-specific descriptor blocks. Caller must hold the mutex.
func (c *Configuration) calculateTotalLength() uint16 {
	length := uint16(ConfigurationDescriptorSize)

	var scratch [MaxClassDescriptorSize]byte
	for idx := 0; idx < c.interfaceCount; idx++ {
		iface := c.interfaces[idx]
		length += InterfaceDescriptorSize
		length += uint16(iface.ClassDescriptorTo(scratch[:]))
	}

	return length
}

// MarshalTo writes the full configuration descriptor including all
// interface and class-specific descriptors to buf.
// Returns the number of bytes written, or 0 if buf is too small.
func (c *Configuration) MarshalTo(buf []byte) int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	offset := 0

	// Configuration descriptor
	n := c.descriptorLocked().MarshalTo(buf[offset:])
	if n == 0 {
		return 0
	}
	offset += n

	// Interfaces and their class-specific descriptors
	for idx := 0; idx < c.interfaceCount; idx++ {
		iface := c.interfaces[idx]
		n = iface.Descriptor().MarshalTo(buf[offset:])
		if n == 0 {
			return 0
		}
		offset += n

		// Stage class descriptors through a scratch buffer so a short buf
		// is detected rather than silently truncated.
		var scratch [MaxClassDescriptorSize]byte
		cn := iface.ClassDescriptorTo(scratch[:])
		if cn > len(buf[offset:]) {
			return 0
		}
		copy(buf[offset:], scratch[:cn])
		offset += cn
	}

	return offset
}

// SetSelfPowered sets or clears the self-powered attribute.
func (c *Configuration) SetSelfPowered(selfPowered bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if selfPowered {
		c.Attributes |= ConfigAttrSelfPowered
	} else {
		c.Attributes &^= ConfigAttrSelfPowered
	}
}

// IsSelfPowered returns true if the configuration is self-powered.
func (c *Configuration) IsSelfPowered() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.Attributes&ConfigAttrSelfPowered != 0
}

// Close releases resources held by the configuration.
func (c *Configuration) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var lastErr error
	for idx := 0; idx < c.interfaceCount; idx++ {
		if err := c.interfaces[idx].Close(); err != nil {
			lastErr = err
		}
		c.interfaces[idx] = nil
	}
	c.interfaceCount = 0
	return lastErr
}
