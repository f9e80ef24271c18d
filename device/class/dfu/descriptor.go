package dfu

import (
	"encoding/binary"

	"github.com/ardnew/softdfu/device"
	"github.com/ardnew/softdfu/pkg"
)

// Config holds the advertised capabilities of the run-time interface.
//
// It is fixed for the life of the device: the descriptor bytes emitted
// from a Config are deterministic, and the state machine reads it without
// locking.
type Config struct {
	CanDownload           bool // bitCanDnload: firmware download supported in DFU mode
	CanUpload             bool // bitCanUpload: firmware upload supported in DFU mode
	ManifestationTolerant bool // bitManifestationTolerant
	WillDetach            bool // bitWillDetach: device detaches itself, no tick needed

	DetachTimeout uint16 // wDetachTimeOut: maximum detach timeout in ms
	TransferSize  uint16 // wTransferSize: maximum transfer unit in DFU mode
	DFUVersion    uint16 // bcdDFUVersion (0x011A for 1.1a)
}

// DefaultConfig returns the configuration advertised by the reference
// firmware: download and upload capable, not manifestation tolerant,
// will-detach, 255 ms timeout, 2048-byte transfers.
func DefaultConfig() Config {
	return Config{
		CanDownload:   true,
		CanUpload:     true,
		WillDetach:    true,
		DetachTimeout: DefaultDetachTimeout,
		TransferSize:  DefaultTransferSize,
		DFUVersion:    Version,
	}
}

// withDefaults fills unset numeric fields with their defaults.
func (c Config) withDefaults() Config {
	if c.DetachTimeout == 0 {
		c.DetachTimeout = DefaultDetachTimeout
	}
	if c.TransferSize == 0 {
		c.TransferSize = DefaultTransferSize
	}
	if c.DFUVersion == 0 {
		c.DFUVersion = Version
	}
	return c
}

// Attributes packs the capability flags into the bmAttributes byte.
func (c Config) Attributes() uint8 {
	var attr uint8
	if c.CanDownload {
		attr |= AttrCanDownload
	}
	if c.CanUpload {
		attr |= AttrCanUpload
	}
	if c.ManifestationTolerant {
		attr |= AttrManifestationTolerant
	}
	if c.WillDetach {
		attr |= AttrWillDetach
	}
	return attr
}

// InterfaceDescriptor returns the 9-byte run-time interface descriptor
// for the given interface number and string index. The class, subclass,
// and protocol codes are fixed by the DFU run-time class.
func (c Config) InterfaceDescriptor(number, stringIndex uint8) device.InterfaceDescriptor {
	return device.InterfaceDescriptor{
		Length:            device.InterfaceDescriptorSize,
		DescriptorType:    device.DescriptorTypeInterface,
		InterfaceNumber:   number,
		AlternateSetting:  0,
		NumEndpoints:      0,
		InterfaceClass:    ClassApplicationSpecific,
		InterfaceSubClass: SubclassFirmwareUpgrade,
		InterfaceProtocol: ProtocolRuntime,
		InterfaceIndex:    stringIndex,
	}
}

// FunctionalDescriptor represents the DFU functional descriptor (9 bytes,
// USB DFU 1.1 §4.1.3).
type FunctionalDescriptor struct {
	Length         uint8  // Size of this descriptor (9)
	DescriptorType uint8  // DFU FUNCTIONAL (0x21)
	Attributes     uint8  // bmAttributes capability bits
	DetachTimeout  uint16 // wDetachTimeOut in ms
	TransferSize   uint16 // wTransferSize in bytes
	DFUVersion     uint16 // bcdDFUVersion
}

// FunctionalDescriptorSize is the size of the DFU functional descriptor
// in bytes.
const FunctionalDescriptorSize = 9

// FunctionalDescriptor returns the functional descriptor for this
// configuration.
func (c Config) FunctionalDescriptor() FunctionalDescriptor {
	c = c.withDefaults()
	return FunctionalDescriptor{
		Length:         FunctionalDescriptorSize,
		DescriptorType: DescriptorTypeFunctional,
		Attributes:     c.Attributes(),
		DetachTimeout:  c.DetachTimeout,
		TransferSize:   c.TransferSize,
		DFUVersion:     c.DFUVersion,
	}
}

// MarshalTo serializes the functional descriptor to buf.
// Returns the number of bytes written (always 9 if buf is large enough).
func (d *FunctionalDescriptor) MarshalTo(buf []byte) int {
	if len(buf) < FunctionalDescriptorSize {
		return 0
	}
	buf[0] = FunctionalDescriptorSize
	buf[1] = DescriptorTypeFunctional
	buf[2] = d.Attributes
	binary.LittleEndian.PutUint16(buf[3:5], d.DetachTimeout)
	binary.LittleEndian.PutUint16(buf[5:7], d.TransferSize)
	binary.LittleEndian.PutUint16(buf[7:9], d.DFUVersion)
	return FunctionalDescriptorSize
}

// ParseFunctionalDescriptor parses a functional descriptor from bytes into
// out. Returns an error if the data is too short or the descriptor type is
// wrong.
func ParseFunctionalDescriptor(data []byte, out *FunctionalDescriptor) error {
	if len(data) < FunctionalDescriptorSize {
		return pkg.ErrDescriptorTooShort
	}
	if data[1] != DescriptorTypeFunctional {
		return pkg.ErrDescriptorTypeMismatch
	}
	out.Length = data[0]
	out.DescriptorType = data[1]
	out.Attributes = data[2]
	out.DetachTimeout = binary.LittleEndian.Uint16(data[3:5])
	out.TransferSize = binary.LittleEndian.Uint16(data[5:7])
	out.DFUVersion = binary.LittleEndian.Uint16(data[7:9])
	return nil
}
