package dfu

import (
	"errors"
	"testing"

	"github.com/ardnew/softdfu/pkg"
)

func TestConfigAttributes(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   uint8
	}{
		{"none", Config{}, 0x00},
		{"download only", Config{CanDownload: true}, AttrCanDownload},
		{"upload only", Config{CanUpload: true}, AttrCanUpload},
		{"manifestation tolerant", Config{ManifestationTolerant: true}, AttrManifestationTolerant},
		{"will detach", Config{WillDetach: true}, AttrWillDetach},
		{
			"reference firmware",
			Config{CanDownload: true, CanUpload: true, WillDetach: true},
			AttrCanDownload | AttrCanUpload | AttrWillDetach,
		},
		{
			"all",
			Config{CanDownload: true, CanUpload: true, ManifestationTolerant: true, WillDetach: true},
			0x0F,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.Attributes(); got != tt.want {
				t.Errorf("Attributes() = 0x%02X, want 0x%02X", got, tt.want)
			}
		})
	}
}

func TestFunctionalDescriptorRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"defaults", DefaultConfig()},
		{
			"download only short timeout",
			Config{CanDownload: true, DetachTimeout: 50, TransferSize: 64, DFUVersion: 0x0110},
		},
		{
			"manifestation tolerant no detach",
			Config{CanUpload: true, ManifestationTolerant: true, DetachTimeout: 1000, TransferSize: 4096, DFUVersion: Version},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := tt.config.FunctionalDescriptor()

			var buf [FunctionalDescriptorSize]byte
			n := desc.MarshalTo(buf[:])
			if n != FunctionalDescriptorSize {
				t.Fatalf("MarshalTo() = %d, want %d", n, FunctionalDescriptorSize)
			}

			var parsed FunctionalDescriptor
			if err := ParseFunctionalDescriptor(buf[:], &parsed); err != nil {
				t.Fatalf("ParseFunctionalDescriptor() error = %v", err)
			}
			if parsed != desc {
				t.Errorf("round-trip failed: got %+v, want %+v", parsed, desc)
			}

			// Fields decode back to the configuration
			want := tt.config.withDefaults()
			if parsed.Attributes != want.Attributes() {
				t.Errorf("Attributes = 0x%02X, want 0x%02X", parsed.Attributes, want.Attributes())
			}
			if parsed.DetachTimeout != want.DetachTimeout {
				t.Errorf("DetachTimeout = %d, want %d", parsed.DetachTimeout, want.DetachTimeout)
			}
			if parsed.TransferSize != want.TransferSize {
				t.Errorf("TransferSize = %d, want %d", parsed.TransferSize, want.TransferSize)
			}
			if parsed.DFUVersion != want.DFUVersion {
				t.Errorf("DFUVersion = 0x%04X, want 0x%04X", parsed.DFUVersion, want.DFUVersion)
			}
		})
	}
}

func TestFunctionalDescriptorWireLayout(t *testing.T) {
	config := Config{
		CanDownload:   true,
		CanUpload:     true,
		WillDetach:    true,
		DetachTimeout: 255,
		TransferSize:  2048,
		DFUVersion:    0x011A,
	}
	desc := config.FunctionalDescriptor()

	var buf [FunctionalDescriptorSize]byte
	desc.MarshalTo(buf[:])

	want := []byte{
		9,    // bLength
		0x21, // bDescriptorType: DFU FUNCTIONAL
		0x0B, // bmAttributes: will-detach | upload | download
		0xFF, 0x00, // wDetachTimeOut = 255 LE
		0x00, 0x08, // wTransferSize = 2048 LE
		0x1A, 0x01, // bcdDFUVersion = 0x011A LE
	}
	for i := range want {
		if buf[i] != want[i] {
			t.Errorf("byte %d = 0x%02X, want 0x%02X", i, buf[i], want[i])
		}
	}
}

func TestParseFunctionalDescriptorErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"too short", []byte{9, 0x21, 0x0B}, pkg.ErrDescriptorTooShort},
		{"wrong type", []byte{9, 0x04, 0x0B, 0xFF, 0x00, 0x00, 0x08, 0x1A, 0x01}, pkg.ErrDescriptorTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out FunctionalDescriptor
			err := ParseFunctionalDescriptor(tt.data, &out)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseFunctionalDescriptor() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInterfaceDescriptor(t *testing.T) {
	config := DefaultConfig()
	desc := config.InterfaceDescriptor(2, 5)

	if desc.InterfaceClass != ClassApplicationSpecific {
		t.Errorf("InterfaceClass = 0x%02X, want 0x%02X", desc.InterfaceClass, ClassApplicationSpecific)
	}
	if desc.InterfaceSubClass != SubclassFirmwareUpgrade {
		t.Errorf("InterfaceSubClass = 0x%02X, want 0x%02X", desc.InterfaceSubClass, SubclassFirmwareUpgrade)
	}
	if desc.InterfaceProtocol != ProtocolRuntime {
		t.Errorf("InterfaceProtocol = 0x%02X, want 0x%02X", desc.InterfaceProtocol, ProtocolRuntime)
	}
	if desc.NumEndpoints != 0 {
		t.Errorf("NumEndpoints = %d, want 0", desc.NumEndpoints)
	}
	if desc.InterfaceNumber != 2 || desc.InterfaceIndex != 5 {
		t.Errorf("number/string = %d/%d, want 2/5", desc.InterfaceNumber, desc.InterfaceIndex)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	got := Config{CanDownload: true}.withDefaults()
	if got.DetachTimeout != DefaultDetachTimeout {
		t.Errorf("DetachTimeout = %d, want %d", got.DetachTimeout, DefaultDetachTimeout)
	}
	if got.TransferSize != DefaultTransferSize {
		t.Errorf("TransferSize = %d, want %d", got.TransferSize, DefaultTransferSize)
	}
	if got.DFUVersion != Version {
		t.Errorf("DFUVersion = 0x%04X, want 0x%04X", got.DFUVersion, Version)
	}
}
