package device

import (
	"testing"
)

func TestParseSetupPacket(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    SetupPacket
		wantErr bool
	}{
		{
			name: "GET_DESCRIPTOR device",
			data: []byte{0x80, 0x06, 0x00, 0x01, 0x00, 0x00, 0x12, 0x00},
			want: SetupPacket{
				RequestType: 0x80,
				Request:     0x06,
				Value:       0x0100,
				Index:       0x0000,
				Length:      18,
			},
		},
		{
			name: "DFU_DETACH class interface",
			data: []byte{0x21, 0x00, 0xFF, 0x00, 0x02, 0x00, 0x00, 0x00},
			want: SetupPacket{
				RequestType: 0x21,
				Request:     0x00,
				Value:       255,
				Index:       2,
				Length:      0,
			},
		},
		{
			name: "SET_CONFIGURATION",
			data: []byte{0x00, 0x09, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00},
			want: SetupPacket{
				RequestType: 0x00,
				Request:     0x09,
				Value:       1,
				Index:       0,
				Length:      0,
			},
		},
		{
			name:    "too short",
			data:    []byte{0x21, 0x00, 0xFF},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got SetupPacket
			err := ParseSetupPacket(tt.data, &got)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseSetupPacket() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if got != tt.want {
				t.Errorf("ParseSetupPacket() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSetupPacketMarshalTo(t *testing.T) {
	pkt := SetupPacket{
		RequestType: 0x21,
		Request:     0x00,
		Value:       0x00FF,
		Index:       0x0000,
		Length:      0,
	}

	var buf [SetupPacketSize]byte
	n := pkt.MarshalTo(buf[:])
	if n != SetupPacketSize {
		t.Errorf("MarshalTo() length = %d, want %d", n, SetupPacketSize)
	}

	// Parse it back
	var parsed SetupPacket
	err := ParseSetupPacket(buf[:], &parsed)
	if err != nil {
		t.Fatalf("ParseSetupPacket() error = %v", err)
	}
	if parsed != pkt {
		t.Errorf("round-trip failed: got %+v, want %+v", parsed, pkt)
	}
}

func TestSetupPacketPredicates(t *testing.T) {
	tests := []struct {
		name        string
		requestType uint8
		wantD2H     bool
		wantClass   bool
		wantIface   bool
	}{
		{"standard device OUT", 0x00, false, false, false},
		{"standard device IN", 0x80, true, false, false},
		{"class interface OUT", 0x21, false, true, true},
		{"class interface IN", 0xA1, true, true, true},
		{"vendor device OUT", 0x40, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := SetupPacket{RequestType: tt.requestType}
			if got := s.IsDeviceToHost(); got != tt.wantD2H {
				t.Errorf("IsDeviceToHost() = %v, want %v", got, tt.wantD2H)
			}
			if got := s.IsHostToDevice(); got == tt.wantD2H {
				t.Errorf("IsHostToDevice() = %v, want %v", got, !tt.wantD2H)
			}
			if got := s.IsClass(); got != tt.wantClass {
				t.Errorf("IsClass() = %v, want %v", got, tt.wantClass)
			}
			if got := s.IsInterfaceRecipient(); got != tt.wantIface {
				t.Errorf("IsInterfaceRecipient() = %v, want %v", got, tt.wantIface)
			}
		})
	}
}

func TestClassInterfaceSetup(t *testing.T) {
	var s SetupPacket
	ClassInterfaceSetup(&s, RequestDirectionHostToDevice, 0x00, 255, 2, 0)

	if s.RequestType != 0x21 {
		t.Errorf("RequestType = 0x%02X, want 0x21", s.RequestType)
	}
	if s.Request != 0x00 {
		t.Errorf("Request = 0x%02X, want 0x00", s.Request)
	}
	if s.Value != 255 {
		t.Errorf("Value = %d, want 255", s.Value)
	}
	if s.InterfaceNumber() != 2 {
		t.Errorf("InterfaceNumber() = %d, want 2", s.InterfaceNumber())
	}
	if s.Length != 0 {
		t.Errorf("Length = %d, want 0", s.Length)
	}
}

func TestGetInterfaceDescriptorSetup(t *testing.T) {
	var s SetupPacket
	GetInterfaceDescriptorSetup(&s, 1, 0x21, 9)

	if s.RequestType != 0x81 {
		t.Errorf("RequestType = 0x%02X, want 0x81", s.RequestType)
	}
	if s.Request != RequestGetDescriptor {
		t.Errorf("Request = 0x%02X, want 0x%02X", s.Request, RequestGetDescriptor)
	}
	if s.DescriptorType() != 0x21 {
		t.Errorf("DescriptorType() = 0x%02X, want 0x21", s.DescriptorType())
	}
	if s.InterfaceNumber() != 1 {
		t.Errorf("InterfaceNumber() = %d, want 1", s.InterfaceNumber())
	}
	if s.Length != 9 {
		t.Errorf("Length = %d, want 9", s.Length)
	}
}

func TestSetupPacketString(t *testing.T) {
	s := SetupPacket{RequestType: 0x21, Request: 0x00, Value: 255, Index: 0, Length: 0}
	got := s.String()
	want := "SETUP[OUT Class Interface] Request=0x00 Value=0x00FF Index=0x0000 Length=0"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
