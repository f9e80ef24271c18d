package dfu

// DFU interface identification codes (USB DFU 1.1 §4.2.1).
const (
	ClassApplicationSpecific = 0xFE // bInterfaceClass
	SubclassFirmwareUpgrade  = 0x01 // bInterfaceSubClass
	ProtocolRuntime          = 0x01 // bInterfaceProtocol in run-time mode
	ProtocolMode             = 0x02 // bInterfaceProtocol in DFU mode
)

// DescriptorTypeFunctional is the DFU functional descriptor type (0x21).
const DescriptorTypeFunctional = 0x21

// DFU class request codes (USB DFU 1.1 Table 3.2).
//
// Only DFU_DETACH is meaningful to the run-time interface; the remaining
// codes exist so callers can name what they are rejecting.
const (
	RequestDetach    = 0x00 // DFU_DETACH
	RequestDnload    = 0x01 // DFU_DNLOAD (DFU mode only)
	RequestUpload    = 0x02 // DFU_UPLOAD (DFU mode only)
	RequestGetStatus = 0x03 // DFU_GETSTATUS (DFU mode only)
	RequestClrStatus = 0x04 // DFU_CLRSTATUS (DFU mode only)
	RequestGetState  = 0x05 // DFU_GETSTATE (DFU mode only)
	RequestAbort     = 0x06 // DFU_ABORT (DFU mode only)
)

// Functional descriptor bmAttributes bits (USB DFU 1.1 §4.1.3).
const (
	AttrCanDownload           = 1 << 0 // bitCanDnload
	AttrCanUpload             = 1 << 1 // bitCanUpload
	AttrManifestationTolerant = 1 << 2 // bitManifestationTolerant
	AttrWillDetach            = 1 << 3 // bitWillDetach
)

// Version is the DFU specification release number in BCD (1.1a).
const Version = 0x011A

// Default configuration values.
const (
	DefaultDetachTimeout = 255  // ms
	DefaultTransferSize  = 2048 // bytes
)
