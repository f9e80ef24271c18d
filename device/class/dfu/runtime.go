package dfu

import (
	"sync"

	"github.com/ardnew/softdfu/device"
	"github.com/ardnew/softdfu/pkg"
)

// Ops defines the device-specific operations injected into [Runtime].
//
// Both hooks run on the caller's goroutine. Detach typically reboots the
// device into its bootloader and never returns; Runtime does not rely on
// it returning.
type Ops interface {
	// AllowDetach decides whether a DFU_DETACH request is honored.
	// timeoutMS is the timeout proposed by the host. It returns the
	// effective timeout in ms and whether the detach is accepted; a
	// rejected detach is answered with a STALL and leaves the device in
	// normal operation.
	AllowDetach(timeoutMS uint16) (uint16, bool)

	// Detach switches the device out of normal operation toward DFU mode.
	Detach()
}

// state tracks the detach handshake.
type state uint8

const (
	stateIdle            state = iota // no detach requested
	stateDetachRequested              // waiting for timeout or bus reset
	stateWaitingForReset              // Detach invoked; nothing left to do
)

// String returns a human-readable state name.
func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateDetachRequested:
		return "detach-requested"
	case stateWaitingForReset:
		return "waiting-for-reset"
	default:
		return "unknown"
	}
}

// Runtime implements the DFU run-time class driver.
//
// It answers DFU_DETACH on the control pipe, stalls every other DFU class
// request (those belong to DFU mode), and drives the detach timer from
// [Runtime.Tick]. When the timeout expires, a bus reset arrives first, or
// the configuration says the device detaches itself, [Ops.Detach] runs
// exactly once.
//
// HandleSetup, BusReset, and Tick may be called from an interrupt-style
// context and a main-loop context; the session state is guarded by a
// mutex so the caller does not need to serialize them.
type Runtime struct {
	ops    Ops
	config Config

	// Interface
	iface *device.Interface

	// Session state
	state       state
	remainingMS uint32 // valid in stateDetachRequested
	mutex       sync.Mutex
}

// New creates a DFU run-time class driver with the given device-specific
// operations and configuration.
func New(ops Ops, config Config) *Runtime {
	return &Runtime{
		ops:    ops,
		config: config.withDefaults(),
	}
}

// Config returns the interface configuration.
func (r *Runtime) Config() Config {
	return r.config
}

// Init initializes the class driver for the given interface.
func (r *Runtime) Init(iface *device.Interface) error {
	r.mutex.Lock()
	r.iface = iface
	r.mutex.Unlock()

	pkg.LogDebug(pkg.ComponentDFU, "run-time interface configured",
		"interface", iface.Number,
		"willDetach", r.config.WillDetach,
		"detachTimeoutMS", r.config.DetachTimeout)
	return nil
}

// HandleSetup processes SETUP requests addressed to the DFU interface.
func (r *Runtime) HandleSetup(iface *device.Interface, setup *device.SetupPacket, data, reply []byte) (int, bool, error) {
	// Hosts probe the functional descriptor with an interface-addressed
	// GET_DESCRIPTOR before detaching.
	if setup.IsStandard() && setup.Request == device.RequestGetDescriptor {
		if setup.DescriptorType() != DescriptorTypeFunctional {
			return 0, false, nil
		}
		desc := r.config.FunctionalDescriptor()
		n := desc.MarshalTo(reply)
		if n == 0 {
			return 0, true, pkg.ErrBufferTooSmall
		}
		if int(setup.Length) < n {
			n = int(setup.Length)
		}
		return n, true, nil
	}

	if !setup.IsClass() {
		return 0, false, nil
	}

	// Wrong recipient or mismatched interface number is malformed.
	if !setup.IsInterfaceRecipient() || setup.InterfaceNumber() != iface.Number {
		return 0, true, pkg.ErrStall
	}

	switch setup.Request {
	case RequestDetach:
		if !setup.IsHostToDevice() || setup.Length != 0 {
			return 0, true, pkg.ErrStall
		}
		return 0, true, r.handleDetach(setup.Value)

	default:
		// DFU_DNLOAD, DFU_UPLOAD, DFU_GETSTATUS, ... are only valid once
		// the device has re-enumerated in DFU mode.
		pkg.LogDebug(pkg.ComponentDFU, "request not supported in run-time mode",
			"request", setup.Request)
		return 0, true, pkg.ErrStall
	}
}

// handleDetach runs the DFU_DETACH decision and transition logic.
// hostTimeout is the wValue field: the host's proposed timeout in ms.
func (r *Runtime) handleDetach(hostTimeout uint16) error {
	r.mutex.Lock()
	if r.state == stateWaitingForReset {
		// Already committed to detaching.
		r.mutex.Unlock()
		return pkg.ErrStall
	}
	r.mutex.Unlock()

	timeout, ok := r.ops.AllowDetach(hostTimeout)
	if !ok {
		pkg.LogInfo(pkg.ComponentDFU, "detach rejected by application",
			"hostTimeoutMS", hostTimeout,
			"error", pkg.ErrDetachRejected)
		return pkg.ErrStall
	}
	if timeout > r.config.DetachTimeout {
		timeout = r.config.DetachTimeout
	}

	if r.config.WillDetach {
		r.mutex.Lock()
		if r.state == stateWaitingForReset {
			// Raced with a tick expiry or bus reset while AllowDetach ran.
			r.mutex.Unlock()
			return pkg.ErrStall
		}
		r.state = stateWaitingForReset
		r.mutex.Unlock()

		pkg.LogInfo(pkg.ComponentDFU, "detaching",
			"reason", "will-detach")
		// Typically reboots and never returns; the enclosing stack only
		// gets to ACK the request if it does.
		r.ops.Detach()
		return nil
	}

	r.mutex.Lock()
	if r.state == stateWaitingForReset {
		r.mutex.Unlock()
		return pkg.ErrStall
	}
	r.state = stateDetachRequested
	r.remainingMS = uint32(timeout)
	r.mutex.Unlock()

	pkg.LogInfo(pkg.ComponentDFU, "detach requested",
		"hostTimeoutMS", hostTimeout,
		"effectiveTimeoutMS", timeout)
	return nil
}

// Tick advances the detach timer by elapsedMS milliseconds. It must be
// called regularly from the application's main loop; it is the only place
// where time passes for the state machine. Cheap and non-blocking outside
// the detach transition itself.
func (r *Runtime) Tick(elapsedMS uint32) {
	r.mutex.Lock()
	if r.state != stateDetachRequested {
		r.mutex.Unlock()
		return
	}
	if elapsedMS < r.remainingMS {
		r.remainingMS -= elapsedMS
		r.mutex.Unlock()
		return
	}
	r.remainingMS = 0
	r.state = stateWaitingForReset
	r.mutex.Unlock()

	pkg.LogInfo(pkg.ComponentDFU, "detaching",
		"reason", "timeout")
	r.ops.Detach()
}

// BusReset notifies the state machine of a USB bus reset. A reset during
// the detach window means the host aborted the wait early; the detach
// happens immediately.
func (r *Runtime) BusReset() {
	r.mutex.Lock()
	if r.state != stateDetachRequested {
		r.mutex.Unlock()
		return
	}
	r.remainingMS = 0
	r.state = stateWaitingForReset
	r.mutex.Unlock()

	pkg.LogInfo(pkg.ComponentDFU, "detaching",
		"reason", "bus reset")
	r.ops.Detach()
}

// ClassDescriptorTo writes the DFU functional descriptor to buf so the
// configuration descriptor carries it after the interface descriptor.
func (r *Runtime) ClassDescriptorTo(buf []byte) int {
	desc := r.config.FunctionalDescriptor()
	return desc.MarshalTo(buf)
}

// Close releases resources held by the class driver.
func (r *Runtime) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.iface = nil
	r.state = stateIdle
	r.remainingMS = 0
	return nil
}

// ConfigureInterface creates the run-time interface, adds it to config,
// and attaches this driver to it.
func (r *Runtime) ConfigureInterface(config *device.Configuration, number, stringIndex uint8) (*device.Interface, error) {
	desc := r.config.InterfaceDescriptor(number, stringIndex)
	iface := device.NewInterface(&desc)
	if err := config.AddInterface(iface); err != nil {
		return nil, err
	}
	if err := iface.SetClassDriver(r); err != nil {
		return nil, err
	}
	return iface, nil
}

// Compile-time interface checks
var (
	_ device.ClassDriver           = (*Runtime)(nil)
	_ device.ClassDescriptorWriter = (*Runtime)(nil)
)
