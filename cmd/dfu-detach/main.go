// Command dfu-detach finds an attached USB device exposing a run-time
// DFU interface and issues the DFU_DETACH request, asking the device to
// reboot into its bootloader.
package main

import (
	"flag"
	"log/slog"
	"os"
	"strconv"

	"github.com/google/gousb"

	"github.com/ardnew/softdfu/host"
	"github.com/ardnew/softdfu/pkg"
)

// Component identifier for dfu-detach logging.
const componentDetach pkg.Component = "dfu-detach"

var (
	vendorID  = flag.String("vid", "", "Vendor ID (hex, required)")
	productID = flag.String("pid", "", "Product ID (hex, required)")
	serial    = flag.String("serial", "", "Match device by serial number")
	timeout   = flag.Uint("timeout", 255, "Detach timeout in milliseconds (0-65535)")
	readDesc  = flag.Bool("desc", false, "Read and log the DFU functional descriptor first")
	verbose   = flag.Bool("v", false, "Enable verbose logging")
	jsonOut   = flag.Bool("json", false, "Output logs as JSON")
)

func parseID(name, value string) (gousb.ID, bool) {
	if value == "" {
		pkg.LogError(componentDetach, "missing required flag", "flag", name)
		return 0, false
	}
	id, err := strconv.ParseUint(value, 16, 16)
	if err != nil {
		pkg.LogError(componentDetach, "invalid hex value", "flag", name, "value", value)
		return 0, false
	}
	return gousb.ID(id), true
}

func main() {
	flag.Parse()

	if *verbose {
		pkg.SetLogLevel(slog.LevelDebug)
	} else {
		pkg.SetLogLevel(slog.LevelInfo)
	}
	if *jsonOut {
		pkg.SetLogFormat(pkg.LogFormatJSON)
	}

	vid, ok := parseID("vid", *vendorID)
	if !ok {
		flag.Usage()
		os.Exit(2)
	}
	pid, ok := parseID("pid", *productID)
	if !ok {
		flag.Usage()
		os.Exit(2)
	}
	if *timeout > 0xFFFF {
		pkg.LogError(componentDetach, "timeout out of range", "timeout", *timeout)
		os.Exit(2)
	}

	ctx := gousb.NewContext()
	defer ctx.Close()

	dev, err := host.Open(ctx, vid, pid, *serial)
	if err != nil {
		pkg.LogError(componentDetach, "no usable device", "error", err)
		os.Exit(1)
	}
	defer dev.Close()

	pkg.LogInfo(componentDetach, "device opened", "device", dev.String())

	if *readDesc {
		desc, err := dev.ReadFunctionalDescriptor()
		if err != nil {
			pkg.LogWarn(componentDetach, "functional descriptor unavailable", "error", err)
		} else {
			pkg.LogInfo(componentDetach, "functional descriptor",
				"attributes", desc.Attributes,
				"detachTimeoutMS", desc.DetachTimeout,
				"transferSize", desc.TransferSize,
				"dfuVersion", strconv.FormatUint(uint64(desc.DFUVersion), 16))
		}
	}

	if err := dev.Detach(uint16(*timeout)); err != nil {
		pkg.LogError(componentDetach, "detach failed", "error", err)
		os.Exit(1)
	}

	pkg.LogInfo(componentDetach, "detach accepted",
		"timeoutMS", *timeout,
		"message", "device should re-enumerate in DFU mode")
}
