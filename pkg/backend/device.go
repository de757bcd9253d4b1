package backend

import (
	"fmt"
	"runtime"
	"strings"
)

// DeviceKind selects the class of device a backend runs on
type DeviceKind int

const (
	DeviceCPU DeviceKind = iota
	DeviceGPU

	// DeviceAuto prefers a GPU and falls back to the CPU
	DeviceAuto
)

func (k DeviceKind) String() string {
	switch k {
	case DeviceCPU:
		return "cpu"
	case DeviceGPU:
		return "gpu"
	case DeviceAuto:
		return "auto"
	default:
		return fmt.Sprintf("device(%d)", int(k))
	}
}

// ParseDeviceKind parses "cpu", "gpu" or "auto"
func ParseDeviceKind(s string) (DeviceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cpu":
		return DeviceCPU, nil
	case "gpu":
		return DeviceGPU, nil
	case "auto", "":
		return DeviceAuto, nil
	default:
		return 0, fmt.Errorf("unknown device kind %q", s)
	}
}

// Device describes a compute device
type Device struct {
	Kind    DeviceKind
	Name    string
	Threads int
}

// Devices lists the devices available in this build
func Devices() []Device {
	return []Device{{
		Kind:    DeviceCPU,
		Name:    fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		Threads: runtime.NumCPU(),
	}}
}

// Open returns a backend on the first device of the requested kind.
// DeviceAuto tries the GPU first and then the CPU.
func Open(kind DeviceKind, workers int) (Backend, error) {
	if kind == DeviceAuto {
		if be, err := Open(DeviceGPU, workers); err == nil {
			return be, nil
		}
		return Open(DeviceCPU, workers)
	}
	for _, d := range Devices() {
		if d.Kind != kind {
			continue
		}
		switch d.Kind {
		case DeviceCPU:
			return NewCPU(d, workers), nil
		}
	}
	return nil, fmt.Errorf("while opening %v backend: %w", kind, ErrNoDevice)
}
