package bluez

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

const (
	// SPPUUID is the Serial Port Profile UUID.
	SPPUUID = "00001101-0000-1000-8000-00805f9b34fb"

	// DefaultAdapter is used when no adapter is configured.
	DefaultAdapter = "hci0"

	bluezRoot = "/org/bluez/"
	devPrefix = "/dev_"
)

// ErrUnsupported is returned on platforms without BlueZ.
var ErrUnsupported = errors.New("bluez: not supported on this platform (requires Linux)")

var errBadTarget = errors.New("bluez: target is neither a MAC address nor a device path")

// Device describes a discovered SPP device.
type Device struct {
	// Path is the BlueZ Device1 object path, always set.
	Path string
	// MAC is the Bluetooth address.
	MAC string
	// Name and Alias are the Device1 properties, possibly empty.
	Name  string
	Alias string
}

// DisplayName returns the most human-friendly name available.
func (d Device) DisplayName() string {
	switch {
	case d.Alias != "":
		return d.Alias
	case d.Name != "":
		return d.Name
	default:
		return d.MAC
	}
}

// DevicePath resolves target to a Device1 object path on adapter. The target
// is either a MAC address (B8:27:EB:00:00:01) or an object path.
func DevicePath(adapter, target string) (string, error) {
	target = strings.TrimSpace(target)
	if strings.HasPrefix(target, bluezRoot) {
		return target, nil
	}

	hw, err := net.ParseMAC(target)
	if err != nil || len(hw) != 6 {
		return "", fmt.Errorf("%q: %w", target, errBadTarget)
	}

	if adapter == "" {
		adapter = DefaultAdapter
	}

	mac := strings.ToUpper(strings.ReplaceAll(hw.String(), ":", "_"))

	return bluezRoot + adapter + devPrefix + mac, nil
}

// MACFromPath extracts the address from a Device1 object path.
// It returns an empty string when the path is not a device path.
func MACFromPath(path string) string {
	idx := strings.LastIndex(path, devPrefix)
	if idx < 0 {
		return ""
	}

	return strings.ReplaceAll(path[idx+len(devPrefix):], "_", ":")
}

func containsUUID(list []string, target string) bool {
	for _, s := range list {
		if strings.EqualFold(s, target) {
			return true
		}
	}

	return false
}
