package cpytool

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Device is a CircuitPython composite USB device:
// a mass-storage partition holding the CIRCUITPY drive,
// plus (usually) a serial console.
type Device struct {
	Vendor string `toml:"vendor"`
	Model  string `toml:"model"`
	Serial string `toml:"serial"`

	// PartitionPath is the block device of the CIRCUITPY partition.
	PartitionPath string `toml:"partition_path"`

	// SerialPath is the serial console device, if any.
	SerialPath string `toml:"serial_path,omitempty"`

	// Mountpoint is where the partition is mounted, if it is.
	Mountpoint string `toml:"mountpoint,omitempty"`
}

var (
	// ErrNotMounted is the error returned by MountIfNeeded for a device with no mountpoint.
	ErrNotMounted = errors.New("device is not mounted")

	// ErrNoDevice means a query matched no devices.
	ErrNoDevice = errors.New("no matching device")

	// ErrAmbiguous means a query matched more than one device.
	ErrAmbiguous = errors.New("query matches more than one device")
)

// Key is a unique and sortable identifier for d.
func (d Device) Key() string {
	return d.Vendor + ":" + d.Model + ":" + d.Serial
}

func (d Device) String() string {
	s := fmt.Sprintf("%s %s (serial %s)", d.Vendor, d.Model, d.Serial)
	if d.Mountpoint != "" {
		s += " at " + d.Mountpoint
	}
	return s
}

// ConnectionTime is when the device was plugged in,
// as inferred from the modification time of its partition device node.
// It is the zero time if the partition path does not exist.
func (d Device) ConnectionTime() time.Time {
	info, err := os.Stat(d.PartitionPath)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// MountIfNeeded returns the directory where d's CIRCUITPY drive is mounted.
// Mounting is the job of the system (or the user);
// a device that is not yet mounted produces ErrNotMounted.
func (d Device) MountIfNeeded() (string, error) {
	if d.Mountpoint == "" {
		return "", errors.Wrapf(ErrNotMounted, "device %s", d.Key())
	}
	info, err := os.Stat(d.Mountpoint)
	if err != nil {
		return "", errors.Wrapf(err, "checking mountpoint of %s", d.Key())
	}
	if !info.IsDir() {
		return "", errors.Errorf("mountpoint %s of %s is not a directory", d.Mountpoint, d.Key())
	}
	return d.Mountpoint, nil
}

// Query selects devices.
// Each non-empty field must be a substring of the corresponding Device field.
// The zero Query matches every device.
type Query struct {
	Vendor, Model, Serial string
}

// ParseQuery parses a query of the form VENDOR:MODEL:SERIAL.
// Any component may be empty.
// The empty string parses to the zero Query.
func ParseQuery(s string) (Query, error) {
	if s == "" {
		return Query{}, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Query{}, errors.Errorf("expected 3 query components in %q, found %d", s, len(parts))
	}
	return Query{Vendor: parts[0], Model: parts[1], Serial: parts[2]}, nil
}

func (q Query) String() string {
	return q.Vendor + ":" + q.Model + ":" + q.Serial
}

// Matches tells whether d is selected by q.
func (q Query) Matches(d Device) bool {
	return strings.Contains(d.Vendor, q.Vendor) &&
		strings.Contains(d.Model, q.Model) &&
		strings.Contains(d.Serial, q.Serial)
}

// Filter returns the devices matched by q, sorted by Key.
func (q Query) Filter(devices []Device) []Device {
	var result []Device
	for _, d := range devices {
		if q.Matches(d) {
			result = append(result, d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key() < result[j].Key() })
	return result
}

// Distinct returns the single device matched by q.
// It is an error for q to match zero devices or more than one.
func (q Query) Distinct(devices []Device) (Device, error) {
	matches := q.Filter(devices)
	switch len(matches) {
	case 0:
		return Device{}, errors.Wrapf(ErrNoDevice, "query %s", q)
	case 1:
		return matches[0], nil
	default:
		return Device{}, errors.Wrapf(ErrAmbiguous, "query %s (%d devices)", q, len(matches))
	}
}
