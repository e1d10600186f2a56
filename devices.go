package cpytool

import (
	stderrs "errors"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

type deviceFile struct {
	Devices []Device `toml:"devices"`
}

// DefaultDevicesPath is where device definitions are read from
// when no other path is given.
func DefaultDevicesPath() string {
	if p := os.Getenv("CIRCUITPYTHON_TOOL_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "devices.toml"
	}
	return filepath.Join(dir, "circuitpython-tool", "devices.toml")
}

// ReadDevices decodes a TOML list of [[devices]] tables.
func ReadDevices(r io.Reader) ([]Device, error) {
	var f deviceFile
	if _, err := toml.NewDecoder(r).Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decoding devices")
	}
	for i, d := range f.Devices {
		if d.Vendor == "" || d.Model == "" || d.Serial == "" {
			return nil, errors.Errorf("device %d: vendor, model, and serial are required", i)
		}
	}
	return f.Devices, nil
}

// LoadDevices reads device definitions from the TOML file at path.
// A nonexistent file means no devices.
func LoadDevices(path string) ([]Device, error) {
	f, err := os.Open(path)
	if stderrs.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	devices, err := ReadDevices(f)
	return devices, errors.Wrapf(err, "reading %s", path)
}

// WriteDevices encodes devices as TOML, in the format ReadDevices reads.
func WriteDevices(w io.Writer, devices []Device) error {
	err := toml.NewEncoder(w).Encode(deviceFile{Devices: devices})
	return errors.Wrap(err, "encoding devices")
}

// SaveDevices writes devices to the TOML file at path,
// creating its directory if needed.
func SaveDevices(path string, devices []Device) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "creating directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	if err = WriteDevices(f, devices); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	return errors.Wrapf(f.Close(), "closing %s", path)
}
