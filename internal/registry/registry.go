// ABOUTME: Device registry loaded from the persisted device list
// ABOUTME: Parses and writes ordered [device_id, display_name] pairs and enumerates backends
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Resonate-Protocol/multiplay/internal/config"
	"github.com/Resonate-Protocol/multiplay/internal/logging"
	"github.com/Resonate-Protocol/multiplay/pkg/audio/output"
	"gopkg.in/yaml.v3"
)

// Device identifies one output device. Identity is ID.
type Device struct {
	ID   int
	Name string
}

// String formats the device for logs and summaries
func (d Device) String() string {
	return fmt.Sprintf("%d (%s)", d.ID, d.Name)
}

// MarshalJSON encodes the device as an [id, name] pair
func (d Device) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{d.ID, d.Name})
}

// Registry is an ordered, read-only set of devices
type Registry struct {
	devices []Device
	byID    map[int]int
}

// New builds a registry, rejecting duplicate ids and empty names
func New(devices ...Device) (*Registry, error) {
	r := &Registry{
		devices: make([]Device, 0, len(devices)),
		byID:    make(map[int]int, len(devices)),
	}
	for _, d := range devices {
		if d.Name == "" {
			return nil, fmt.Errorf("%w: device %d has an empty name", config.ErrMissingOrMalformed, d.ID)
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate device id %d", config.ErrMissingOrMalformed, d.ID)
		}
		r.byID[d.ID] = len(r.devices)
		r.devices = append(r.devices, d)
	}
	return r, nil
}

// List returns the devices in file order
func (r *Registry) List() []Device {
	return append([]Device(nil), r.devices...)
}

// Len returns the number of devices
func (r *Registry) Len() int {
	return len(r.devices)
}

// Lookup returns the device with the given id
func (r *Registry) Lookup(id int) (Device, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Device{}, false
	}
	return r.devices[i], true
}

// Load reads a device list file. The list must be a non-empty sequence of
// [device_id, display_name] pairs; JSON and YAML are both accepted.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read device list: %w", config.ErrMissingOrMalformed, err)
	}

	devices, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", config.ErrMissingOrMalformed, path, err)
	}

	r, err := New(devices...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	logging.GetLogger("registry").Debug("Device list loaded", "path", path, "devices", r.Len())
	return r, nil
}

func parse(data []byte) ([]Device, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse device list: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("device list is empty")
	}

	root := doc.Content[0]
	if root.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: device list must be a sequence of pairs", root.Line)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("device list is empty")
	}

	devices := make([]Device, 0, len(root.Content))
	for i, row := range root.Content {
		if row.Kind != yaml.SequenceNode || len(row.Content) != 2 {
			return nil, fmt.Errorf("line %d: entry %d must be a [device_id, display_name] pair", row.Line, i)
		}
		idNode, nameNode := row.Content[0], row.Content[1]
		if idNode.Kind != yaml.ScalarNode || nameNode.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: entry %d must hold scalar values", row.Line, i)
		}

		var d Device
		if idNode.ShortTag() != "!!int" {
			return nil, fmt.Errorf("line %d: device id %q is not an integer", idNode.Line, idNode.Value)
		}
		if err := idNode.Decode(&d.ID); err != nil {
			return nil, fmt.Errorf("line %d: invalid device id: %w", idNode.Line, err)
		}
		if d.ID < 0 {
			return nil, fmt.Errorf("line %d: device id %d is negative", idNode.Line, d.ID)
		}
		if nameNode.ShortTag() != "!!str" {
			return nil, fmt.Errorf("line %d: device name %q is not a string", nameNode.Line, nameNode.Value)
		}
		d.Name = nameNode.Value
		devices = append(devices, d)
	}
	return devices, nil
}

// Save writes devices as an indented JSON pair list
func Save(path string, devices []Device) error {
	if devices == nil {
		devices = []Device{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	if err := enc.Encode(devices); err != nil {
		return fmt.Errorf("failed to encode device list: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write device list: %w", err)
	}
	return nil
}

// Enumerate lists the backend's output-capable devices, dropping later
// devices whose display name repeats an earlier one.
func Enumerate(backend output.Backend) ([]output.Device, error) {
	all, err := backend.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate %s devices: %w", backend.Name(), err)
	}

	logger := logging.GetLogger("registry")
	seen := make(map[string]bool, len(all))
	devices := make([]output.Device, 0, len(all))
	for _, d := range all {
		if d.MaxOutputChannels <= 0 {
			continue
		}
		if seen[d.Name] {
			logger.Debug("Skipping duplicate device name", "device_id", d.ID, "name", d.Name)
			continue
		}
		seen[d.Name] = true
		devices = append(devices, d)
	}
	return devices, nil
}

// FromOutput converts backend devices into registry devices
func FromOutput(devices []output.Device) []Device {
	out := make([]Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, Device{ID: d.ID, Name: d.Name})
	}
	return out
}
