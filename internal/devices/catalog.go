package devices

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is the catalog file used when none is configured.
const DefaultPath = "devices.toml"

// ErrNotFound is returned for unknown device IDs.
var ErrNotFound = errors.New("device not found")

// Device is a camera known to the catalog.
type Device struct {
	ID    string `toml:"-" json:"id"`
	Label string `toml:"label" json:"label"`
	URL   string `toml:"url" json:"url"`
}

// file is the on-disk layout:
//
//	version = 1
//	[devices.front-door]
//	label = "Front door"
//	url = "rtsp://10.0.0.5:554/live"
type file struct {
	Version int               `toml:"version"`
	Devices map[string]Device `toml:"devices"`
}

// LoadFile reads and validates a catalog file. A missing file is an empty catalog.
func LoadFile(path string) (map[string]Device, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Device{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read device catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog TOML. Labels default to the device ID.
func Parse(data []byte) (map[string]Device, error) {
	var f file
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse device catalog: %w", err)
	}

	devices := make(map[string]Device, len(f.Devices))
	for id, d := range f.Devices {
		d.ID = id
		if d.Label == "" {
			d.Label = id
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		devices[id] = d
	}
	return devices, nil
}

// Validate checks the device ID and stream URL.
func (d Device) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.New("device id is required")
	}
	if d.URL == "" {
		return fmt.Errorf("device %s: url is required", d.ID)
	}
	u, err := url.Parse(d.URL)
	if err != nil {
		return fmt.Errorf("device %s: invalid url: %w", d.ID, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("device %s: url must include scheme and host", d.ID)
	}
	return nil
}

// Diff describes how a reload changed the catalog.
type Diff struct {
	Added   []Device
	Removed []Device
	// Changed holds the new definitions of devices whose URL or label changed.
	Changed []Device
}

// Empty reports whether nothing changed.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Catalog is the in-memory device catalog. Safe for concurrent use.
type Catalog struct {
	path    string
	mu      sync.RWMutex
	devices map[string]Device
}

// NewCatalog creates an empty catalog backed by path.
func NewCatalog(path string) *Catalog {
	if path == "" {
		path = DefaultPath
	}
	return &Catalog{path: path, devices: make(map[string]Device)}
}

// Path returns the backing file path.
func (c *Catalog) Path() string {
	return c.path
}

// Load reads the backing file, replacing the current contents.
func (c *Catalog) Load() error {
	devices, err := LoadFile(c.path)
	if err != nil {
		return err
	}
	c.Replace(devices)
	return nil
}

// Save writes the catalog to the backing file.
func (c *Catalog) Save() error {
	c.mu.RLock()
	f := file{Version: 1, Devices: make(map[string]Device, len(c.devices))}
	for id, d := range c.devices {
		f.Devices[id] = d
	}
	c.mu.RUnlock()

	data, err := toml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal device catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write device catalog: %w", err)
	}
	return nil
}

// Put adds or replaces a device in memory. Call Save to persist.
func (c *Catalog) Put(d Device) error {
	if d.Label == "" {
		d.Label = d.ID
	}
	if err := d.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.devices[d.ID] = d
	c.mu.Unlock()
	return nil
}

// Replace swaps in a new device set and returns what changed.
func (c *Catalog) Replace(devices map[string]Device) Diff {
	c.mu.Lock()
	defer c.mu.Unlock()

	var diff Diff
	for id, d := range devices {
		old, ok := c.devices[id]
		switch {
		case !ok:
			diff.Added = append(diff.Added, d)
		case old.URL != d.URL || old.Label != d.Label:
			diff.Changed = append(diff.Changed, d)
		}
	}
	for id, old := range c.devices {
		if _, ok := devices[id]; !ok {
			diff.Removed = append(diff.Removed, old)
		}
	}

	next := make(map[string]Device, len(devices))
	for id, d := range devices {
		next[id] = d
	}
	c.devices = next

	sortDevices(diff.Added)
	sortDevices(diff.Removed)
	sortDevices(diff.Changed)
	return diff
}

// Get returns a device by ID.
func (c *Catalog) Get(id string) (Device, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.devices[id]
	if !ok {
		return Device{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d, nil
}

// List returns all devices ordered by ID.
func (c *Catalog) List() []Device {
	c.mu.RLock()
	list := make([]Device, 0, len(c.devices))
	for _, d := range c.devices {
		list = append(list, d)
	}
	c.mu.RUnlock()
	sortDevices(list)
	return list
}

func sortDevices(list []Device) {
	slices.SortFunc(list, func(a, b Device) int { return strings.Compare(a.ID, b.ID) })
}
