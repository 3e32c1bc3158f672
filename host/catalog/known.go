package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-pluginhost/host/plugin"
)

const (
	knownListVersion = 1
	appDirName       = "algo-pluginhost"
	knownListFile    = "plugins.yaml"
)

// KnownList is the set of descriptors found by previous scans, keyed by
// plugin.Descriptor.Identifier. It is safe for concurrent use.
type KnownList struct {
	mu    sync.RWMutex
	items []plugin.Descriptor
	index map[string]int
}

type knownListDoc struct {
	Version int                 `yaml:"version"`
	Plugins []plugin.Descriptor `yaml:"plugins"`
}

// NewKnownList returns an empty list.
func NewKnownList() *KnownList {
	return &KnownList{index: make(map[string]int)}
}

// DefaultPath returns the catalog location in the user's configuration
// directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("catalog: locate config dir: %w", err)
	}

	return filepath.Join(dir, appDirName, knownListFile), nil
}

// LoadKnownList reads a catalog file. A missing file yields an empty list.
// Entries that fail plugin.Descriptor.Validate are dropped.
func LoadKnownList(path string) (*KnownList, error) {
	k := NewKnownList()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return k, nil
	}

	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}

	var f knownListDoc
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}

	if f.Version > knownListVersion {
		return nil, fmt.Errorf("catalog: %s: unsupported version %d", path, f.Version)
	}

	for _, d := range f.Plugins {
		if d.Validate() == nil {
			k.Add(d)
		}
	}

	return k, nil
}

// Save writes the list to path, creating parent directories. The file is
// replaced atomically.
func (k *KnownList) Save(path string) error {
	data, err := yaml.Marshal(knownListDoc{Version: knownListVersion, Plugins: k.Descriptors()})
	if err != nil {
		return fmt.Errorf("catalog: encode: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("catalog: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("catalog: create temp file: %w", err)
	}

	tmpPath := tmp.Name()
	success := false

	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("catalog: write: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("catalog: close: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("catalog: rename: %w", err)
	}

	success = true

	return nil
}

// Add inserts d or replaces the entry with the same identifier. It reports
// whether d was new.
func (k *KnownList) Add(d plugin.Descriptor) bool {
	id := d.Identifier()

	k.mu.Lock()
	defer k.mu.Unlock()

	if i, ok := k.index[id]; ok {
		k.items[i] = d
		return false
	}

	k.index[id] = len(k.items)
	k.items = append(k.items, d)

	return true
}

// Remove deletes the entry with the given identifier.
func (k *KnownList) Remove(id string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	i, ok := k.index[id]
	if !ok {
		return false
	}

	k.items = slices.Delete(k.items, i, i+1)
	delete(k.index, id)

	for j := i; j < len(k.items); j++ {
		k.index[k.items[j].Identifier()] = j
	}

	return true
}

// Lookup returns the descriptor with the given identifier.
func (k *KnownList) Lookup(id string) (plugin.Descriptor, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	i, ok := k.index[id]
	if !ok {
		return plugin.Descriptor{}, false
	}

	return k.items[i], true
}

// HasPath reports whether a descriptor loaded from path is known.
func (k *KnownList) HasPath(path string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return slices.ContainsFunc(k.items, func(d plugin.Descriptor) bool {
		return d.Path != "" && d.Path == path
	})
}

// Find returns the known descriptors whose name contains query,
// case-insensitively. An empty query matches everything.
func (k *KnownList) Find(query string) []plugin.Descriptor {
	query = strings.ToLower(query)

	var out []plugin.Descriptor

	for _, d := range k.Descriptors() {
		if strings.Contains(strings.ToLower(d.Name), query) {
			out = append(out, d)
		}
	}

	return out
}

// Len returns the number of known descriptors.
func (k *KnownList) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return len(k.items)
}

// Descriptors returns a copy of the list in insertion order.
func (k *KnownList) Descriptors() []plugin.Descriptor {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return slices.Clone(k.items)
}
