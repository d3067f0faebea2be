package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Keymap binds key names (as tcell names them, e.g. "j", "Enter",
// "Ctrl+U") to command names
type Keymap map[string]string

// keymapFile is the on-disk layout of a key map
type keymapFile struct {
	Bindings map[string]string `yaml:"bindings"`
	// Unbind drops default bindings
	Unbind []string `yaml:"unbind"`
}

// DefaultKeymap returns the built-in key bindings
func DefaultKeymap() Keymap {
	return Keymap{
		"g":      "activateFirst",
		"G":      "activateLast",
		"k":      "stepUp",
		"Up":     "stepUp",
		"j":      "stepDown",
		"Down":   "stepDown",
		"h":      "stepOutward",
		"Left":   "stepOutward",
		"l":      "stepInward",
		"Right":  "stepInward",
		"z":      "toggleGroupCollapse",
		"Tab":    "toggleGroupCollapse",
		" ":      "toggleSelect",
		"f":      "toggleFlatFocused",
		"Enter":  "openActive",
		"d":      "deleteActive",
		"x":      "markDoneActive",
		"t":      "tagActive",
		"m":      "groupActive",
		"u":      "undo",
		"R":      "refresh",
		"Ctrl+R": "refresh",
	}
}

// LoadKeymap returns the default key map merged with the bindings in
// path. An empty path yields the defaults.
func LoadKeymap(path string) (Keymap, error) {
	km := DefaultKeymap()
	if strings.TrimSpace(path) == "" {
		return km, nil
	}
	data, err := os.ReadFile(expandTilde(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read keymap: %w", err)
	}
	if err := km.Merge(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to parse keymap %s: %w", path, err)
	}
	return km, nil
}

// Merge applies a YAML key map document on top of km
func (km Keymap) Merge(r io.Reader) error {
	var file keymapFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	for _, key := range file.Unbind {
		delete(km, key)
	}
	for key, command := range file.Bindings {
		if key == "" {
			return fmt.Errorf("empty key bound to %q", command)
		}
		if strings.TrimSpace(command) == "" {
			delete(km, key)
			continue
		}
		km[key] = strings.TrimSpace(command)
	}
	return nil
}

// Validate reports bindings to commands outside known
func (km Keymap) Validate(known []string) error {
	valid := make(map[string]struct{}, len(known))
	for _, name := range known {
		valid[name] = struct{}{}
	}
	var bad []string
	for key, command := range km {
		if _, ok := valid[command]; !ok {
			bad = append(bad, fmt.Sprintf("%q -> %q", key, command))
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return fmt.Errorf("unknown commands in keymap: %s", strings.Join(bad, ", "))
	}
	return nil
}

// Keys returns the keys bound to command, sorted
func (km Keymap) Keys(command string) []string {
	var keys []string
	for key, c := range km {
		if c == command {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Save writes the key map as YAML, readable by the owner only
func (km Keymap) Save(path string) error {
	data, err := yaml.Marshal(keymapFile{Bindings: km})
	if err != nil {
		return fmt.Errorf("failed to encode keymap: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
