// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"plugin"
	"sort"

	"github.com/sarvex/yabridge/lib/vst3"
)

// EntryPoint is the symbol a plugin exports. Its type must be
// func() vst3.PluginFactory.
const EntryPoint = "GetPluginFactory"

// ErrNotFound is returned when no plugin exists under the requested
// name or path.
var ErrNotFound = errors.New("plugin not found")

// Loader returns the factory of the plugin identified by path.
type Loader interface {
	Load(path string) (vst3.PluginFactory, error)
}

// GoPluginLoader loads Go plugins (-buildmode=plugin shared objects).
// A shared object stays mapped for the life of the process.
type GoPluginLoader struct{}

// Load opens the shared object at path and calls its entry point.
func (GoPluginLoader) Load(path string) (vst3.PluginFactory, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	library, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	symbol, err := library.Lookup(EntryPoint)
	if err != nil {
		return nil, fmt.Errorf("%s does not export %s: %w", path, EntryPoint, err)
	}
	entry, ok := symbol.(func() vst3.PluginFactory)
	if !ok {
		return nil, fmt.Errorf("%s: %s has type %T, want func() vst3.PluginFactory", path, EntryPoint, symbol)
	}
	return call(path, entry)
}

// StaticLoader maps names to entry points compiled into the binary.
type StaticLoader map[string]func() vst3.PluginFactory

// Load calls the entry point registered under name.
func (l StaticLoader) Load(name string) (vst3.PluginFactory, error) {
	entry, ok := l[name]
	if !ok {
		return nil, fmt.Errorf("%w: no built-in plugin %q (have %v)", ErrNotFound, name, l.Names())
	}
	return call(name, entry)
}

// Names returns the registered names in sorted order.
func (l StaticLoader) Names() []string {
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func call(name string, entry func() vst3.PluginFactory) (vst3.PluginFactory, error) {
	factory := entry()
	if factory == nil {
		return nil, fmt.Errorf("%s: %s returned no factory", name, EntryPoint)
	}
	return factory, nil
}
