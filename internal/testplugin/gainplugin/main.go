// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

// Command gainplugin is the gain test plugin packaged as a Go plugin:
//
//	go build -buildmode=plugin -o gain.so ./internal/testplugin/gainplugin
//
// yabridge-host loads the result with lib/loader.GoPluginLoader.
package main

import (
	"github.com/sarvex/yabridge/internal/testplugin"
	"github.com/sarvex/yabridge/lib/vst3"
)

// GetPluginFactory is the exported entry point.
func GetPluginFactory() vst3.PluginFactory {
	return testplugin.GetPluginFactory()
}

func main() {}
