// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package loader resolves a plugin's factory entry point.
//
// The plugin host process calls a [Loader] once at startup with the
// plugin path it was given. [GoPluginLoader] opens a Go plugin built
// with -buildmode=plugin and calls its exported GetPluginFactory
// function. [StaticLoader] serves factories compiled into the binary,
// which the test suite and the host binary's --builtin mode use.
package loader
