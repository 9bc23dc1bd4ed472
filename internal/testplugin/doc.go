// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package testplugin is a small stereo gain plugin written against
// lib/vst3. The bridge tests load it on the plugin host side, and
// yabridge-host serves it with --builtin gain so the whole bridge can
// be exercised without a third-party plugin.
//
// The factory exports two classes: a processor ([ProcessorCID]) that
// implements Component, AudioProcessor and ConnectionPoint, and its
// edit controller ([ControllerCID]). The controller owns two
// parameters, [ParamGain] and [ParamBypass]. The processor applies the
// gain it receives through input parameter changes.
package testplugin
