// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/sarvex/yabridge/transport"
)

// LaunchConfig describes a plugin host process to start.
type LaunchConfig struct {
	// HostBinary is the plugin host executable.
	HostBinary string

	// Args follow "--fd 3" on the host's command line, typically
	// "--plugin <path>".
	Args []string

	// Env is appended to the current environment.
	Env []string

	// Stderr receives the host's standard error. Nil means os.Stderr.
	Stderr io.Writer

	PluginConfig
}

// Launch starts the plugin host process with one end of a socketpair as
// descriptor InheritedFD and connects to it. The process is stopped if
// the handshake fails; otherwise Plugin.Close waits for it to exit.
func Launch(ctx context.Context, config LaunchConfig) (*Plugin, error) {
	local, remote, err := transport.Socketpair()
	if err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}

	args := append([]string{"--fd", strconv.Itoa(InheritedFD)}, config.Args...)
	cmd := exec.Command(config.HostBinary, args...)
	cmd.Env = append(os.Environ(), config.Env...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = config.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	// ExtraFiles[i] becomes descriptor 3+i in the child.
	cmd.ExtraFiles = []*os.File{remote}

	if err := cmd.Start(); err != nil {
		local.Close()
		remote.Close()
		return nil, fmt.Errorf("bridge: starting %s: %w", config.HostBinary, err)
	}
	remote.Close()

	plugin, err := Connect(ctx, local, config.PluginConfig)
	if err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return nil, err
	}
	plugin.cmd = cmd
	return plugin, nil
}
