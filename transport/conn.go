// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Listen creates a unix stream socket at path. A stale socket file
// left by a crashed process is removed first.
func Listen(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("removing stale socket %s: %w", path, err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", path, err)
	}
	return listener, nil
}

// Dial connects to the unix stream socket at path.
func Dial(ctx context.Context, path string) (net.Conn, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", path, err)
	}
	return conn, nil
}

// Socketpair returns a connected pair of unix stream sockets. The
// first end is wrapped as a net.Conn for this process. The second is
// returned as an *os.File for handing to a child process through
// exec.Cmd.ExtraFiles; close it in the parent once the child has
// started.
func Socketpair() (net.Conn, *os.File, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("socketpair: %w", err)
	}
	local := os.NewFile(uintptr(fds[0]), "yabridge-channel")
	remote := os.NewFile(uintptr(fds[1]), "yabridge-channel-child")

	// FileConn dups the descriptor, so the file is closed either way.
	conn, err := net.FileConn(local)
	local.Close()
	if err != nil {
		remote.Close()
		return nil, nil, fmt.Errorf("wrapping socketpair: %w", err)
	}
	return conn, remote, nil
}

// FileConn wraps an inherited socket descriptor, as received by a
// child started with Socketpair's second end in ExtraFiles.
func FileConn(fd uintptr) (net.Conn, error) {
	file := os.NewFile(fd, "yabridge-channel")
	if file == nil {
		return nil, fmt.Errorf("invalid descriptor %d", fd)
	}
	defer file.Close()
	conn, err := net.FileConn(file)
	if err != nil {
		return nil, fmt.Errorf("wrapping descriptor %d: %w", fd, err)
	}
	return conn, nil
}
