// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/sarvex/yabridge/lib/protocol"
	"github.com/sarvex/yabridge/lib/testutil"
)

func echoSamples(request protocol.Request) (protocol.Response, error) {
	return &protocol.SamplesResponse{Samples: uint32(request.Instance())}, nil
}

func TestSocketpairCarriesCalls(t *testing.T) {
	t.Parallel()

	local, remote, err := Socketpair()
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	remoteConn, err := net.FileConn(remote)
	remote.Close()
	if err != nil {
		t.Fatalf("FileConn: %v", err)
	}

	caller := start(t, local, nil, Options{})
	start(t, remoteConn, HandlerFunc(echoSamples), Options{})

	var response protocol.SamplesResponse
	if err := caller.channel.Call(&protocol.GetLatencySamples{Target: protocol.To(256)}, &response); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if response.Samples != 256 {
		t.Errorf("samples = %d, want 256", response.Samples)
	}
}

func TestListenDial(t *testing.T) {
	t.Parallel()

	path := filepath.Join(testutil.SocketDir(t), "bridge.sock")
	// A stale socket file from a crashed process must not block Listen.
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	listener, err := Listen(path)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- conn
	}()

	conn, err := Dial(context.Background(), path)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	serverConn := testutil.RequireReceive(t, accepted, timeout, "accepting connection")

	caller := start(t, conn, nil, Options{})
	start(t, serverConn, HandlerFunc(echoSamples), Options{})

	var response protocol.SamplesResponse
	if err := caller.channel.Call(&protocol.GetTailSamples{Target: protocol.To(9)}, &response); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if response.Samples != 9 {
		t.Errorf("samples = %d, want 9", response.Samples)
	}
}
