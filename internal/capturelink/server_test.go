package capturelink

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"github.com/mfdrelay/relay/internal/display"
)


func newTestServer() *Server {
	return New("127.0.0.1:0", display.NewSetupWatcher(display.DefaultLayout()), display.NewRegistry())
}

func TestSendLayoutFramesWithBigEndianLength(t *testing.T) {
	s := newTestServer()
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_ = s.sendLayout(server, display.DefaultLayout())
	}()

	var lenPrefix [4]byte
	if _, err := io.ReadFull(client, lenPrefix[:]); err != nil {
		t.Fatalf("read length prefix: %v", err)
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])

	body := make([]byte, n)
	if _, err := io.ReadFull(client, body); err != nil {
		t.Fatalf("read body: %v", err)
	}

	var decoded map[string]display.Geometry
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal layout: %v", err)
	}
	if _, ok := decoded["LeftMfcd"]; !ok {
		t.Fatalf("expected LeftMfcd key in layout JSON, got %v", decoded)
	}
}

func TestReadFrameBatchPublishesToRegistry(t *testing.T) {
	registry := display.NewRegistry()
	registry.Reconcile(display.DefaultLayout())
	s := New("127.0.0.1:0", display.NewSetupWatcher(display.DefaultLayout()), registry)

	client, server := net.Pipe()
	defer client.Close()

	payload := []byte("yuv-bytes")
	go func() {
		client.Write([]byte{1}) // one display in this batch
		var header [5]byte
		header[0] = display.LeftMFCD.AsU8()
		binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
		client.Write(header[:])
		client.Write(payload)
	}()

	if err := s.readFrameBatch(server); err != nil {
		t.Fatalf("readFrameBatch: %v", err)
	}

	recv := registry.Receiver(display.LeftMFCD)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	ctxDone := make(chan struct{})
	var got []byte
	go func() {
		v, err := recv.Next(ctx)
		if err == nil {
			got = append([]byte{}, v.Bytes()...)
			v.Release()
		}
		close(ctxDone)
	}()
	<-ctxDone

	if string(got) != "yuv-bytes" {
		t.Fatalf("expected published frame %q, got %q", payload, got)
	}
}

func TestReadFrameBatchRejectsUnknownKind(t *testing.T) {
	registry := display.NewRegistry()
	registry.Reconcile(display.DefaultLayout())
	s := New("127.0.0.1:0", display.NewSetupWatcher(display.DefaultLayout()), registry)

	client, server := net.Pipe()
	defer client.Close()

	payload := []byte("discarded")
	go func() {
		client.Write([]byte{1})
		var header [5]byte
		header[0] = 200 // not a recognized display kind
		binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
		client.Write(header[:])
		client.Write(payload)
	}()

	if err := s.readFrameBatch(server); err == nil {
		t.Fatalf("readFrameBatch should terminate the connection on an unrecognized kind tag")
	}
}
