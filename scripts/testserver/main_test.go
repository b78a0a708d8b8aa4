package main

import (
	"context"
	"math/rand"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
	"layeh.com/radius"
	"layeh.com/radius/rfc2865"
)

func exchange(t *testing.T, r *responder, password string) (*radius.Packet, error) {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket() error = %v", err)
	}
	server := &radius.PacketServer{Handler: r, SecretSource: radius.StaticSecretSource([]byte("s3cret"))}
	go func() { _ = server.Serve(conn) }()
	t.Cleanup(func() { _ = server.Shutdown(context.Background()) })

	packet := radius.New(radius.CodeAccessRequest, []byte("s3cret"))
	_ = rfc2865.UserName_SetString(packet, "lt_1")
	_ = rfc2865.UserPassword_SetString(packet, password)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	return radius.Exchange(ctx, packet, conn.LocalAddr().String())
}

func newResponder() *responder {
	return &responder{logger: zap.NewNop(), rnd: rand.New(rand.NewSource(1))}
}

func TestResponderPassword(t *testing.T) {
	r := newResponder()
	r.password = "pw"

	resp, err := exchange(t, r, "pw")
	if err != nil || resp.Code != radius.CodeAccessAccept {
		t.Fatalf("expected accept, got %v (err=%v)", resp, err)
	}
	resp, err = exchange(t, r, "nope")
	if err != nil || resp.Code != radius.CodeAccessReject {
		t.Fatalf("expected reject, got %v (err=%v)", resp, err)
	}
	if r.accepted.Load() != 1 || r.rejected.Load() != 1 {
		t.Errorf("accepted=%d rejected=%d", r.accepted.Load(), r.rejected.Load())
	}
}

func TestResponderDropsAll(t *testing.T) {
	r := newResponder()
	r.dropRate = 1

	if _, err := exchange(t, r, "pw"); err == nil {
		t.Fatal("expected timeout for dropped request")
	}
	if r.dropped.Load() != 1 {
		t.Errorf("dropped = %d", r.dropped.Load())
	}
}

func TestResponderRejectRate(t *testing.T) {
	r := newResponder()
	r.rejectRate = 1

	resp, err := exchange(t, r, "anything")
	if err != nil || resp.Code != radius.CodeAccessReject {
		t.Fatalf("expected forced reject, got %v (err=%v)", resp, err)
	}
}
