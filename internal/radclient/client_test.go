package radclient_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"layeh.com/radius"
	"layeh.com/radius/rfc2865"
	"layeh.com/radius/rfc2869"

	"github.com/openradius/authstorm/internal/identity"
	"github.com/openradius/authstorm/internal/metrics"
	"github.com/openradius/authstorm/internal/radclient"
)

const testSecret = "testing123"

// startServer runs a RADIUS responder on a loopback UDP socket and returns its port.
func startServer(t *testing.T, secret string, handler radius.HandlerFunc) int {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket() error = %v", err)
	}
	server := &radius.PacketServer{
		Handler:      handler,
		SecretSource: radius.StaticSecretSource([]byte(secret)),
	}
	go func() { _ = server.Serve(conn) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	})
	return conn.LocalAddr().(*net.UDPAddr).Port
}

// credentialHandler accepts alice/wonderland and rejects everyone else.
func credentialHandler(w radius.ResponseWriter, r *radius.Request) {
	code := radius.CodeAccessReject
	if rfc2865.UserName_GetString(r.Packet) == "alice" && rfc2865.UserPassword_GetString(r.Packet) == "wonderland" {
		code = radius.CodeAccessAccept
	}
	_ = w.Write(r.Response(code))
}

func newClient(t *testing.T, port int, timeout time.Duration, counters *radclient.Counters) *radclient.Client {
	t.Helper()
	c, err := radclient.New(radclient.Options{
		Host:          "127.0.0.1",
		Port:          port,
		Secret:        testSecret,
		Timeout:       timeout,
		NASIPAddress:  net.ParseIP("10.0.0.1"),
		NASIdentifier: "authstorm-test",
		NASPortID:     "1/1/1:100",
		Counters:      counters,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestAuthenticateAcceptAndReject(t *testing.T) {
	port := startServer(t, testSecret, credentialHandler)
	counters := radclient.NewCounters()
	client := newClient(t, port, time.Second, counters)

	res := client.Authenticate(context.Background(), identity.Identity{Username: "alice", Password: "wonderland"})
	if res.Outcome != metrics.OutcomeAccept {
		t.Fatalf("expected accept, got %s (err=%v)", res.Outcome, res.Err)
	}
	if res.Latency <= 0 {
		t.Errorf("expected positive latency, got %s", res.Latency)
	}

	res = client.Authenticate(context.Background(), identity.Identity{Username: "alice", Password: "wrong"})
	if res.Outcome != metrics.OutcomeReject {
		t.Fatalf("expected reject, got %s (err=%v)", res.Outcome, res.Err)
	}
	if res.Err != nil {
		t.Errorf("reject must not carry an error, got %v", res.Err)
	}

	snap := counters.Snapshot()
	if snap.PacketsSent != 2 || snap.PacketsReceived != 2 {
		t.Errorf("unexpected packet counters: %+v", snap)
	}
	if snap.BytesSent <= 40 || snap.BytesReceived < 40 {
		t.Errorf("unexpected byte counters: %+v", snap)
	}
	if snap.Lost() != 0 {
		t.Errorf("expected no lost packets, got %d", snap.Lost())
	}
}

func TestAuthenticateSendsNASAttributes(t *testing.T) {
	type seen struct {
		nasIP   net.IP
		nasID   string
		portID  string
		service rfc2865.ServiceType
		framed  rfc2865.FramedProtocol
	}
	got := make(chan seen, 1)
	port := startServer(t, testSecret, func(w radius.ResponseWriter, r *radius.Request) {
		got <- seen{
			nasIP:   rfc2865.NASIPAddress_Get(r.Packet),
			nasID:   rfc2865.NASIdentifier_GetString(r.Packet),
			portID:  rfc2869.NASPortID_GetString(r.Packet),
			service: rfc2865.ServiceType_Get(r.Packet),
			framed:  rfc2865.FramedProtocol_Get(r.Packet),
		}
		_ = w.Write(r.Response(radius.CodeAccessAccept))
	})

	client := newClient(t, port, time.Second, nil)
	client.Authenticate(context.Background(), identity.Identity{Username: "bob", Password: "pw"})

	select {
	case s := <-got:
		if !s.nasIP.Equal(net.ParseIP("10.0.0.1")) {
			t.Errorf("NAS-IP-Address = %v", s.nasIP)
		}
		if s.nasID != "authstorm-test" {
			t.Errorf("NAS-Identifier = %q", s.nasID)
		}
		if s.portID != "1/1/1:100" {
			t.Errorf("NAS-Port-Id = %q", s.portID)
		}
		if s.service != rfc2865.ServiceType_Value_FramedUser {
			t.Errorf("Service-Type = %v", s.service)
		}
		if s.framed != rfc2865.FramedProtocol_Value_PPP {
			t.Errorf("Framed-Protocol = %v", s.framed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the request")
	}
}

func TestAuthenticateChallengeCountsAsReject(t *testing.T) {
	port := startServer(t, testSecret, func(w radius.ResponseWriter, r *radius.Request) {
		_ = w.Write(r.Response(radius.CodeAccessChallenge))
	})
	client := newClient(t, port, time.Second, nil)

	res := client.Authenticate(context.Background(), identity.Identity{Username: "x", Password: "y"})
	if res.Outcome != metrics.OutcomeReject {
		t.Fatalf("expected challenge to map to reject, got %s", res.Outcome)
	}
}

func TestAuthenticateTimeout(t *testing.T) {
	port := startServer(t, testSecret, func(w radius.ResponseWriter, r *radius.Request) {
		// drop the request
	})
	counters := radclient.NewCounters()
	client := newClient(t, port, 100*time.Millisecond, counters)

	res := client.Authenticate(context.Background(), identity.Identity{Username: "x", Password: "y"})
	if res.Outcome != metrics.OutcomeError {
		t.Fatalf("expected error outcome, got %s", res.Outcome)
	}
	if class := metrics.ClassifyError(res.Err); class != metrics.ErrorClassTimeout {
		t.Errorf("expected timeout class, got %q (err=%v)", class, res.Err)
	}
	if res.Latency < 100*time.Millisecond {
		t.Errorf("latency %s shorter than timeout", res.Latency)
	}
	if snap := counters.Snapshot(); snap.Timeouts != 1 || snap.Lost() != 1 {
		t.Errorf("unexpected counters: %+v", snap)
	}
}

func TestAuthenticateWrongSecretIsMalformed(t *testing.T) {
	port := startServer(t, "other-secret", func(w radius.ResponseWriter, r *radius.Request) {
		_ = w.Write(r.Response(radius.CodeAccessAccept))
	})
	client := newClient(t, port, time.Second, nil)

	res := client.Authenticate(context.Background(), identity.Identity{Username: "x", Password: "y"})
	if res.Outcome != metrics.OutcomeError {
		t.Fatalf("expected error outcome for non-authentic reply, got %s", res.Outcome)
	}
	var xerr *radclient.ExchangeError
	if !errors.As(res.Err, &xerr) {
		t.Fatalf("expected ExchangeError, got %T", res.Err)
	}
	if xerr.Class != metrics.ErrorClassMalformed {
		t.Errorf("expected malformed class, got %q", xerr.Class)
	}
}

func TestAuthenticateConcurrent(t *testing.T) {
	var served atomic.Int64
	port := startServer(t, testSecret, func(w radius.ResponseWriter, r *radius.Request) {
		served.Add(1)
		_ = w.Write(r.Response(radius.CodeAccessAccept))
	})
	client := newClient(t, port, 2*time.Second, nil)

	const n = 50
	var wg sync.WaitGroup
	var accepts atomic.Int64
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if client.Authenticate(context.Background(), identity.Identity{Username: "u", Password: "p"}).Outcome == metrics.OutcomeAccept {
				accepts.Add(1)
			}
		}()
	}
	wg.Wait()
	if accepts.Load() != n {
		t.Fatalf("expected %d accepts, got %d", n, accepts.Load())
	}
}

func TestNewValidatesOptions(t *testing.T) {
	cases := []radclient.Options{
		{Port: 1812, Secret: "s"},
		{Host: "h", Port: 0, Secret: "s"},
		{Host: "h", Port: 1812},
	}
	for _, opts := range cases {
		if _, err := radclient.New(opts); err == nil {
			t.Errorf("New(%+v) error = nil, want error", opts)
		}
	}

	c, err := radclient.New(radclient.Options{Host: "::1", Port: 1812, Secret: "s"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.Addr() != "[::1]:1812" {
		t.Errorf("Addr() = %q", c.Addr())
	}
	if c.Timeout() != radclient.DefaultTimeout {
		t.Errorf("Timeout() = %s, want default", c.Timeout())
	}
}

func TestCountersReset(t *testing.T) {
	port := startServer(t, testSecret, credentialHandler)
	counters := radclient.NewCounters()
	client := newClient(t, port, time.Second, counters)

	client.Authenticate(context.Background(), identity.Identity{Username: "alice", Password: "wonderland"})
	counters.Reset()
	if snap := counters.Snapshot(); snap.PacketsSent != 0 || snap.BytesReceived != 0 {
		t.Fatalf("expected zeroed counters, got %+v", snap)
	}
	var nilCounters *radclient.Counters
	nilCounters.Reset()
}
