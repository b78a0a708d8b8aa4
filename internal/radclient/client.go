// Package radclient performs RADIUS Access-Request exchanges and maps each
// reply to an attempt outcome.
package radclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"layeh.com/radius"
	"layeh.com/radius/rfc2865"
	"layeh.com/radius/rfc2869"

	"github.com/openradius/authstorm/internal/identity"
	"github.com/openradius/authstorm/internal/metrics"
)

// DefaultTimeout bounds a single exchange when Options.Timeout is zero.
const DefaultTimeout = 5 * time.Second

// Authenticator performs one authentication attempt. Implementations must be
// safe for concurrent use and must never panic or return without a Result.
type Authenticator interface {
	Authenticate(ctx context.Context, id identity.Identity) metrics.Result
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, id identity.Identity) metrics.Result

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, id identity.Identity) metrics.Result {
	return f(ctx, id)
}

// Options configures a Client.
type Options struct {
	Host    string
	Port    int
	Secret  string
	Timeout time.Duration

	// NAS attributes added to every request. Empty values are omitted.
	NASIPAddress  net.IP
	NASIdentifier string
	NASPortID     string

	Counters *Counters
}

// Client sends Access-Requests to a single server.
type Client struct {
	addr     string
	secret   []byte
	timeout  time.Duration
	nasIP    net.IP
	nasID    string
	nasPort  string
	counters *Counters
	exchange *radius.Client
}

// New validates opts and returns a ready client.
func New(opts Options) (*Client, error) {
	if opts.Host == "" {
		return nil, errors.New("radius host is required")
	}
	if opts.Port <= 0 || opts.Port > 65535 {
		return nil, fmt.Errorf("radius port %d out of range", opts.Port)
	}
	if opts.Secret == "" {
		return nil, errors.New("radius secret is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		addr:     net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
		secret:   []byte(opts.Secret),
		timeout:  timeout,
		nasIP:    opts.NASIPAddress,
		nasID:    opts.NASIdentifier,
		nasPort:  opts.NASPortID,
		counters: opts.Counters,
		// The library must not retransmit; a lost reply is an error outcome.
		exchange: &radius.Client{Retry: 0, MaxPacketErrors: 1},
	}, nil
}

// Addr returns the server address in host:port form.
func (c *Client) Addr() string { return c.addr }

// Timeout returns the per-exchange timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Authenticate sends one Access-Request for id and waits for the reply or
// the timeout. Latency covers send through reply or timeout.
func (c *Client) Authenticate(ctx context.Context, id identity.Identity) metrics.Result {
	packet, err := c.buildRequest(id)
	if err != nil {
		return metrics.Result{Outcome: metrics.OutcomeError, Err: &ExchangeError{Class: metrics.ErrorClassMalformed, Err: err}}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.counters.sent(packetSize(packet))
	start := time.Now()
	resp, err := c.exchange.Exchange(callCtx, packet, c.addr)
	latency := time.Since(start)

	if err != nil {
		xerr := classifyExchange(callCtx, err)
		if xerr.Class == metrics.ErrorClassTimeout {
			c.counters.timedOut()
		} else {
			c.counters.failed()
		}
		return metrics.Result{Latency: latency, Outcome: metrics.OutcomeError, Err: xerr}
	}

	c.counters.received(packetSize(resp))
	if resp.Code == radius.CodeAccessAccept {
		return metrics.Result{Latency: latency, Outcome: metrics.OutcomeAccept}
	}
	// Access-Reject, Access-Challenge and anything else definitive.
	return metrics.Result{Latency: latency, Outcome: metrics.OutcomeReject}
}

func (c *Client) buildRequest(id identity.Identity) (*radius.Packet, error) {
	packet := radius.New(radius.CodeAccessRequest, c.secret)
	if err := rfc2865.UserName_SetString(packet, id.Username); err != nil {
		return nil, fmt.Errorf("set User-Name: %w", err)
	}
	if err := rfc2865.UserPassword_SetString(packet, id.Password); err != nil {
		return nil, fmt.Errorf("set User-Password: %w", err)
	}
	if c.nasIP != nil {
		if err := rfc2865.NASIPAddress_Set(packet, c.nasIP); err != nil {
			return nil, fmt.Errorf("set NAS-IP-Address: %w", err)
		}
	}
	if c.nasID != "" {
		if err := rfc2865.NASIdentifier_SetString(packet, c.nasID); err != nil {
			return nil, fmt.Errorf("set NAS-Identifier: %w", err)
		}
	}
	if c.nasPort != "" {
		if err := rfc2869.NASPortID_SetString(packet, c.nasPort); err != nil {
			return nil, fmt.Errorf("set NAS-Port-Id: %w", err)
		}
	}
	if err := rfc2865.ServiceType_Set(packet, rfc2865.ServiceType_Value_FramedUser); err != nil {
		return nil, fmt.Errorf("set Service-Type: %w", err)
	}
	if err := rfc2865.FramedProtocol_Set(packet, rfc2865.FramedProtocol_Value_PPP); err != nil {
		return nil, fmt.Errorf("set Framed-Protocol: %w", err)
	}
	return packet, nil
}

// packetSize is the encoded length: 20-byte header plus TLV attributes.
func packetSize(p *radius.Packet) int64 {
	n := int64(20)
	for _, avp := range p.Attributes {
		n += 2 + int64(len(avp.Attribute))
	}
	return n
}
