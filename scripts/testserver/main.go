// Command testserver is a configurable RADIUS responder for exercising
// authstorm locally: fixed latency plus random rejects and drops.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"layeh.com/radius"
	"layeh.com/radius/rfc2865"
)

type responder struct {
	password   string
	delay      time.Duration
	rejectRate float64
	dropRate   float64
	logger     *zap.Logger

	mu  sync.Mutex
	rnd *rand.Rand

	accepted atomic.Int64
	rejected atomic.Int64
	dropped  atomic.Int64
}

func (r *responder) roll() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Float64()
}

func (r *responder) ServeRADIUS(w radius.ResponseWriter, req *radius.Request) {
	if r.dropRate > 0 && r.roll() < r.dropRate {
		r.dropped.Add(1)
		return
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}

	code := radius.CodeAccessAccept
	if r.password != "" && rfc2865.UserPassword_GetString(req.Packet) != r.password {
		code = radius.CodeAccessReject
	}
	if code == radius.CodeAccessAccept && r.rejectRate > 0 && r.roll() < r.rejectRate {
		code = radius.CodeAccessReject
	}
	if code == radius.CodeAccessAccept {
		r.accepted.Add(1)
	} else {
		r.rejected.Add(1)
	}

	if err := w.Write(req.Response(code)); err != nil {
		r.logger.Debug("write response", zap.Error(err))
	}
}

func main() {
	port := flag.Int("port", 1812, "UDP port to listen on")
	secret := flag.String("secret", "testing123", "Shared secret")
	password := flag.String("password", "", "Accept only this password (empty accepts any)")
	delay := flag.Duration("delay", 0, "Latency added before each reply")
	rejectRate := flag.Float64("reject-rate", 0, "Fraction of valid requests rejected anyway")
	dropRate := flag.Float64("drop-rate", 0, "Fraction of requests silently dropped")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := serve(*port, *secret, &responder{
		password:   *password,
		delay:      *delay,
		rejectRate: *rejectRate,
		dropRate:   *dropRate,
		logger:     logger,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}); err != nil {
		logger.Fatal("test server failed", zap.Error(err))
	}
}

func serve(port int, secret string, r *responder) error {
	conn, err := net.ListenPacket("udp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	server := &radius.PacketServer{
		Handler:      r,
		SecretSource: radius.StaticSecretSource([]byte(secret)),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(sctx)
	}()

	r.logger.Info("radius test server listening",
		zap.String("addr", conn.LocalAddr().String()),
		zap.Duration("delay", r.delay),
		zap.Float64("reject_rate", r.rejectRate),
		zap.Float64("drop_rate", r.dropRate),
	)
	err = server.Serve(conn)
	r.logger.Info("radius test server stopped",
		zap.Int64("accepted", r.accepted.Load()),
		zap.Int64("rejected", r.rejected.Load()),
		zap.Int64("dropped", r.dropped.Load()),
	)
	if errors.Is(err, radius.ErrServerShutdown) {
		return nil
	}
	return err
}
