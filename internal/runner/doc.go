// Package runner implements the phase drivers that shape authentication
// traffic against the access server.
//
// Every driver shares the same dispatch discipline:
//   - a counting gate of size Concurrency bounds attempts in flight
//   - cancellation is checked before each new dispatch
//   - dispatched attempts run to completion or timeout, detached from
//     cancellation
//   - the driver drains in-flight attempts before returning
//
// # Drivers
//
//   - [FixedRate]: one attempt every 1/Rate with uniform or Poisson arrival
//   - [Ramp]: instantaneous rate interpolated linearly from StartRate to EndRate
//   - [Burst]: each identity fires once at a staggered boot delay, modelling
//     a mass reconnect after a power event
//
// # Basic Usage
//
//	out := runner.FixedRate{Rate: 100}.Run(ctx, runner.Options{
//		Identities:    ids,
//		Authenticator: client,
//		Sink:          stats,
//		Duration:      30 * time.Second,
//		Concurrency:   100,
//	})
//	fmt.Println(out.Dispatched)
package runner
