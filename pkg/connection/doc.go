// Package connection keeps an outbound dosgi transport alive.
//
// The transport layer never retries: a failed transport reports OnFailure
// once and is finished. A Redialer sits on top of a transport.Factory and
// replaces a failed transport with a fresh one, waiting between attempts
// according to a Backoff.
//
// # Reconnection Strategy
//
// After a transport fails, the redialer waits before each dial attempt:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds
//  4. Continue at 60s until a dial succeeds or the redialer is closed
//  5. Reset to 1s once a transport is started
//
// Each attempt tries the configured URIs in order and stops at the first
// one that connects.
//
// # Jitter
//
// To spread out clients that lose their server at the same moment:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
//
// A requested Close never triggers a reconnect.
package connection
