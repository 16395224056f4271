// Package signal defines the gateway to the controller's discrete I/O.
package signal

// Handle identifies a resolved output or input. Handles are opaque and
// only valid with the gateway that produced them.
type Handle int

// Gateway resolves symbolic signal names and reads/writes their state.
//
// Resolve may fail transiently (controller still starting); callers are
// expected to retry rather than treat a miss as fatal.
type Gateway interface {
	Resolve(name string) (Handle, bool)
	Read(h Handle) bool
	Write(h Handle, on bool)
}
