// Package lifecycle models the owning module of a watch registry and the
// bus that announces module lifecycle transitions.
//
// Delivery is synchronous: Fire calls every listener on the caller's
// goroutine, in subscription order. A listener that returns false is
// unsubscribed before Fire returns, so it never sees a later event.
package lifecycle
