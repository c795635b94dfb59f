// Package statsview serves live runtime statistics of the emulator process
// over HTTP. It is only functional when built with the statsview tag.
//
// After launch, the charts are at
//
//	localhost:12600/debug/statsview
//
// and the standard pprof endpoints at
//
//	localhost:12600/debug/pprof/
package statsview

// DefaultAddress is where Launch listens when given no address.
const DefaultAddress = "localhost:12600"

const path = "/debug/statsview"
