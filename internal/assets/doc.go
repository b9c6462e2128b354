// Package assets compiles the project's stylesheet, script bundle and images
// into their configured output directories.
//
// Each compiler processes every source it can. Per-file failures are logged and
// collected; the compiler reports them together once the remaining files are done.
package assets
