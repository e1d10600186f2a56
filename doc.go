// Package cpytool manages CircuitPython USB devices:
// finding them,
// uploading code to them,
// and keeping them in sync with a source tree as it changes.
//
// The interesting machinery lives in subpackages.
// Package inotify is a from-scratch binding to the Linux inotify facility.
// Package fs walks source trees,
// watches every directory in them,
// and copies changed files onto a device's CIRCUITPY drive.
// Package batch coalesces bursts of events into batches.
// Package dsync ties those together into an upload-then-watch session.
//
// CircuitPython drives are FAT filesystems,
// whose modification times have only two-second resolution.
// The copier therefore compares source timestamps rounded down to an even second
// against destination timestamps,
// which makes repeated uploads of an unchanged tree write nothing.
//
// This package itself holds the types shared by the rest:
// devices and the queries that select them.
package cpytool
