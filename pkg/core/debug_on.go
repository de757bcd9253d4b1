//go:build renderdebug

package core

const debugChecks = true
