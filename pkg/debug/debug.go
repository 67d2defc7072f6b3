// Package debug provides global debug logging flags
package debug

import "github.com/teslashibe/go-redlight/internal/log"

// Enabled controls whether debug logging is active
var Enabled bool

// Motion controls whether verbose per-frame motion logs are shown (joint
// signals, window extremes, wobble rejections). Use --debug-motion to enable.
var Motion bool

// Log logs a message only if debug mode is enabled
func Log(msg string, args ...any) {
	if Enabled {
		log.Debug(msg, args...)
	}
}

// MotionLog logs a message only if motion debug mode is enabled
func MotionLog(msg string, args ...any) {
	if Motion {
		log.Debug(msg, args...)
	}
}
