// Package logging configures the commonlog backend used across nmail and
// lets the interpreter raise or restore the verbosity at run time.
package logging

import (
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/commonlog/simple"
)

// Root is the name prefix shared by every nmail logger.
const Root = "nmail"

var (
	mu        sync.Mutex
	baseLevel = commonlog.Notice
	debugOn   bool
	verboseOn bool
)

// Setup installs an unbuffered simple backend writing to stderr, or to path
// when it is non-empty, and records the configured verbosity as the base
// level that Debug/Verbose fall back to.
func Setup(verbosity int, path string) {
	backend := simple.NewBackend()
	backend.Buffered = false
	commonlog.SetBackend(backend)

	if path != "" {
		commonlog.Configure(verbosity, &path)
	} else {
		commonlog.Configure(verbosity, nil)
	}

	mu.Lock()
	baseLevel = commonlog.VerbosityToMaxLevel(verbosity)
	mu.Unlock()
	apply()
}

// Get returns the logger for a sub-system, e.g. Get("interp").
func Get(name string) commonlog.Logger {
	return commonlog.GetLogger(Root + "." + name)
}

// SetDebug toggles debug-level logging.
func SetDebug(on bool) {
	mu.Lock()
	debugOn = on
	mu.Unlock()
	apply()
}

// SetVerbose toggles info-level logging.
func SetVerbose(on bool) {
	mu.Lock()
	verboseOn = on
	mu.Unlock()
	apply()
}

// Level reports the currently effective maximum level for nmail loggers.
func Level() commonlog.Level {
	return commonlog.GetMaxLevel(Root)
}

func apply() {
	mu.Lock()
	level := baseLevel
	if verboseOn && level < commonlog.Info {
		level = commonlog.Info
	}
	if debugOn {
		level = commonlog.Debug
	}
	mu.Unlock()

	commonlog.SetMaxLevel(level, Root)
}
