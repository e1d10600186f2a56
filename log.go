package cpytool

import (
	"log"
	"os"
)

// Verbose enables Debugf output.
// It is set by the -v flag of the cpytool command,
// and initially from the CIRCUITPYTHON_TOOL_VERBOSE environment variable.
var Verbose = os.Getenv("CIRCUITPYTHON_TOOL_VERBOSE") != ""

// Debugf logs with log.Printf when Verbose is set.
func Debugf(format string, args ...interface{}) {
	if !Verbose {
		return
	}
	log.Printf("DEBUG "+format, args...)
}
