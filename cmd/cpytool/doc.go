// Command cpytool manages CircuitPython devices and keeps their code up to date.
//
// Usage:
//
//	cpytool [-config FILE] [-v] SUBCOMMAND ...
//
// Devices are described in a TOML file
// (default $CIRCUITPYTHON_TOOL_CONFIG,
// or circuitpython-tool/devices.toml in the user config directory)
// with one [[devices]] table per device.
// A device is selected with a query of the form VENDOR:MODEL:SERIAL,
// where each component need only be a substring of the device's
// and any component may be empty.
//
// Subcommands:
//
//	devices [-save FILE] [QUERY]
//	  List the devices matching QUERY (default all).
//	  With -save, write them to FILE as TOML.
//
//	mount QUERY
//	  Print the mountpoint of the device matching QUERY.
//
//	upload [-dir DIR[,DIR...]] (-dest DIR | QUERY)
//	  Copy the code in each DIR onto a device,
//	  in order, so later directories win,
//	  skipping files that are already up to date.
//	  Without -dir, the source directory is the first one
//	  beneath the current directory holding a code.py or main.py.
//
//	watch [-dir DIR[,DIR...]] [-delay DURATION] (-dest DIR | QUERY)
//	  Upload, then upload again each time the code changes,
//	  until interrupted.
//
//	inotify DIR [MASK...]
//	  Print the raw filesystem events for DIR.
//	  MASK names are event types such as create or modify.
package main
