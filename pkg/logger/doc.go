// Package logger provides structured logging for igtracker on top of zerolog.
//
// Commands call Initialize once after loading configuration; components take
// a Logger and fall back to GetLogger when none is injected:
//
//	log := logger.ForComponent(nil, "collector")
//	log.InfoWithFields("Collection pass accepted", map[string]interface{}{
//	    "collected": 95,
//	    "expected":  100,
//	})
//
// Console output is coloured and written to stderr. When a log file is
// configured, JSON lines are appended to it as well. Tests use TestLogger to
// capture and assert on messages.
package logger
