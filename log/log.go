// Package log provides the process-wide leveled loggers.
package log

import (
	"github.com/fatih/color"
	"io"
	"log"
	"os"
)

var (
	Debug *log.Logger
	Info  *log.Logger
	Warn  *log.Logger
	Error *log.Logger
)

func init() {
	Setup("local", os.Stdout, os.Stderr)
}

// Setup rebuilds the loggers. Outside the local environment colors are off and debug output is dropped.
func Setup(env string, out, errOut io.Writer) {
	color.NoColor = color.NoColor || env != "local"
	flags := log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile | log.Lmsgprefix

	debugOut := out
	if env != "local" {
		debugOut = io.Discard
	}
	Debug = log.New(debugOut, color.CyanString("[DEBUG] "), flags)
	Info = log.New(out, color.GreenString("[INFO] "), flags)
	Warn = log.New(out, color.YellowString("[WARN] "), flags)
	Error = log.New(errOut, color.RedString("[ERROR] "), flags)
}
