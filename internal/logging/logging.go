package logging

import (
	"io"
	"log"
	"os"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelOff   = "off"
)

// Factory builds component loggers that share one output and level.
type Factory struct {
	out   io.Writer
	level string
}

// New returns a factory writing to stderr. Unknown levels behave as info.
func New(level string) *Factory {
	return NewWithWriter(os.Stderr, level)
}

func NewWithWriter(out io.Writer, level string) *Factory {
	if level == LevelOff {
		out = io.Discard
	}
	return &Factory{out: out, level: level}
}

// Logger returns a logger whose lines start with "[component] ".
func (f *Factory) Logger(component string) *log.Logger {
	flags := log.LstdFlags
	if f.level == LevelDebug {
		flags |= log.Lmicroseconds | log.Lshortfile
	}
	return log.New(f.out, "["+component+"] ", flags)
}

func (f *Factory) Debug() bool {
	return f.level == LevelDebug
}
