// Copyright 2020 420integrated
// This file is part of the go-420light library.
//
// The go-420light library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-420light library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-420light library. If not, see <http://www.gnu.org/licenses/>.

// Package log implements a minimal leveled logger in the same spirit as
// go-420coin's bundled log package: messages are a short string plus an
// even list of key/value context pairs, and Crit terminates the process
// after logging. It exists so the rest of this module can depend on the
// familiar log.Info/log.Warn/log.Error/log.Crit surface without pulling in
// the upstream node's full logging stack.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Lvl is a log severity level.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlCrit:
		return "CRIT"
	case LvlError:
		return "ERROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DEBUG"
	default:
		return "TRACE"
	}
}

// Logger writes leveled, contextual log lines.
type Logger struct {
	ctx []interface{}
}

var (
	mu        sync.Mutex
	out       io.Writer = os.Stderr
	threshold           = LvlInfo
	root                = &Logger{}
	colorize  bool

	// exitFn is called by Crit after the message is written. A test can
	// replace it to avoid terminating the test binary.
	exitFn = func() { os.Exit(1) }
)

// SetOutput redirects where log lines are written.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// UseTerminalOutput points log output at stderr through go-colorable (so
// ANSI codes render on Windows consoles too) and, if stderr is actually a
// terminal per go-isatty, turns on level coloring. This is the same
// isatty-then-colorable-then-color dance cmd/g420's flag glue runs before
// installing its StreamHandler; g420light's main wires it the same way.
func UseTerminalOutput() {
	mu.Lock()
	defer mu.Unlock()
	isTerm := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	if isTerm {
		out = colorable.NewColorableStderr()
	} else {
		out = colorable.NewNonColorable(os.Stderr)
	}
	colorize = isTerm
}

func colorForLevel(lvl Lvl) *color.Color {
	switch lvl {
	case LvlCrit, LvlError:
		return color.New(color.FgRed)
	case LvlWarn:
		return color.New(color.FgYellow)
	case LvlInfo:
		return color.New(color.FgGreen)
	case LvlDebug:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgMagenta)
	}
}

// SetLevel sets the minimum level that gets written.
func SetLevel(lvl Lvl) {
	mu.Lock()
	defer mu.Unlock()
	threshold = lvl
}

// New returns a Logger with additional static context appended to every
// line it writes.
func New(ctx ...interface{}) *Logger {
	return &Logger{ctx: ctx}
}

func (l *Logger) write(lvl Lvl, msg string, ctx []interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if lvl > threshold {
		return
	}
	caller := fmt.Sprintf("%+v", stack.Caller(2))
	lvlText := lvl.String()
	if colorize {
		lvlText = colorForLevel(lvl).SprintFunc()(lvlText)
	}
	line := fmt.Sprintf("%s[%s] %s", time.Now().UTC().Format("2006-01-02T15:04:05.000Z"), lvlText, msg)
	all := append(append([]interface{}{}, l.ctx...), ctx...)
	for i := 0; i+1 < len(all); i += 2 {
		line += fmt.Sprintf(" %v=%v", all[i], all[i+1])
	}
	if len(all)%2 == 1 {
		line += fmt.Sprintf(" %v=MISSING", all[len(all)-1])
	}
	fmt.Fprintf(out, "%s caller=%s\n", line, caller)
}

func (l *Logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *Logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *Logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *Logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *Logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }

// Crit logs at the critical level then terminates the process. This is the
// deliberate home for the light client's "long fork confirmed, operator
// must reset storage" fatal path: there is no safe way to keep running
// once two successive genesis-anchored proofs can't be reconciled.
func (l *Logger) Crit(msg string, ctx ...interface{}) {
	l.write(LvlCrit, msg, ctx)
	exitFn()
}

func Trace(msg string, ctx ...interface{}) { root.Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { root.Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { root.Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { root.Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { root.Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { root.Crit(msg, ctx...) }
