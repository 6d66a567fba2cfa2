// Package cli implements a colored apex/log handler for terminal output.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
)

// Default writes colored output to stderr.
var Default = New(os.Stderr, true)

var (
	bold    = color.New(color.Bold)
	boldRed = color.New(color.Bold, color.FgRed)
)

var levelColors = [...]*color.Color{
	log.DebugLevel: color.New(color.FgWhite),
	log.InfoLevel:  color.New(color.FgBlue),
	log.WarnLevel:  color.New(color.FgYellow),
	log.ErrorLevel: color.New(color.FgRed),
	log.FatalLevel: color.New(color.FgRed),
}

var levelNames = [...]string{
	log.DebugLevel: "DEBUG",
	log.InfoLevel:  " INFO",
	log.WarnLevel:  " WARN",
	log.ErrorLevel: "ERROR",
	log.FatalLevel: "FATAL",
}

// Handler writes one aligned line per entry followed by a stacktrace when
// the entry carries an error field.
type Handler struct {
	mu      sync.Mutex
	Writer  io.Writer
	Padding int
}

// New returns a handler writing to w. Colors are only emitted when w is a
// terminal file and useColors is true.
func New(w io.Writer, useColors bool) *Handler {
	if f, ok := w.(*os.File); ok && useColors {
		return &Handler{Writer: colorable.NewColorable(f), Padding: 2}
	}
	return &Handler{Writer: colorable.NewNonColorable(w), Padding: 2}
}

// HandleLog implements log.Handler.
func (h *Handler) HandleLog(e *log.Entry) error {
	c := levelColors[e.Level]
	names := e.Fields.Names()

	h.mu.Lock()
	defer h.mu.Unlock()

	c.Fprintf(h.Writer, "%s: [%s] %-25s", bold.Sprintf("%*s", h.Padding+1, levelNames[e.Level]), time.Now().Format(time.StampMilli), e.Message)
	for _, name := range names {
		if name == "source" {
			continue
		}
		fmt.Fprintf(h.Writer, " %s=%v", c.Sprint(name), e.Fields.Get(name))
	}
	fmt.Fprintln(h.Writer)

	if err, ok := e.Fields.Get("error").(error); ok && e.Level >= log.ErrorLevel {
		h.writeStack(err)
	}
	return nil
}

// writeStack prints the stack of err, separating the stacks of wrapped errors
// with a blank line.
func (h *Handler) writeStack(err error) {
	err = errors.WithStackDepthIf(err, 4)
	formatted := fmt.Sprintf("\n%s\n%+v\n\n", boldRed.Sprint("Stacktrace:"), err)
	if !strings.Contains(formatted, "runtime.goexit") {
		_, _ = fmt.Fprint(h.Writer, formatted)
		return
	}

	var b strings.Builder
	for _, line := range strings.Split(formatted, "\n") {
		b.WriteString(line)
		b.WriteByte('\n')
		if strings.HasPrefix(line, "\truntime/asm_") {
			b.WriteByte('\n')
		}
	}
	_, _ = fmt.Fprint(h.Writer, b.String())
}
