package schema

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

// Informer is notified about each command the Builder runs.
type Informer interface {
	BeginCommand(description string)
	EndCommand(elapsed time.Duration, err error)
}

// ConsoleInformer writes command progress to w, e.g.:
//
//	> create table "post" ... Done in 0.004s
type ConsoleInformer struct {
	w io.Writer
}

var _ Informer = (*ConsoleInformer)(nil)

// NewConsoleInformer returns an Informer that writes to w.
func NewConsoleInformer(w io.Writer) *ConsoleInformer {
	return &ConsoleInformer{w: w}
}

// BeginCommand implements the Informer interface.
func (ci *ConsoleInformer) BeginCommand(description string) {
	fmt.Fprintf(ci.w, "    > %s ...", description)
}

// EndCommand implements the Informer interface.
func (ci *ConsoleInformer) EndCommand(elapsed time.Duration, err error) {
	if err != nil {
		color.New(color.FgRed).Fprintln(ci.w, " Failed")
		return
	}
	color.New(color.FgGreen).Fprintf(ci.w, " Done in %.3fs\n", elapsed.Seconds())
}

// NopInformer discards all notifications. It's used in compact mode.
type NopInformer struct{}

var _ Informer = NopInformer{}

// BeginCommand implements the Informer interface.
func (NopInformer) BeginCommand(string) {}

// EndCommand implements the Informer interface.
func (NopInformer) EndCommand(time.Duration, error) {}
