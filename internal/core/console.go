package core

import (
	"fmt"
	"sync"
)

// Console receives the human-readable diagnostic lines of a run. Callers may
// log or display them verbatim.
type Console interface {
	Println(line string)
}

// ConsoleFunc adapts a function to Console.
type ConsoleFunc func(line string)

// Println calls f(line).
func (f ConsoleFunc) Println(line string) { f(line) }

// Discard drops every line.
var Discard Console = ConsoleFunc(func(string) {})

// Transcript records lines in memory. Safe for concurrent use.
type Transcript struct {
	mu    sync.Mutex
	lines []string
}

// Println appends a line.
func (t *Transcript) Println(line string) {
	t.mu.Lock()
	t.lines = append(t.lines, line)
	t.mu.Unlock()
}

// Lines returns a copy of the recorded lines.
func (t *Transcript) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}

func printf(c Console, format string, args ...any) {
	if c == nil {
		return
	}
	c.Println(fmt.Sprintf(format, args...))
}
