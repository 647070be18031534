package compiler

import (
	"fmt"
	"strings"

	"github.com/Norgate-AV/cmake-analyze/internal/utils"
)

// ShellCommand is one fully built analysis invocation
type ShellCommand struct {
	Path string

	// Args is the raw command line after the executable
	Args string

	// Env is added to the inherited environment
	Env []string

	Source string
	Sarif  string
}

// String renders the command the way it would be typed in a shell
func (sc *ShellCommand) String() string {
	return utils.Quote(sc.Path) + " " + sc.Args
}

// Script renders the command with its environment, one assignment per line
func (sc *ShellCommand) Script() string {
	var b strings.Builder
	for _, kv := range sc.Env {
		fmt.Fprintf(&b, "set %s\n", kv)
	}

	b.WriteString(sc.String())

	return b.String()
}
