//go:build windows

package compiler

import (
	"context"
	"os/exec"
	"syscall"

	"github.com/Norgate-AV/cmake-analyze/internal/utils"
)

// newCommand hands the command line to the compiler untouched; cl.exe parses
// it itself and the arguments are already quoted for it.
func newCommand(ctx context.Context, path, cmdline string) (*exec.Cmd, error) {
	cmd := exec.CommandContext(ctx, path)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CmdLine: utils.Quote(path) + " " + cmdline,
	}

	return cmd, nil
}
