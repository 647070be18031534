//go:build !windows

package compiler

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/google/shlex"
)

func newCommand(ctx context.Context, path, cmdline string) (*exec.Cmd, error) {
	args, err := shlex.Split(cmdline)
	if err != nil {
		return nil, fmt.Errorf("failed to split command line: %w", err)
	}

	return exec.CommandContext(ctx, path, args...), nil
}
