package compiler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Norgate-AV/cmake-analyze/internal/cmake"
	"github.com/Norgate-AV/cmake-analyze/internal/codes"
	"github.com/Norgate-AV/cmake-analyze/internal/toolchain"
	"github.com/Norgate-AV/cmake-analyze/internal/utils"
)

// PluginName is the analysis engine loaded into cl.exe
const PluginName = "EspXEngine.dll"

// Commander interface for testing
type Commander interface {
	Run() error
}

// Options controls the flags added to every analysis invocation
type Options struct {
	// Ruleset is passed to /analyze:ruleset when set
	Ruleset string

	// AdditionalArgs are appended verbatim after the common flags
	AdditionalArgs string

	// IgnoreSystemHeaders silences diagnostics from external headers
	IgnoreSystemHeaders bool
}

// CommandBuilder handles building analysis commands
type CommandBuilder struct {
	opts Options

	// common flags keyed by compiler path
	common map[string]string

	execCommand func(ctx context.Context, path, cmdline string) (Commander, error)
	stat        func(name string) (os.FileInfo, error)
}

// NewCommandBuilder creates a new command builder
func NewCommandBuilder(opts Options) *CommandBuilder {
	return &CommandBuilder{
		opts:   opts,
		common: make(map[string]string),
		execCommand: func(ctx context.Context, path, cmdline string) (Commander, error) {
			return newCommand(ctx, path, cmdline)
		},
		stat: os.Stat,
	}
}

// Prepare computes the common analysis flags of each compiler. It must be
// called for every compiler before Command is asked for one of its sources.
func (cb *CommandBuilder) Prepare(compilers ...*toolchain.Compiler) error {
	for _, c := range compilers {
		if c == nil {
			continue
		}

		if _, ok := cb.common[c.Path]; ok {
			continue
		}

		args, err := cb.commonArgs(c)
		if err != nil {
			return err
		}

		cb.common[c.Path] = args
	}

	return nil
}

func (cb *CommandBuilder) commonArgs(c *toolchain.Compiler) (string, error) {
	plugin := filepath.Join(filepath.Dir(c.Path), PluginName)
	if _, err := cb.stat(plugin); err != nil {
		return "", codes.Wrap(codes.Configuration, err, "analysis plugin not found next to %s", c.Path)
	}

	args := []string{
		"/analyze:only",
		"/analyze:quiet",
		"/analyze:log:format:sarif",
		"/nologo",
		utils.Flag("/analyze:plugin", plugin),
	}

	if cb.opts.IgnoreSystemHeaders {
		args = append(args, "/external:W0", "/analyze:external-")
	}

	if cb.opts.Ruleset != "" {
		args = append(args, utils.Flag("/analyze:ruleset", cb.opts.Ruleset))
	}

	if extra := strings.TrimSpace(cb.opts.AdditionalArgs); extra != "" {
		args = append(args, extra)
	}

	return strings.Join(args, " "), nil
}

// Env returns the variables added to the environment of one analysis of a
// source compiled by c.
func (cb *CommandBuilder) Env(c *toolchain.Compiler) []string {
	env := []string{"CAEmitSarifLog=1"}

	if cb.opts.IgnoreSystemHeaders && len(c.Includes) > 0 {
		env = append(env, "CAExcludePath="+strings.Join(c.Includes, ";"))
	}

	return env
}

// Command builds the analysis invocation for one compile command, logging
// SARIF into resultsDir.
func (cb *CommandBuilder) Command(cc *cmake.CompileCommand, resultsDir string) (*ShellCommand, error) {
	if cc.Compiler == nil {
		return nil, codes.New(codes.ToolchainUnresolved, "no compiler for %s", cc.Source)
	}

	common, ok := cb.common[cc.Compiler.Path]
	if !ok {
		return nil, fmt.Errorf("compiler %s was not prepared", cc.Compiler.Path)
	}

	sarif := SarifPath(resultsDir, cc.Source)

	var args []string
	if cc.Args != "" {
		args = append(args, cc.Args)
	}

	args = append(args, common, utils.Flag("/analyze:log", sarif), utils.Quote(cc.Source))

	return &ShellCommand{
		Path:   cc.Compiler.Path,
		Args:   strings.Join(args, " "),
		Env:    cb.Env(cc.Compiler),
		Source: cc.Source,
		Sarif:  sarif,
	}, nil
}

// ExecuteCommand runs one analysis and waits for the compiler to exit. The
// compiler output is returned in both cases.
func (cb *CommandBuilder) ExecuteCommand(ctx context.Context, sc *ShellCommand) (string, error) {
	c, err := cb.execCommand(ctx, sc.Path, sc.Args)
	if err != nil {
		return "", codes.Wrap(codes.ExternalTool, err, "failed to prepare %s", sc.Path)
	}

	var output bytes.Buffer
	if cmd, ok := c.(*exec.Cmd); ok {
		cmd.Stdout = &output
		cmd.Stderr = &output
		cmd.Env = append(os.Environ(), sc.Env...)
	}

	if err := c.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return output.String(), codes.Wrap(codes.ExternalTool, err, "analysis of %s failed (exit code %d)", sc.Source, exitErr.ExitCode())
		}

		return output.String(), codes.Wrap(codes.ExternalTool, err, "failed to run %s", sc.Path)
	}

	return output.String(), nil
}

// SarifPath names the SARIF log of source inside resultsDir. The hash of the
// absolute source path keeps same-named files in different directories apart.
func SarifPath(resultsDir, source string) string {
	abs, err := filepath.Abs(source)
	if err != nil {
		abs = source
	}

	sum := sha256.Sum256([]byte(abs))
	name := fmt.Sprintf("%s.%s.sarif", filepath.Base(source), hex.EncodeToString(sum[:4]))

	return filepath.Join(resultsDir, name)
}
