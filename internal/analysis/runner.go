// Package analysis drives MSVC code analysis over every source of a loaded
// CMake build graph, one compiler invocation at a time.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/Norgate-AV/cmake-analyze/internal/cache"
	"github.com/Norgate-AV/cmake-analyze/internal/cmake"
	"github.com/Norgate-AV/cmake-analyze/internal/codes"
	"github.com/Norgate-AV/cmake-analyze/internal/compiler"
	"github.com/Norgate-AV/cmake-analyze/internal/toolchain"
)

// CommandSource is a loaded build graph
type CommandSource interface {
	CompileCommands(opts cmake.Options) (iter.Seq2[*cmake.CompileCommand, error], error)
	Toolchains() (toolchain.Resolution, error)
	SourceRoot() (string, error)
}

// Analyzer builds and runs analysis invocations
type Analyzer interface {
	Prepare(compilers ...*toolchain.Compiler) error
	Command(cc *cmake.CompileCommand, resultsDir string) (*compiler.ShellCommand, error)
	ExecuteCommand(ctx context.Context, sc *compiler.ShellCommand) (string, error)
}

// Options controls a run
type Options struct {
	ResultsDir string

	// Exclude holds doublestar patterns matched against source paths
	// relative to the source root
	Exclude []string

	IgnoreSystemHeaders   bool
	UsePrecompiledHeaders bool

	// DryRun prints every command instead of running it
	DryRun bool
}

// Summary counts what happened to each source of a run
type Summary struct {
	RunID    string
	Total    int
	Analyzed int
	Cached   int
	Excluded int
	Failed   int
	Duration time.Duration
}

func (s *Summary) String() string {
	return fmt.Sprintf("%d sources: %d analyzed, %d cached, %d excluded, %d failed in %s",
		s.Total, s.Analyzed, s.Cached, s.Excluded, s.Failed, s.Duration.Round(time.Millisecond))
}

// Runner analyzes the sources of one build graph
type Runner struct {
	source   CommandSource
	analyzer Analyzer
	cache    *cache.Cache
	logger   *log.Logger
	opts     Options

	// Out receives dry-run output
	Out io.Writer
}

// NewRunner creates a runner. c may be nil to disable incremental analysis.
func NewRunner(source CommandSource, analyzer Analyzer, c *cache.Cache, logger *log.Logger, opts Options) *Runner {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Runner{
		source:   source,
		analyzer: analyzer,
		cache:    c,
		logger:   logger,
		opts:     opts,
		Out:      os.Stdout,
	}
}

// Run analyzes every compile command in build graph order. A source that
// fails analysis is logged and counted; the run carries on and ends with a
// codes.ErrAnalysisFailed error. Any other error stops the run.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: uuid.NewString()}
	logger := r.logger.With("run", summary.RunID[:8])

	tc, err := r.source.Toolchains()
	if err != nil {
		return summary, err
	}

	if err := r.analyzer.Prepare(tc.C, tc.CXX); err != nil {
		return summary, err
	}

	sourceRoot, err := r.source.SourceRoot()
	if err != nil {
		return summary, err
	}

	if !r.opts.DryRun {
		if err := os.MkdirAll(r.opts.ResultsDir, 0o755); err != nil {
			return summary, codes.Wrap(codes.Configuration, err, "failed to create results directory %s", r.opts.ResultsDir)
		}
	}

	seq, err := r.source.CompileCommands(cmake.Options{
		IgnoreSystemHeaders:   r.opts.IgnoreSystemHeaders,
		UsePrecompiledHeaders: r.opts.UsePrecompiledHeaders,
	})
	if err != nil {
		return summary, err
	}

	for cc, err := range seq {
		if err != nil {
			return summary, err
		}

		if err := ctx.Err(); err != nil {
			return summary, err
		}

		summary.Total++
		rel := relativeTo(sourceRoot, cc.Source)

		if pattern, ok := r.excluded(rel); ok {
			summary.Excluded++
			logger.Debug("excluded", "source", rel, "pattern", pattern)
			continue
		}

		sc, err := r.analyzer.Command(cc, r.opts.ResultsDir)
		if err != nil {
			return summary, err
		}

		if r.opts.DryRun {
			fmt.Fprintln(r.Out, sc.Script())
			continue
		}

		key := cache.Key{
			SourceFile:      cc.Source,
			Command:         sc.String(),
			Env:             sc.Env,
			CompilerVersion: cc.Compiler.Version,
		}

		if r.fromCache(logger, key, sc, rel) {
			summary.Cached++
			continue
		}

		logger.Debug("analyzing", "source", rel, "target", cc.Target, "command", sc.String())

		output, err := r.analyzer.ExecuteCommand(ctx, sc)
		success := err == nil
		if !success {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summary, ctxErr
			}

			summary.Failed++
			logger.Error("analysis failed", "source", rel, "err", err)
			if out := strings.TrimSpace(output); out != "" {
				logger.Error(out)
			}
		} else {
			summary.Analyzed++
			logger.Info("analyzed", "source", rel, "sarif", filepath.Base(sc.Sarif))
		}

		if r.cache != nil {
			if err := r.cache.Store(key, sc.Sarif, summary.RunID, success); err != nil {
				logger.Warn("failed to cache analysis", "source", rel, "err", err)
			}
		}
	}

	summary.Duration = time.Since(start)

	if summary.Failed > 0 {
		return summary, codes.New(codes.AnalysisFailed, "%d of %d sources failed analysis", summary.Failed, summary.Total)
	}

	return summary, nil
}

// fromCache reports whether a previous successful analysis can stand in for
// this one, restoring its SARIF log when the results directory lost it.
func (r *Runner) fromCache(logger *log.Logger, key cache.Key, sc *compiler.ShellCommand, rel string) bool {
	if r.cache == nil {
		return false
	}

	entry, err := r.cache.Get(key)
	if err != nil {
		logger.Debug("cache lookup failed", "source", rel, "err", err)
		return false
	}

	if entry == nil || !entry.Success {
		return false
	}

	if _, err := os.Stat(sc.Sarif); err == nil {
		logger.Debug("cached", "source", rel, "run", entry.RunID)
		return true
	} else if !errors.Is(err, os.ErrNotExist) {
		return false
	}

	if err := r.cache.Restore(entry, filepath.Dir(sc.Sarif)); err != nil {
		logger.Warn("failed to restore cached analysis", "source", rel, "err", err)
		return false
	}

	logger.Debug("restored from cache", "source", rel, "run", entry.RunID)

	return true
}

func (r *Runner) excluded(rel string) (string, bool) {
	for _, pattern := range r.opts.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return pattern, true
		}
	}

	return "", false
}

// relativeTo returns source relative to root in slash form, or the slash
// form of source itself when it lies outside root.
func relativeTo(root, source string) string {
	rel, err := filepath.Rel(root, source)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(source)
	}

	return filepath.ToSlash(rel)
}
