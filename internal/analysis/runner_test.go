package analysis

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/cmake-analyze/internal/cache"
	"github.com/Norgate-AV/cmake-analyze/internal/cmake"
	"github.com/Norgate-AV/cmake-analyze/internal/codes"
	"github.com/Norgate-AV/cmake-analyze/internal/compiler"
	"github.com/Norgate-AV/cmake-analyze/internal/toolchain"
)

var testCL = &toolchain.Compiler{Path: `C:\VC\bin\Hostx64\x64\cl.exe`, Version: "14.29.30133"}

type fakeSource struct {
	root     string
	commands []*cmake.CompileCommand
	seqErr   error
	gotOpts  cmake.Options
}

func (f *fakeSource) CompileCommands(opts cmake.Options) (iter.Seq2[*cmake.CompileCommand, error], error) {
	f.gotOpts = opts
	return func(yield func(*cmake.CompileCommand, error) bool) {
		for _, cc := range f.commands {
			c := *cc
			if !yield(&c, nil) {
				return
			}
		}

		if f.seqErr != nil {
			yield(nil, f.seqErr)
		}
	}, nil
}

func (f *fakeSource) Toolchains() (toolchain.Resolution, error) {
	return toolchain.Resolution{CXX: testCL}, nil
}

func (f *fakeSource) SourceRoot() (string, error) {
	return f.root, nil
}

type fakeAnalyzer struct {
	prepared   []*toolchain.Compiler
	prepareErr error
	fail       map[string]bool
	executed   []string
}

func (f *fakeAnalyzer) Prepare(compilers ...*toolchain.Compiler) error {
	f.prepared = compilers
	return f.prepareErr
}

func (f *fakeAnalyzer) Command(cc *cmake.CompileCommand, resultsDir string) (*compiler.ShellCommand, error) {
	return &compiler.ShellCommand{
		Path:   cc.Compiler.Path,
		Args:   cc.Args + ` "` + cc.Source + `"`,
		Env:    []string{"CAEmitSarifLog=1"},
		Source: cc.Source,
		Sarif:  compiler.SarifPath(resultsDir, cc.Source),
	}, nil
}

func (f *fakeAnalyzer) ExecuteCommand(ctx context.Context, sc *compiler.ShellCommand) (string, error) {
	f.executed = append(f.executed, filepath.Base(sc.Source))
	if f.fail[filepath.Base(sc.Source)] {
		return "error C1083: Cannot open include file", errors.New("exit status 2")
	}

	return "", os.WriteFile(sc.Sarif, []byte(`{"runs": []}`), 0o644)
}

// project creates source files under a fresh source root
func project(t *testing.T, names ...string) *fakeSource {
	t.Helper()

	root := t.TempDir()
	src := &fakeSource{root: root}
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("// "+name), 0o644))

		src.commands = append(src.commands, &cmake.CompileCommand{
			Source:   path,
			Args:     "-O2",
			Compiler: testCL,
			Language: "CXX",
			Target:   "app",
		})
	}

	return src
}

func TestRunner_Run(t *testing.T) {
	src := project(t, "main.cpp", "util/strings.cpp")
	analyzer := &fakeAnalyzer{}
	results := filepath.Join(t.TempDir(), "results")

	r := NewRunner(src, analyzer, nil, nil, Options{ResultsDir: results, IgnoreSystemHeaders: true})
	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Analyzed)
	assert.Zero(t, summary.Failed)
	assert.Len(t, summary.RunID, 36)
	assert.Equal(t, []string{"main.cpp", "strings.cpp"}, analyzer.executed)
	assert.Equal(t, []*toolchain.Compiler{nil, testCL}, analyzer.prepared)
	assert.Equal(t, cmake.Options{IgnoreSystemHeaders: true}, src.gotOpts)

	for _, cc := range src.commands {
		assert.FileExists(t, compiler.SarifPath(results, cc.Source))
	}
}

func TestRunner_Run_Exclude(t *testing.T) {
	src := project(t, "main.cpp", "third_party/zlib/inflate.c", "tests/main_test.cpp")
	analyzer := &fakeAnalyzer{}

	r := NewRunner(src, analyzer, nil, nil, Options{
		ResultsDir: t.TempDir(),
		Exclude:    []string{"third_party/**", "**/*_test.cpp"},
	})
	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Excluded)
	assert.Equal(t, []string{"main.cpp"}, analyzer.executed)
}

func TestRunner_Run_FailuresContinue(t *testing.T) {
	src := project(t, "a.cpp", "b.cpp", "c.cpp")
	analyzer := &fakeAnalyzer{fail: map[string]bool{"b.cpp": true}}

	var logs bytes.Buffer
	logger := log.New(&logs)

	r := NewRunner(src, analyzer, nil, logger, Options{ResultsDir: t.TempDir()})
	summary, err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, codes.ErrAnalysisFailed)
	assert.Equal(t, 9, codes.ExitCode(err))

	assert.Equal(t, []string{"a.cpp", "b.cpp", "c.cpp"}, analyzer.executed)
	assert.Equal(t, 2, summary.Analyzed)
	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, logs.String(), "analysis failed")
	assert.Contains(t, logs.String(), "C1083")
}

func TestRunner_Run_DryRun(t *testing.T) {
	src := project(t, "main.cpp")
	analyzer := &fakeAnalyzer{}
	results := filepath.Join(t.TempDir(), "results")

	var out bytes.Buffer
	r := NewRunner(src, analyzer, nil, nil, Options{ResultsDir: results, DryRun: true})
	r.Out = &out

	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, analyzer.executed)
	assert.Equal(t, 1, summary.Total)
	assert.Contains(t, out.String(), "set CAEmitSarifLog=1")
	assert.Contains(t, out.String(), "main.cpp")
	assert.NoDirExists(t, results)
}

func TestRunner_Run_Cache(t *testing.T) {
	src := project(t, "main.cpp", "util.cpp")
	results := t.TempDir()

	c, err := cache.New(t.TempDir())
	require.NoError(t, err)
	defer c.Close()

	first := &fakeAnalyzer{}
	summary, err := NewRunner(src, first, c, nil, Options{ResultsDir: results}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Analyzed)

	t.Run("unchanged sources are skipped", func(t *testing.T) {
		again := &fakeAnalyzer{}
		summary, err := NewRunner(src, again, c, nil, Options{ResultsDir: results}).Run(context.Background())
		require.NoError(t, err)
		assert.Empty(t, again.executed)
		assert.Equal(t, 2, summary.Cached)
	})

	t.Run("missing logs are restored", func(t *testing.T) {
		sarif := compiler.SarifPath(results, src.commands[0].Source)
		require.NoError(t, os.Remove(sarif))

		again := &fakeAnalyzer{}
		summary, err := NewRunner(src, again, c, nil, Options{ResultsDir: results}).Run(context.Background())
		require.NoError(t, err)
		assert.Empty(t, again.executed)
		assert.Equal(t, 2, summary.Cached)
		assert.FileExists(t, sarif)
	})

	t.Run("changed sources are analyzed", func(t *testing.T) {
		require.NoError(t, os.WriteFile(src.commands[1].Source, []byte("int x;"), 0o644))

		again := &fakeAnalyzer{}
		summary, err := NewRunner(src, again, c, nil, Options{ResultsDir: results}).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"util.cpp"}, again.executed)
		assert.Equal(t, 1, summary.Cached)
		assert.Equal(t, 1, summary.Analyzed)
	})

	t.Run("failed analyses are retried", func(t *testing.T) {
		require.NoError(t, os.WriteFile(src.commands[0].Source, []byte("#include <missing.h>"), 0o644))

		failing := &fakeAnalyzer{fail: map[string]bool{"main.cpp": true}}
		_, err := NewRunner(src, failing, c, nil, Options{ResultsDir: results}).Run(context.Background())
		assert.ErrorIs(t, err, codes.ErrAnalysisFailed)

		again := &fakeAnalyzer{}
		_, err = NewRunner(src, again, c, nil, Options{ResultsDir: results}).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"main.cpp"}, again.executed)
	})
}

func TestRunner_Run_Errors(t *testing.T) {
	t.Run("prepare failure stops before analysis", func(t *testing.T) {
		src := project(t, "main.cpp")
		analyzer := &fakeAnalyzer{prepareErr: codes.New(codes.Configuration, "analysis plugin not found")}

		_, err := NewRunner(src, analyzer, nil, nil, Options{ResultsDir: t.TempDir()}).Run(context.Background())
		assert.ErrorIs(t, err, codes.ErrConfiguration)
		assert.Empty(t, analyzer.executed)
	})

	t.Run("reply errors stop the run", func(t *testing.T) {
		src := project(t, "main.cpp")
		src.seqErr = codes.New(codes.ReplyMalformed, "bad target")
		analyzer := &fakeAnalyzer{}

		summary, err := NewRunner(src, analyzer, nil, nil, Options{ResultsDir: t.TempDir()}).Run(context.Background())
		assert.ErrorIs(t, err, codes.ErrReplyMalformed)
		assert.Equal(t, 1, summary.Analyzed)
	})

	t.Run("cancelled context", func(t *testing.T) {
		src := project(t, "main.cpp")
		analyzer := &fakeAnalyzer{}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewRunner(src, analyzer, nil, nil, Options{ResultsDir: t.TempDir()}).Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, analyzer.executed)
	})
}

func TestRelativeTo(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "proj")

	assert.Equal(t, "src/main.cpp", relativeTo(root, filepath.Join(root, "src", "main.cpp")))

	outside := filepath.Join(string(filepath.Separator), "build", "gen", "version.cpp")
	assert.Equal(t, filepath.ToSlash(outside), relativeTo(root, outside))
}

func TestSummary_String(t *testing.T) {
	s := &Summary{Total: 4, Analyzed: 1, Cached: 1, Excluded: 1, Failed: 1}
	assert.Equal(t, "4 sources: 1 analyzed, 1 cached, 1 excluded, 1 failed in 0s", s.String())
}
