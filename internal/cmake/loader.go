package cmake

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/Norgate-AV/cmake-analyze/internal/codes"
	"github.com/Norgate-AV/cmake-analyze/internal/fileapi"
	"github.com/Norgate-AV/cmake-analyze/internal/toolchain"
)

// Commander interface for testing
type Commander interface {
	Run() error
}

// Loader runs the file API query/reply exchange against one build tree.
type Loader struct {
	// BuildRoot is the configured CMake binary directory
	BuildRoot string

	// CMakePath overrides the cmake executable found on PATH
	CMakePath string

	// Env is appended to the environment of the cmake child process only
	Env []string

	execCommand func(ctx context.Context, name string, args ...string) Commander
	lookPath    func(file string) (string, error)
}

// NewLoader creates a loader for buildRoot
func NewLoader(buildRoot string) *Loader {
	return &Loader{
		BuildRoot: buildRoot,
		execCommand: func(ctx context.Context, name string, args ...string) Commander {
			return exec.CommandContext(ctx, name, args...)
		},
		lookPath: exec.LookPath,
	}
}

// Load queries CMake for the cache, code model and toolchains of the build
// tree and returns the resulting build graph. It re-runs CMake on the build
// tree once and waits for it to exit. Any failure aborts the load.
func (l *Loader) Load(ctx context.Context) (*State, error) {
	if err := l.preflight(); err != nil {
		return nil, err
	}

	cmakePath, err := l.findCMake()
	if err != nil {
		return nil, err
	}

	replyDir := fileapi.ReplyDir(l.BuildRoot)

	// Gate on replies left by a previous run before touching the tree. A tree
	// that has never been queried has no index yet and is checked below.
	if _, err := l.readIndex(replyDir); err != nil && !errors.Is(err, codes.ErrReplyMissing) {
		return nil, err
	}

	if _, err := fileapi.WriteQuery(l.BuildRoot, fileapi.ClientName, fileapi.DefaultRequests); err != nil {
		return nil, err
	}

	if err := l.regenerate(ctx, cmakePath); err != nil {
		return nil, err
	}

	idx, err := l.readIndex(replyDir)
	if err != nil {
		return nil, err
	}

	responses, err := idx.Responses(fileapi.ClientName)
	if err != nil {
		return nil, err
	}

	s := &State{
		version:   idx.CMake.Version.String,
		cmakePath: idx.CMake.Paths.CMake,
		replyDir:  replyDir,
	}

	var haveCache, haveCodemodel bool
	var resolution *toolchain.Resolution

	for _, r := range responses {
		if r.Error != "" || r.JSONFile == "" {
			continue
		}

		path := fileapi.Resolve(replyDir, r.JSONFile)

		switch r.Kind {
		case fileapi.KindCache:
			c, err := fileapi.ReadCache(path)
			if err != nil {
				return nil, err
			}

			s.cacheVariables = c.Variables()
			haveCache = true

		case fileapi.KindCodemodel:
			if err := s.loadCodemodel(path); err != nil {
				return nil, err
			}

			haveCodemodel = true

		case fileapi.KindToolchains:
			tc, err := fileapi.ReadToolchains(path)
			if err != nil {
				return nil, err
			}

			resolution = toolchain.FromToolchains(tc)
		}
	}

	if !haveCache {
		return nil, codes.New(codes.ReplyMissing, "cmake did not answer the %s query", fileapi.KindCache)
	}

	if !haveCodemodel {
		return nil, codes.New(codes.ReplyMissing, "cmake did not answer the %s query", fileapi.KindCodemodel)
	}

	// CMake < 3.20 has no toolchains object
	if resolution == nil {
		resolution = toolchain.FromCache(s.cacheVariables)
	}

	if err := resolution.Validate(); err != nil {
		return nil, err
	}

	s.toolchains = *resolution
	s.loaded = true

	return s, nil
}

// preflight checks the build root looks like a configured build tree.
func (l *Loader) preflight() error {
	if l.BuildRoot == "" {
		return codes.New(codes.Configuration, "build root not specified")
	}

	info, err := os.Stat(l.BuildRoot)
	if err != nil {
		return codes.Wrap(codes.Configuration, err, "build root %s is not accessible", l.BuildRoot)
	}

	if !info.IsDir() {
		return codes.New(codes.Configuration, "build root %s is not a directory", l.BuildRoot)
	}

	entries, err := os.ReadDir(l.BuildRoot)
	if err != nil {
		return codes.Wrap(codes.Configuration, err, "failed to read build root %s", l.BuildRoot)
	}

	if len(entries) == 0 {
		return codes.New(codes.Configuration, "build root %s is empty; configure the project with cmake first", l.BuildRoot)
	}

	return nil
}

func (l *Loader) findCMake() (string, error) {
	name := l.CMakePath
	if name == "" {
		name = "cmake"
	}

	path, err := l.lookPath(name)
	if err != nil {
		return "", codes.Wrap(codes.ExternalTool, err, "unable to find %s", name)
	}

	return path, nil
}

func (l *Loader) readIndex(replyDir string) (*fileapi.Index, error) {
	path, err := fileapi.LatestIndex(replyDir)
	if err != nil {
		return nil, err
	}

	idx, err := fileapi.ReadIndex(path)
	if err != nil {
		return nil, err
	}

	if err := fileapi.CheckVersion(idx.CMake.Version.String); err != nil {
		return nil, err
	}

	return idx, nil
}

// regenerate re-runs cmake on the build tree so it answers our query.
func (l *Loader) regenerate(ctx context.Context, cmakePath string) error {
	var output bytes.Buffer

	c := l.execCommand(ctx, cmakePath, l.BuildRoot)
	if cmd, ok := c.(*exec.Cmd); ok {
		cmd.Stdout = &output
		cmd.Stderr = &output
		cmd.Env = l.environ()
	}

	if err := c.Run(); err != nil {
		if out := strings.TrimSpace(output.String()); out != "" {
			return codes.Wrap(codes.ExternalTool, err, "cmake failed to regenerate %s:\n%s", l.BuildRoot, out)
		}

		return codes.Wrap(codes.ExternalTool, err, "cmake failed to regenerate %s", l.BuildRoot)
	}

	return nil
}

// environ returns the cmake child environment; nil inherits ours unchanged
func (l *Loader) environ() []string {
	if len(l.Env) == 0 {
		return nil
	}

	return append(os.Environ(), l.Env...)
}

func (s *State) loadCodemodel(path string) error {
	cm, err := fileapi.ReadCodemodel(path)
	if err != nil {
		return err
	}

	if cm.Paths.Source == "" {
		return codes.New(codes.ReplyMalformed, "code model %s has no source path", path)
	}

	if len(cm.Configurations) == 0 {
		return codes.New(codes.ReplyMalformed, "code model %s has no configurations", path)
	}

	s.sourceRoot = cm.Paths.Source

	// Multi-config generators list one configuration per build type; only
	// the first is analyzed.
	for _, t := range cm.Configurations[0].Targets {
		s.targetFiles = append(s.targetFiles, fileapi.Resolve(s.replyDir, t.JSONFile))
	}

	return nil
}
