// Package cmake extracts the build graph of a configured CMake build tree
// through the file API and rebuilds per-source compile commands from it.
package cmake

import (
	"maps"

	"github.com/Norgate-AV/cmake-analyze/internal/codes"
	"github.com/Norgate-AV/cmake-analyze/internal/toolchain"
)

// State is the build graph read from one generation of a build tree. The
// zero value is unloaded and every accessor fails with codes.ErrNotLoaded.
type State struct {
	loaded bool

	// CMake version and executable reported by the index
	version   string
	cmakePath string

	replyDir       string
	sourceRoot     string
	cacheVariables map[string]string
	targetFiles    []string
	toolchains     toolchain.Resolution
}

// Loaded reports whether the state was populated by a successful load
func (s *State) Loaded() bool {
	return s != nil && s.loaded
}

func (s *State) check() error {
	if !s.Loaded() {
		return codes.ErrNotLoaded
	}

	return nil
}

// Version returns the CMake version that produced the replies
func (s *State) Version() (string, error) {
	if err := s.check(); err != nil {
		return "", err
	}

	return s.version, nil
}

// SourceRoot returns the top-level source directory of the project
func (s *State) SourceRoot() (string, error) {
	if err := s.check(); err != nil {
		return "", err
	}

	return s.sourceRoot, nil
}

// CacheVariables returns a copy of the CMake cache
func (s *State) CacheVariables() (map[string]string, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	return maps.Clone(s.cacheVariables), nil
}

// TargetFiles returns the target reply paths in code model order
func (s *State) TargetFiles() ([]string, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	return append([]string(nil), s.targetFiles...), nil
}

// Toolchains returns the compilers resolved per language
func (s *State) Toolchains() (toolchain.Resolution, error) {
	if err := s.check(); err != nil {
		return toolchain.Resolution{}, err
	}

	return s.toolchains, nil
}

// CMakePath returns the cmake executable recorded in the index
func (s *State) CMakePath() (string, error) {
	if err := s.check(); err != nil {
		return "", err
	}

	return s.cmakePath, nil
}
