package cmake

import (
	"iter"
	"path/filepath"
	"strings"

	"github.com/Norgate-AV/cmake-analyze/internal/fileapi"
	"github.com/Norgate-AV/cmake-analyze/internal/toolchain"
	"github.com/Norgate-AV/cmake-analyze/internal/utils"
)

// Options control how compile commands are rebuilt.
type Options struct {
	// IgnoreSystemHeaders passes system include directories with
	// /external:I so diagnostics in them can be suppressed.
	IgnoreSystemHeaders bool

	// UsePrecompiledHeaders is accepted but currently has no effect.
	UsePrecompiledHeaders bool
}

// CompileCommand is the rebuilt compiler invocation for one source file.
type CompileCommand struct {
	Source   string
	Args     string
	Compiler *toolchain.Compiler

	Language string
	Target   string
}

// CompileCommands returns the compile command of every C and C++ source the
// loaded compilers can build. Commands come in target order, then compile
// group order, then source index order. Target replies are read as the
// sequence is consumed; a read failure is yielded once and ends the
// sequence. Each call to the returned sequence starts over.
func (s *State) CompileCommands(opts Options) (iter.Seq2[*CompileCommand, error], error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	return func(yield func(*CompileCommand, error) bool) {
		for _, path := range s.targetFiles {
			target, err := fileapi.ReadTarget(path)
			if err != nil {
				yield(nil, err)
				return
			}

			for _, group := range target.CompileGroups {
				compiler := s.toolchains.For(group.Language)
				if compiler == nil {
					continue
				}

				args := BuildArgs(group, opts)
				for _, i := range group.SourceIndexes {
					cc := &CompileCommand{
						Source:   s.sourcePath(target.Sources[i].Path),
						Args:     args,
						Compiler: compiler,
						Language: group.Language,
						Target:   target.Name,
					}

					if !yield(cc, nil) {
						return
					}
				}
			}
		}
	}, nil
}

// BuildArgs rebuilds the argument string shared by all sources of a group:
// CMake's fragments verbatim, then include flags, then define flags.
func BuildArgs(group fileapi.CompileGroup, opts Options) string {
	args := make([]string, 0, len(group.CompileCommandFragments)+len(group.Includes)+len(group.Defines))

	for _, f := range group.CompileCommandFragments {
		args = append(args, f.Fragment)
	}

	for _, inc := range group.Includes {
		if opts.IgnoreSystemHeaders && inc.IsSystem {
			args = append(args, utils.Flag("/external:I", inc.Path))
		} else {
			args = append(args, utils.Flag("/I", inc.Path))
		}
	}

	for _, d := range group.Defines {
		args = append(args, utils.Flag("/D", d.Define))
	}

	return strings.Join(args, " ")
}

// Collect drains a compile command sequence, stopping at the first error.
func Collect(seq iter.Seq2[*CompileCommand, error]) ([]*CompileCommand, error) {
	var out []*CompileCommand
	for cc, err := range seq {
		if err != nil {
			return out, err
		}

		out = append(out, cc)
	}

	return out, nil
}

func (s *State) sourcePath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	return filepath.Join(s.sourceRoot, path)
}
