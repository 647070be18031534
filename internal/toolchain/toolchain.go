// Package toolchain works out which MSVC compiler builds each language of a
// CMake project.
package toolchain

import (
	"path/filepath"
	"strings"

	"github.com/Norgate-AV/cmake-analyze/internal/codes"
	"github.com/Norgate-AV/cmake-analyze/internal/fileapi"
)

// Languages handled by the analyzer, as CMake names them
const (
	LanguageC   = "C"
	LanguageCXX = "CXX"
)

// CompilerID is CMake's identifier for the supported compiler family.
const CompilerID = "MSVC"

// Compiler is a resolved compiler for one language.
type Compiler struct {
	Path     string
	Version  string
	Includes []string
}

// Resolution holds the compiler resolved for each supported language.
// Either may be nil.
type Resolution struct {
	C   *Compiler
	CXX *Compiler
}

// For returns the compiler for a CMake language name, or nil
func (r *Resolution) For(language string) *Compiler {
	switch language {
	case LanguageC:
		return r.C
	case LanguageCXX:
		return r.CXX
	default:
		return nil
	}
}

func (r *Resolution) set(language string, c *Compiler) {
	switch language {
	case LanguageC:
		r.C = c
	case LanguageCXX:
		r.CXX = c
	}
}

// Validate fails when no language resolved to a supported compiler.
func (r *Resolution) Validate() error {
	if r.C == nil && r.CXX == nil {
		return codes.New(codes.ToolchainUnresolved, "no %s compiler found for C or C++", CompilerID)
	}

	return nil
}

// FromToolchains resolves compilers from a toolchains-v1 reply.
func FromToolchains(tc *fileapi.Toolchains) *Resolution {
	r := &Resolution{}
	for i := range tc.Toolchains {
		t := &tc.Toolchains[i]
		if t.Compiler.ID != CompilerID {
			continue
		}

		r.set(t.Language, &Compiler{
			Path:     t.Compiler.Path,
			Version:  t.Compiler.Version,
			Includes: append([]string(nil), t.IncludeDirectories()...),
		})
	}

	return r
}

// Cache variables naming the compiler for each language
var cacheCompilerVars = map[string]string{
	LanguageC:   "CMAKE_C_COMPILER",
	LanguageCXX: "CMAKE_CXX_COMPILER",
}

// FromCache resolves compilers from CMake cache variables, for CMake
// versions that do not answer toolchains queries.
//
// MSVC installs cl.exe as <toolset>/bin/Host<arch>/<arch>/cl.exe, so the
// toolset directory name is the compiler version and <toolset>/include
// holds its default headers. The include directory is taken three levels
// above the directory of cl.exe, not two: two levels up lands in
// <toolset>/bin, which has no include directory.
func FromCache(vars map[string]string) *Resolution {
	r := &Resolution{}
	for lang, name := range cacheCompilerVars {
		path := vars[name]
		if !IsSupportedExecutable(path) {
			continue
		}

		toolset := toolsetDir(path)
		r.set(lang, &Compiler{
			Path:     path,
			Version:  filepath.Base(toolset),
			Includes: []string{filepath.Join(toolset, "include")},
		})
	}

	return r
}

// IsSupportedExecutable reports whether path names cl.exe
func IsSupportedExecutable(path string) bool {
	if path == "" {
		return false
	}

	base := strings.ToLower(filepath.Base(filepath.FromSlash(path)))
	return base == "cl.exe" || base == "cl"
}

func toolsetDir(compilerPath string) string {
	// <arch> -> Host<arch> -> bin -> <toolset>
	dir := filepath.Dir(filepath.FromSlash(compilerPath))
	for range 3 {
		dir = filepath.Dir(dir)
	}

	return dir
}
