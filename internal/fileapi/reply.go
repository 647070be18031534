// Package fileapi reads and writes the documents exchanged with CMake's
// file-based API (https://cmake.org/cmake/help/latest/manual/cmake-file-api.7.html).
//
// A client writes a query under <build>/.cmake/api/v1/query/<client>/ and
// re-runs CMake, which answers with an index file plus one reply document per
// requested object kind in <build>/.cmake/api/v1/reply/.
package fileapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Norgate-AV/cmake-analyze/internal/codes"
)

// ClientName namespaces our queries and replies from other file API clients.
const ClientName = "client-cmake-analyze"

// APIDir returns the file API root for a build tree
func APIDir(buildRoot string) string {
	return filepath.Join(buildRoot, ".cmake", "api", "v1")
}

// ReplyDir returns the directory CMake writes replies to
func ReplyDir(buildRoot string) string {
	return filepath.Join(APIDir(buildRoot), "reply")
}

// QueryDir returns the query directory for the given client
func QueryDir(buildRoot, client string) string {
	return filepath.Join(APIDir(buildRoot), "query", client)
}

// ReadReply decodes the reply document at path into v.
func ReadReply(path string, v any) error {
	if path == "" {
		return codes.New(codes.ReplyMissing, "reply file path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return codes.New(codes.ReplyMissing, "reply file %s does not exist", path)
		}

		return codes.Wrap(codes.ReplyMissing, err, "failed to read reply file %s", path)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return codes.Wrap(codes.ReplyMalformed, err, "failed to parse reply file %s", path)
	}

	return nil
}

func readAs[T any](path string) (*T, error) {
	var v T
	if err := ReadReply(path, &v); err != nil {
		return nil, err
	}

	return &v, nil
}

// ReadIndex reads an index-*.json document
func ReadIndex(path string) (*Index, error) {
	return readAs[Index](path)
}

// ReadCache reads a cache-v2 reply
func ReadCache(path string) (*Cache, error) {
	return readAs[Cache](path)
}

// ReadCodemodel reads a codemodel-v2 reply
func ReadCodemodel(path string) (*Codemodel, error) {
	return readAs[Codemodel](path)
}

// ReadToolchains reads a toolchains-v1 reply
func ReadToolchains(path string) (*Toolchains, error) {
	return readAs[Toolchains](path)
}

// ReadTarget reads a codemodel target reply and checks its source indexes.
func ReadTarget(path string) (*Target, error) {
	t, err := readAs[Target](path)
	if err != nil {
		return nil, err
	}

	for gi, g := range t.CompileGroups {
		for _, si := range g.SourceIndexes {
			if si < 0 || si >= len(t.Sources) {
				return nil, codes.New(codes.ReplyMalformed,
					"target %q compile group %d references source %d of %d in %s",
					t.Name, gi, si, len(t.Sources), path)
			}
		}
	}

	return t, nil
}

// Resolve returns the absolute path of a jsonFile reference, which CMake
// records relative to the reply directory.
func Resolve(replyDir, jsonFile string) string {
	if jsonFile == "" || filepath.IsAbs(jsonFile) {
		return jsonFile
	}

	return filepath.Join(replyDir, jsonFile)
}

func (r Response) String() string {
	return fmt.Sprintf("%s-v%d.%d", r.Kind, r.Version.Major, r.Version.Minor)
}
