package fileapi

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/Norgate-AV/cmake-analyze/internal/codes"
)

// Request asks CMake for one object kind at a major version.
type Request struct {
	Kind    string `json:"kind"`
	Version int    `json:"version"`
}

// Query is the client stateful query document.
type Query struct {
	Requests []Request `json:"requests"`
}

// DefaultRequests are the objects needed to rebuild compile commands.
var DefaultRequests = []Request{
	{Kind: KindCache, Version: 2},
	{Kind: KindCodemodel, Version: 2},
	{Kind: KindToolchains, Version: 1},
}

// WriteQuery writes <build>/.cmake/api/v1/query/<client>/query.json,
// creating the query directory if needed, and returns the file path.
func WriteQuery(buildRoot, client string, requests []Request) (string, error) {
	dir := QueryDir(buildRoot, client)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", codes.Wrap(codes.Configuration, err, "failed to create query directory %s", dir)
	}

	data, err := json.MarshalIndent(Query{Requests: requests}, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, "query.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", codes.Wrap(codes.Configuration, err, "failed to write query %s", path)
	}

	return path, nil
}
