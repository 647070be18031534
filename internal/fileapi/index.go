package fileapi

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/Norgate-AV/cmake-analyze/internal/codes"
)

// LatestIndex returns the path of the newest index file in replyDir.
// CMake embeds a sortable timestamp in index file names, so the
// lexicographically greatest name is the most recent.
func LatestIndex(replyDir string) (string, error) {
	entries, err := os.ReadDir(replyDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", codes.New(codes.ReplyMissing, "reply directory %s does not exist", replyDir)
		}

		return "", codes.Wrap(codes.ReplyMissing, err, "failed to read reply directory %s", replyDir)
	}

	latest := ""
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !IsIndexFile(name) {
			continue
		}

		if name > latest {
			latest = name
		}
	}

	if latest == "" {
		return "", codes.New(codes.ReplyMissing, "no index file in %s", replyDir)
	}

	return filepath.Join(replyDir, latest), nil
}

// IsIndexFile reports whether name looks like index-<timestamp>.json
func IsIndexFile(name string) bool {
	return strings.HasPrefix(name, "index-") && strings.HasSuffix(name, ".json")
}
