package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// HashSource creates a unique hash for a source file and the command that
// analyzes it. The hash is based on:
// - Source file content
// - Compiler command line
// - Invocation environment (sorted for consistency)
// - Compiler version
//
// Headers pulled in by the source are not part of the hash.
func HashSource(key Key) (string, error) {
	h := sha256.New()

	// Hash source file content
	f, err := os.Open(key.SourceFile)
	if err != nil {
		return "", fmt.Errorf("failed to open source file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash source file: %w", err)
	}

	h.Write([]byte{0})
	h.Write([]byte(key.Command))
	h.Write([]byte{0})

	env := make([]string, len(key.Env))
	copy(env, key.Env)
	sort.Strings(env)
	h.Write([]byte(strings.Join(env, "|")))
	h.Write([]byte{0})

	h.Write([]byte(key.CompilerVersion))

	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile creates a hash of a file's content
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
