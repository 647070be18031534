package fileapi

import (
	"encoding/json"
	"fmt"

	"github.com/Norgate-AV/cmake-analyze/internal/codes"
)

// Object kinds requested from CMake
const (
	KindCache      = "cache"
	KindCodemodel  = "codemodel"
	KindToolchains = "toolchains"
)

// Index is the entry point CMake writes after every generation.
type Index struct {
	CMake struct {
		Version VersionInfo `json:"version"`
		Paths   struct {
			CMake string `json:"cmake"`
			CTest string `json:"ctest"`
		} `json:"paths"`
	} `json:"cmake"`

	// Reply holds one member per shared stateless query kind plus one
	// "client-*" member per client; only client members are decoded.
	Reply map[string]json.RawMessage `json:"reply"`
}

// VersionInfo is CMake's own version as reported in the index
type VersionInfo struct {
	Major   int    `json:"major"`
	Minor   int    `json:"minor"`
	Patch   int    `json:"patch"`
	Suffix  string `json:"suffix"`
	String  string `json:"string"`
	IsDirty bool   `json:"isDirty"`
}

// Response describes one reply object produced for a query request.
type Response struct {
	Kind    string `json:"kind"`
	Version struct {
		Major int `json:"major"`
		Minor int `json:"minor"`
	} `json:"version"`
	JSONFile string `json:"jsonFile"`

	// Error is set instead of JSONFile when CMake could not honor the request
	Error string `json:"error"`
}

type queryReply struct {
	Responses []Response `json:"responses"`
	Error     string     `json:"error"`
}

// Responses returns the responses to the query.json written by client.
// An index with no entry for the client yields no responses.
func (idx *Index) Responses(client string) ([]Response, error) {
	raw, ok := idx.Reply[client]
	if !ok {
		return nil, nil
	}

	var files map[string]json.RawMessage
	if err := json.Unmarshal(raw, &files); err != nil {
		return nil, codes.Wrap(codes.ReplyMalformed, err, "invalid reply entry for %s", client)
	}

	rawQuery, ok := files["query.json"]
	if !ok {
		return nil, nil
	}

	var q queryReply
	if err := json.Unmarshal(rawQuery, &q); err != nil {
		return nil, codes.Wrap(codes.ReplyMalformed, err, "invalid query.json reply for %s", client)
	}

	// A rejected query leaves cmake with nothing to answer
	if q.Error != "" {
		return nil, codes.New(codes.ReplyMissing, "cmake rejected query.json for %s: %s", client, q.Error)
	}

	return q.Responses, nil
}

// Cache is the cache-v2 object.
type Cache struct {
	Entries []CacheEntry `json:"entries"`
}

type CacheEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

// Variables flattens the cache entries to name -> value
func (c *Cache) Variables() map[string]string {
	vars := make(map[string]string, len(c.Entries))
	for _, e := range c.Entries {
		vars[e.Name] = e.Value
	}

	return vars
}

// Codemodel is the codemodel-v2 object.
type Codemodel struct {
	Paths struct {
		Source string `json:"source"`
		Build  string `json:"build"`
	} `json:"paths"`
	Configurations []Configuration `json:"configurations"`
}

type Configuration struct {
	Name    string      `json:"name"`
	Targets []TargetRef `json:"targets"`
}

type TargetRef struct {
	Name     string `json:"name"`
	ID       string `json:"id"`
	JSONFile string `json:"jsonFile"`
}

// Toolchains is the toolchains-v1 object.
type Toolchains struct {
	Toolchains []Toolchain `json:"toolchains"`
}

type Toolchain struct {
	Language string `json:"language"`
	Compiler struct {
		ID       string `json:"id"`
		Path     string `json:"path"`
		Version  string `json:"version"`
		Implicit struct {
			IncludeDirectories []string `json:"includeDirectories"`
		} `json:"implicit"`

		// Flat form accepted for hand-written replies
		IncludeDirectories []string `json:"includeDirectories"`
	} `json:"compiler"`
}

// IncludeDirectories returns the compiler's implicit include directories
func (t *Toolchain) IncludeDirectories() []string {
	if len(t.Compiler.Implicit.IncludeDirectories) > 0 {
		return t.Compiler.Implicit.IncludeDirectories
	}

	return t.Compiler.IncludeDirectories
}

// Target is a codemodel target object.
type Target struct {
	Name          string         `json:"name"`
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Sources       []Source       `json:"sources"`
	CompileGroups []CompileGroup `json:"compileGroups"`
}

type Source struct {
	Path              string `json:"path"`
	CompileGroupIndex *int   `json:"compileGroupIndex"`
	IsGenerated       bool   `json:"isGenerated"`
}

// CompileGroup is a set of sources in a target compiled with identical
// settings.
type CompileGroup struct {
	Language                string             `json:"language"`
	CompileCommandFragments []Fragment         `json:"compileCommandFragments"`
	Includes                []Include          `json:"includes"`
	Defines                 []Define           `json:"defines"`
	PrecompileHeaders       []PrecompileHeader `json:"precompileHeaders"`
	SourceIndexes           []int              `json:"sourceIndexes"`
}

type Fragment struct {
	Fragment string `json:"fragment"`
}

type Include struct {
	Path     string `json:"path"`
	IsSystem bool   `json:"isSystem"`
}

type Define struct {
	Define string `json:"define"`
}

type PrecompileHeader struct {
	Header string `json:"header"`
}

func (g CompileGroup) String() string {
	return fmt.Sprintf("%s group (%d sources)", g.Language, len(g.SourceIndexes))
}
