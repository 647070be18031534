package cache

import "time"

// Key identifies one analysis of a source file
type Key struct {
	// SourceFile is the absolute path of the analyzed file
	SourceFile string

	// Command is the full compiler command line
	Command string

	// Env holds the variables added for the invocation
	Env []string

	// CompilerVersion is the MSVC toolset version
	CompilerVersion string
}

// Entry represents a cached analysis result
type Entry struct {
	// Hash is the unique identifier for this cache entry
	// Computed from: source file content + command line + environment + compiler version
	Hash string `json:"hash"`

	// SourceFile is the absolute path to the analyzed source
	SourceFile string `json:"source_file"`

	// Command is the compiler command line used
	Command string `json:"command"`

	// CompilerVersion is the MSVC toolset version used
	CompilerVersion string `json:"compiler_version"`

	// SarifLog is the file name of the SARIF log, stored under artifacts/<hash>/
	SarifLog string `json:"sarif_log"`

	// SarifHash is the SHA256 of the stored log, checked before restoring it
	SarifHash string `json:"sarif_hash"`

	// RunID identifies the analysis run that produced this entry
	RunID string `json:"run_id"`

	// Timestamp when this entry was created
	Timestamp time.Time `json:"timestamp"`

	// Success indicates if the analysis was successful
	Success bool `json:"success"`
}
