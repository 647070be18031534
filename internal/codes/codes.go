// Package codes classifies the failures cmake-analyze can surface and maps
// each class to the process exit code reported by the CLI.
package codes

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure.
type Kind int

const (
	Unknown Kind = iota
	Configuration
	ProtocolVersion
	ReplyMissing
	ReplyMalformed
	ToolchainUnresolved
	ExternalTool
	NotLoaded
	AnalysisFailed
)

// ErrorCodes maps failure kinds to process exit codes and their descriptions
var ErrorCodes = map[Kind]struct {
	Code        int
	Description string
}{
	Unknown:             {1, "Unexpected failure"},
	Configuration:       {2, "Invalid configuration or unconfigured build root"},
	ProtocolVersion:     {3, "CMake file API version is not supported"},
	ReplyMissing:        {4, "Expected CMake reply is missing"},
	ReplyMalformed:      {5, "CMake reply could not be parsed"},
	ToolchainUnresolved: {6, "No supported compiler found for C or C++"},
	ExternalTool:        {7, "External tool could not be run"},
	NotLoaded:           {8, "Build graph has not been loaded"},
	AnalysisFailed:      {9, "One or more sources failed analysis"},
}

// Sentinels for errors.Is. Any *Error of the same Kind matches.
var (
	ErrConfiguration       = &Error{Kind: Configuration}
	ErrProtocolVersion     = &Error{Kind: ProtocolVersion}
	ErrReplyMissing        = &Error{Kind: ReplyMissing}
	ErrReplyMalformed      = &Error{Kind: ReplyMalformed}
	ErrToolchainUnresolved = &Error{Kind: ToolchainUnresolved}
	ErrExternalTool        = &Error{Kind: ExternalTool}
	ErrNotLoaded           = &Error{Kind: NotLoaded, Msg: "build graph not loaded"}
	ErrAnalysisFailed      = &Error{Kind: AnalysisFailed}
)

// Error is a classified failure with a descriptive message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// New creates a classified error
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err, keeping it available to errors.Unwrap
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = GetErrorMessage(e.Kind)
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return Unknown
}

// ExitCode returns the process exit code for err, 0 for nil
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	return ErrorCodes[KindOf(err)].Code
}

// GetErrorMessage returns the description for a given kind, or a generic message if unknown
func GetErrorMessage(kind Kind) string {
	if c, ok := ErrorCodes[kind]; ok {
		return c.Description
	}

	return "Unknown error"
}
