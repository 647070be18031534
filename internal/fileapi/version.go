package fileapi

import (
	"github.com/hashicorp/go-version"

	"github.com/Norgate-AV/cmake-analyze/internal/codes"
)

// MinimumVersion is the oldest CMake whose file API replies we understand.
const MinimumVersion = "3.13.7"

var minimumVersion = version.Must(version.NewVersion(MinimumVersion))

// CheckVersion fails with a ProtocolVersion error when v is older than
// MinimumVersion. Segments are compared numerically, so 3.9.0 is older than
// 3.13.7 and 3.100.0 is newer. "3.13" reads as 3.13.0.
func CheckVersion(v string) error {
	got, err := version.NewVersion(v)
	if err != nil {
		return codes.Wrap(codes.ReplyMalformed, err, "cannot read cmake version")
	}

	if got.Core().LessThan(minimumVersion) {
		return codes.New(codes.ProtocolVersion, "cmake %s is older than the minimum supported version %s", v, MinimumVersion)
	}

	return nil
}
