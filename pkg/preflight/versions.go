package preflight

import (
	"github.com/Masterminds/semver/v3"
)

// Version bounds the engine was tested against. Comparisons against them are
// strict: equality at a boundary is compatible.
var (
	// MaxTestedCompilerVersion is the newest kernel-compiler version the engine has
	// been tested with. Newer compilers only trigger a warning.
	MaxTestedCompilerVersion = semver.MustParse("3.0.0")

	// CompilerCapabilityThreshold: on hardware with compute capability major <= 7 the
	// attention kernels require a compiler strictly newer than this version.
	CompilerCapabilityThreshold = semver.MustParse("2.3.1")

	// MinModelLibraryVersion and MaxModelLibraryVersion bound the tested
	// model-definition library versions, inclusive on both ends.
	MinModelLibraryVersion = semver.MustParse("4.33.0")
	MaxModelLibraryVersion = semver.MustParse("4.44.1")
)

// withinTestedRange reports whether v is inside [min, max], boundary-inclusive.
func withinTestedRange(v, min, max *semver.Version) bool {
	return !v.LessThan(min) && !v.GreaterThan(max)
}
