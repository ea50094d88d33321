// Package rollout decides whether multichain behaviour is visible for a run.
package rollout

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// BuildKind identifies the kind of build the engine is running in.
type BuildKind string

const (
	BuildRelease  BuildKind = "release"
	BuildBeta     BuildKind = "beta"
	BuildInternal BuildKind = "internal"
	BuildDebug    BuildKind = "debug"
)

// ParseBuildKind maps a config string to a BuildKind, defaulting to release.
func ParseBuildKind(s string) BuildKind {
	switch BuildKind(strings.ToLower(strings.TrimSpace(s))) {
	case BuildBeta:
		return BuildBeta
	case BuildInternal:
		return BuildInternal
	case BuildDebug:
		return BuildDebug
	default:
		return BuildRelease
	}
}

// Gate holds the operator inputs of the rollout decision. The zero value
// hides the feature.
type Gate struct {
	// UserToggle is the explicit user/operator switch.
	UserToggle bool
	// RolloutPercent in [0,100] is the share of installations that see the feature.
	RolloutPercent int
	// InternalBuildsBypassPercent lets internal and debug builds skip the percentage check.
	InternalBuildsBypassPercent bool
}

// Bucket maps an installation seed to a stable bucket in [0,100).
func Bucket(userSeed string) int {
	return int(xxhash.Sum64String(userSeed) % 100)
}

// IsMultichainVisible reports whether the feature is visible. The toggle, the
// stability kill-switch and the percentage eligibility must all allow it.
// It has no side effects.
func (g Gate) IsMultichainVisible(userSeed string, buildKind BuildKind, stabilityFlag bool) bool {
	if !g.UserToggle || !stabilityFlag {
		return false
	}
	if g.InternalBuildsBypassPercent && (buildKind == BuildInternal || buildKind == BuildDebug) {
		return true
	}
	return g.eligible(userSeed)
}

func (g Gate) eligible(userSeed string) bool {
	switch {
	case g.RolloutPercent <= 0:
		return false
	case g.RolloutPercent >= 100:
		return true
	}
	return Bucket(userSeed) < g.RolloutPercent
}
