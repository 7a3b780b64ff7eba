package hostbridge

import (
	"golang.org/x/mod/semver"
)

// Feature is a host capability that only exists from some platform version on.
type Feature string

const (
	FeatureBackButton Feature = "back_button"
	FeatureHaptics    Feature = "haptic_feedback"
	FeaturePopup      Feature = "popup"
)

// minVersions lists the first host version that ships each feature.
var minVersions = map[Feature]string{
	FeatureBackButton: "6.1",
	FeatureHaptics:    "6.1",
	FeaturePopup:      "6.2",
}

// Supports reports whether a host at version provides feature.
// An empty or unparseable version is treated as fully capable: hosts that do
// not report a version are assumed to be current.
func Supports(version string, feature Feature) bool {
	minVersion, ok := minVersions[feature]
	if !ok {
		return true
	}

	hv := normalizeVersion(version)
	if version == "" || !semver.IsValid(hv) {
		return true
	}

	return semver.Compare(hv, normalizeVersion(minVersion)) >= 0
}

// normalizeVersion adds "v" prefix if needed for semver parsing.
// "6.1" is valid shorthand for v6.1.0.
func normalizeVersion(v string) string {
	if v == "" {
		return "v0.0.0"
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}
