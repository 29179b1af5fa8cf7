package version

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// set via ldflags
var (
	Version   = "v0.0.0-dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

var FullVersion = fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate)

// HeaderName carries the client version on websocket upgrade requests.
const HeaderName = "X-Racecontrol-Version"

// IsCompatible reports whether clientVersion is at least minVersion.
// An empty minVersion accepts every client, an invalid clientVersion is
// rejected as soon as a minimum is configured.
func IsCompatible(clientVersion, minVersion string) bool {
	if minVersion == "" {
		return true
	}
	if !semver.IsValid(clientVersion) || !semver.IsValid(minVersion) {
		return false
	}
	return semver.Compare(clientVersion, minVersion) >= 0
}
