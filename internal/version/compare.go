package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CheckVersionCompatibility checks if a configuration written for configVersion
// can be run by engineVersion. Returns nil if compatible, error with details if not.
//
// Compatibility Rules:
//   - An empty config version is always accepted
//   - If either version is "main" (development build), compatibility check is skipped
//   - Major and minor versions must match exactly
//   - Patch versions can differ (e.g., 0.3.0 is compatible with 0.3.4)
func CheckVersionCompatibility(engineVersion, configVersion string) error {
	if configVersion == "" {
		return nil
	}

	engineVersion = strings.TrimPrefix(engineVersion, "v")
	configVersion = strings.TrimPrefix(configVersion, "v")

	if engineVersion == "main" || configVersion == "main" {
		return nil
	}

	engineSemver, err := semver.NewVersion(engineVersion)
	if err != nil {
		return fmt.Errorf("invalid engine version '%s': %w", engineVersion, err)
	}

	configSemver, err := semver.NewVersion(configVersion)
	if err != nil {
		return fmt.Errorf("invalid config version '%s': %w", configVersion, err)
	}

	if engineSemver.Major() != configSemver.Major() || engineSemver.Minor() != configSemver.Minor() {
		return fmt.Errorf("version mismatch: engine is %d.%d.x but config was written for %d.%d.x",
			engineSemver.Major(), engineSemver.Minor(),
			configSemver.Major(), configSemver.Minor())
	}

	return nil
}
