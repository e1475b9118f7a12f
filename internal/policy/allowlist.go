package policy

import "github.com/bmatcuk/doublestar/v4"

// matchGlob reports whether summary matches a doublestar (**-aware) glob
// pattern, so patterns like "agent_dispatch:scheduler/**" or
// "apply_tests:*" can gate requests the way a filesystem glob gates
// paths.
func matchGlob(pattern, summary string) (bool, error) {
	if pattern == "" {
		return false, nil
	}
	if pattern == "*" || pattern == "**" {
		return true, nil
	}
	return doublestar.Match(pattern, summary)
}
