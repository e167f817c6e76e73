package fs

import (
	"fmt"
	"strings"
)

const Separator = "/"

// SplitPath normalizes a slash-separated path and returns its
// components relative to the root. Empty components and "." are
// dropped, ".." pops the previous component and is dropped at the
// root. The empty path and "/" both resolve to no components.
func SplitPath(path string) []string {
	parts := strings.Split(path, Separator)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, part)
		}
	}
	return out
}

// CleanPath returns the canonical absolute form of a path.
func CleanPath(path string) string {
	return Separator + strings.Join(SplitPath(path), Separator)
}

// SplitParent splits a path into its parent components and the final
// name. The root has no name.
func SplitParent(path string) (parent []string, name string, err error) {
	parts := SplitPath(path)
	if len(parts) == 0 {
		return nil, "", fmt.Errorf("%w: path %q has no name", ErrInvalid, path)
	}
	return parts[:len(parts)-1], parts[len(parts)-1], nil
}

// JoinPath joins components into an absolute path.
func JoinPath(parts ...string) string {
	return CleanPath(strings.Join(parts, Separator))
}
