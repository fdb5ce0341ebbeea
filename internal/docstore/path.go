package docstore

import (
	"fmt"
	"strings"
)

// MaxPathBytes is the longest accepted document path.
const MaxPathBytes = 768

// ValidatePath reports whether path is an acceptable document path.
//
// Paths are flat keys made of non-empty segments separated by '/'. They are
// not hierarchical: a subscription on "tasks" does not observe "tasks/Alice".
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	if len(path) > MaxPathBytes {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidPath, MaxPathBytes)
	}
	for seg := range strings.SplitSeq(path, "/") {
		if seg == "" {
			return fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}
	}
	for _, r := range path {
		switch {
		case r < 0x20 || r == 0x7f:
			return fmt.Errorf("%w: control character in %q", ErrInvalidPath, path)
		case strings.ContainsRune(".#$[]", r):
			return fmt.Errorf("%w: %q not allowed in %q", ErrInvalidPath, r, path)
		}
	}
	return nil
}
