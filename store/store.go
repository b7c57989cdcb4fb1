package store

import "fmt"

// validateNames checks a loaded name list against the enum store format
// rules: no blank entries, no duplicates. A violation means the backing
// storage was corrupted or written by something else, and the caller is
// expected to reset it rather than fail.
func validateNames(names []string) error {
	seen := make(map[string]struct{}, len(names))
	for i, name := range names {
		if name == "" {
			return fmt.Errorf("blank name at position %d", i+1)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate name %q at position %d", name, i+1)
		}
		seen[name] = struct{}{}
	}
	return nil
}
