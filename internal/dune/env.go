package dune

import (
	"os"
)

// commandEnv builds a subprocess environment from the inherited environment
// plus extra KEY=VALUE pairs. Extras are appended last so they win over
// inherited values for duplicate keys. The harness's own environment is
// never mutated.
func commandEnv(extra []string) []string {
	env := os.Environ()
	if len(extra) == 0 {
		return env
	}
	merged := make([]string, 0, len(env)+len(extra))
	merged = append(merged, env...)
	merged = append(merged, extra...)
	return merged
}
