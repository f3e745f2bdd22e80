package toolchain

import "strings"

// Environment entry that works around the OCaml 5.3 GC defect by pinning
// the minor heap size.
const (
	gcParamKey   = "OCAMLRUNPARAM"
	gcParamValue = "s=16M"
)

// GCWorkaroundKey returns the environment variable the workaround sets.
func GCWorkaroundKey() string { return gcParamKey }

// GCWorkaround returns the OCAMLRUNPARAM environment entry for the OCaml
// 5.3 GC defect and whether it applies to the given version and
// architecture. The version check is a raw "5.3." prefix match so that
// pre-release and variant suffixes still qualify. The entry is meant for
// subprocess environments only; callers must not mutate their own process
// environment with it.
func GCWorkaround(rawVersion, arch string) (string, bool) {
	if strings.HasPrefix(rawVersion, "5.3.") && AffectedArchitecture(arch) {
		return gcParamKey + "=" + gcParamValue, true
	}
	return "", false
}
