package coordinator

// KnownSubdirs is the closed set of recognized architecture subdirectory
// names. Discovery always unions in the canonical "noarch" subdir
// regardless of whether it appears here.
var KnownSubdirs = map[string]bool{
	"noarch":        true,
	"linux-64":      true,
	"linux-32":      true,
	"linux-aarch64": true,
	"linux-armv6l":  true,
	"linux-armv7l":  true,
	"linux-ppc64":   true,
	"linux-ppc64le": true,
	"linux-s390x":   true,
	"osx-64":        true,
	"osx-arm64":     true,
	"win-32":        true,
	"win-64":        true,
	"win-arm64":     true,
	"zos-z":         true,
}

// DiscoverSubdirs returns requested unchanged if non-empty (still unioning
// in "noarch"); otherwise it filters entries to KnownSubdirs and always
// includes "noarch".
func DiscoverSubdirs(requested []string, entries []string) []string {
	if len(requested) > 0 {
		return unionNoarch(requested)
	}
	found := make([]string, 0, len(entries))
	for _, e := range entries {
		if KnownSubdirs[e] {
			found = append(found, e)
		}
	}
	return unionNoarch(found)
}

func unionNoarch(subdirs []string) []string {
	for _, s := range subdirs {
		if s == "noarch" {
			return subdirs
		}
	}
	return append(subdirs, "noarch")
}
