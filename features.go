// features.go - build-time feature and backend registration.

package main

import (
	"fmt"
	"runtime"
	"sort"
)

// compiledFeatures tracks build-time feature flags via init() registration.
var compiledFeatures []string

// synthBackendInfo describes one synthesis backend for device listings.
// Stub builds register their backend with Available false, so the
// constant stays selectable and selection fails cleanly.
type synthBackendInfo struct {
	ID        int
	Name      string
	Desc      string
	Available bool
}

var synthBackendTable []synthBackendInfo

func registerSynthBackend(id int, name, desc string, available bool) {
	synthBackendTable = append(synthBackendTable, synthBackendInfo{
		ID:        id,
		Name:      name,
		Desc:      desc,
		Available: available,
	})
	if available {
		compiledFeatures = append(compiledFeatures, desc)
	}
}

func registerFeature(desc string) {
	compiledFeatures = append(compiledFeatures, desc)
}

// registeredSynthBackends returns the registration table ordered by ID.
func registeredSynthBackends() []synthBackendInfo {
	out := make([]synthBackendInfo, len(synthBackendTable))
	copy(out, synthBackendTable)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func printFeatures() {
	fmt.Printf("VireoEngine %s\n", Version)
	fmt.Printf("  Go version: %s\n", runtime.Version())
	fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Println()
	fmt.Println("Compiled features:")

	sort.Strings(compiledFeatures)
	for _, f := range compiledFeatures {
		fmt.Printf("  %s\n", f)
	}
	if len(compiledFeatures) == 0 {
		fmt.Println("  (none)")
	}
}
