package coordinator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wuxler/chanidx/pkg/coordinator"
)

func TestDiscoverSubdirsRequestedUnionsNoarch(t *testing.T) {
	out := coordinator.DiscoverSubdirs([]string{"linux-64"}, nil)
	assert.ElementsMatch(t, []string{"linux-64", "noarch"}, out)
}

func TestDiscoverSubdirsRequestedAlreadyHasNoarch(t *testing.T) {
	out := coordinator.DiscoverSubdirs([]string{"linux-64", "noarch"}, nil)
	assert.ElementsMatch(t, []string{"linux-64", "noarch"}, out)
}

func TestDiscoverSubdirsFromEntriesFiltersUnknown(t *testing.T) {
	out := coordinator.DiscoverSubdirs(nil, []string{"linux-64", "osx-64", "not-a-subdir", ".lock"})
	assert.ElementsMatch(t, []string{"linux-64", "osx-64", "noarch"}, out)
}

func TestDiscoverSubdirsEmptyEntriesYieldsOnlyNoarch(t *testing.T) {
	out := coordinator.DiscoverSubdirs(nil, nil)
	assert.ElementsMatch(t, []string{"noarch"}, out)
}
