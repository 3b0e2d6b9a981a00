package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	Version, Commit, BuildDate = "1.2.3", "abc123", "2024-01-01T00:00:00Z"
	t.Cleanup(func() { Version, Commit, BuildDate = "dev", "unknown", "unknown" })

	assert.Equal(t, "txfeatures 1.2.3\ncommit: abc123\nbuilt: 2024-01-01T00:00:00Z", String())
}
