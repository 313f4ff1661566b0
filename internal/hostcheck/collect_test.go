// internal/hostcheck/collect_test.go
package hostcheck

import (
	"os"
	"os/user"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasSubuidMapping(t *testing.T) {
	u, err := user.Current()
	require.NoError(t, err)

	orig := subuidPath
	defer func() { subuidPath = orig }()

	f := filepath.Join(t.TempDir(), "subuid")
	subuidPath = f

	require.NoError(t, os.WriteFile(f, []byte("somebody-else:100000:65536\n"), 0o644))
	assert.False(t, HasSubuidMapping())

	require.NoError(t, os.WriteFile(f,
		[]byte("somebody-else:100000:65536\n"+u.Username+":165536:65536\n"), 0o644))
	assert.True(t, HasSubuidMapping())

	// A numeric uid entry counts the same as a username entry.
	require.NoError(t, os.WriteFile(f, []byte(u.Uid+":100000:65536\n"), 0o644))
	assert.True(t, HasSubuidMapping())

	subuidPath = filepath.Join(t.TempDir(), "missing")
	assert.False(t, HasSubuidMapping())
}
