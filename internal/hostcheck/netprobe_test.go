// internal/hostcheck/netprobe_test.go
package hostcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeOnline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	assert.True(t, probeOnline(context.Background(), srv.URL))
}

func TestProbeOnlineUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	assert.False(t, probeOnline(context.Background(), srv.URL))
}

func TestPublicIP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("203.0.113.7\n"))
	}))
	defer srv.Close()

	ip, err := publicIP(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", ip)
}

func TestPublicIPRejectsGarbage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>captive portal</html>"))
	}))
	defer srv.Close()

	_, err := publicIP(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestDetectOsKindFromOsRelease(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("os-release parsing is bypassed on macos")
	}

	tests := []struct {
		content string
		want    OsKind
	}{
		{"ID=ubuntu\nID_LIKE=debian\n", OsDebian},
		{"ID=centos\nID_LIKE=\"rhel fedora\"\n", OsFedora},
		{"ID=manjaro\n", OsArch},
		{"ID=opensuse-tumbleweed\nID_LIKE=\"opensuse suse\"\n", OsOpenSUSE},
		{"ID=gentoo\n", OsUnknown},
	}

	orig := osReleasePath
	defer func() { osReleasePath = orig }()

	for _, tt := range tests {
		f := filepath.Join(t.TempDir(), "os-release")
		require.NoError(t, os.WriteFile(f, []byte(tt.content), 0o644))
		osReleasePath = f
		assert.Equal(t, tt.want, detectOsKind(), "content: %q", tt.content)
	}
}
