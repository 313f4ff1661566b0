// internal/hostcheck/netprobe.go
package hostcheck

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	connectivityProbeURL = "https://connectivitycheck.gstatic.com/generate_204"
	ipEchoURL            = "https://api.ipify.org"

	// Short connect timeout so an offline host fails fast instead of
	// hanging the whole run.
	probeTimeout = 5 * time.Second
)

var probeClient = &http.Client{Timeout: probeTimeout}

// probeOnline reports whether the well-known endpoint answered at all.
// Any HTTP response counts: captive portals and proxies still prove a
// route to the internet exists.
func probeOnline(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := probeClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// publicIP asks the IP-echo service for the address this host egresses
// from, used for NAT classification.
func publicIP(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := probeClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ip echo returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", err
	}

	ip := strings.TrimSpace(string(body))
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("ip echo returned %q, not an address", ip)
	}
	return ip, nil
}

// localIP resolves the address the default route egresses from. The UDP
// dial never sends a packet; it only selects a source address.
func localIP() string {
	conn, err := net.Dial("udp4", "8.8.8.8:53")
	if err != nil {
		return ""
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return ""
	}
	return addr.IP.String()
}
