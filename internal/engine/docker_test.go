// internal/engine/docker_test.go
package engine

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type closedConn struct{}

func (closedConn) Write(p []byte) (int, error) {
	return 0, errors.New("use of closed network connection")
}

type endlessInput struct{}

func (endlessInput) Read(p []byte) (int, error) {
	p[0] = 'x'
	return 1, nil
}

func TestStreamStdinForwardsAndHalfCloses(t *testing.T) {
	var conn bytes.Buffer
	halfClosed := false

	streamStdin(&conn, func() error { halfClosed = true; return nil },
		strings.NewReader("setup answers\n"), make(chan struct{}))

	assert.Equal(t, "setup answers\n", conn.String())
	assert.True(t, halfClosed)
}

func TestStreamStdinDropsInputAfterSessionEnds(t *testing.T) {
	done := make(chan struct{})
	close(done)

	var conn bytes.Buffer
	streamStdin(&conn, func() error { return nil },
		strings.NewReader("late keystrokes"), done)

	assert.Zero(t, conn.Len())
}

func TestStreamStdinStopsOnWriteError(t *testing.T) {
	// Returning at all is the point: a torn-down connection must end the
	// forwarder even while input keeps arriving.
	streamStdin(closedConn{}, func() error { return nil },
		endlessInput{}, make(chan struct{}))
}
