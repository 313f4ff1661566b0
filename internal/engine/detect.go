// internal/engine/detect.go
package engine

import (
	"context"

	"github.com/sirupsen/logrus"

	"deckhand/internal/hostcheck"
)

// Detect selects the engine to use: docker over its socket when the user
// can reach it, docker behind sudo when not, then podman (rootless when a
// subordinate-ID mapping exists for the user). The privilege decision is
// computed once here; the returned engine carries it for its lifetime.
func Detect(ctx context.Context, stopTimeout int, logger *logrus.Logger) (Engine, error) {
	if hostcheck.BinaryPresent("docker") {
		eng, err := NewDockerEngine(ctx, stopTimeout, logger)
		if err == nil {
			return eng, nil
		}
		logger.Debugf("docker socket unreachable: %v", err)

		if hostcheck.BinaryPresent("sudo") {
			logger.Debug("falling back to docker CLI behind sudo")
			return NewCLIEngine("docker", true, stopTimeout, logger), nil
		}
	}

	if hostcheck.BinaryPresent("podman") {
		rootless := hostcheck.HasSubuidMapping()
		if !rootless {
			logger.Debug("no subordinate-ID mapping, podman will run behind sudo")
		}
		return NewCLIEngine("podman", !rootless, stopTimeout, logger), nil
	}

	return nil, ErrNoRuntime
}
