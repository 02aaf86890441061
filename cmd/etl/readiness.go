package main

import (
	"context"
	"errors"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// allReady reports ready only when every checker does. It checks in order
// and returns the first failure.
type allReady []sharedobs.ReadinessChecker

func (r allReady) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

// pipelineExit maps a pipeline error to the service's exit error. A run cut
// short by SIGINT or SIGTERM is a clean shutdown, not a failure.
func pipelineExit(signalCtx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if signalCtx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
