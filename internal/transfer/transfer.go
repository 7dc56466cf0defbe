// Package transfer implements the upload and fetch operations.
//
// Each operation is a fixed sequence of steps, some of which are skipped when
// their output already exists on disk. The existence of an archive is the only
// signal used: a present archive is assumed complete and is never verified.
//
// External steps that fail are reported and the operation moves on to the
// next step, unless Strict is set, in which case the first failure is
// returned.
package transfer

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

type options struct {
	Clock  clockwork.Clock
	Log    log.FieldLogger
	Strict bool
}

func (o options) clock() clockwork.Clock {
	if o.Clock == nil {
		return clockwork.NewRealClock()
	}
	return o.Clock
}

func (o options) logger() log.FieldLogger {
	if o.Log == nil {
		return log.StandardLogger()
	}
	return o.Log
}

// check decides what a failed step means for the rest of the operation.
func (o options) check(ctx context.Context, logger log.FieldLogger, step string, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if o.Strict {
		return fmt.Errorf("%s: %w", step, err)
	}
	logger.WithError(err).Warnf("Failed to %s, continuing", step)
	return nil
}
