package scheduler

import (
	"context"

	"github.com/mdouchement/logger"
	"github.com/mdouchement/playerdata/internal/storage"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// A Controller is an Iversion Of Control pattern used to init the scheduler package.
type Controller struct {
	Logger        logger.Logger
	Backends      []storage.Backend
	Specification string
}

// Start lauches the scheduler asynchronously.
// The returned scheduler must be stopped by the caller.
func Start(c Controller) (*cron.Cron, error) {
	cron := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))

	log := c.Logger.WithPrefix("[scheduler]")

	_, err := cron.AddFunc(c.Specification, func() {
		Sweep(context.Background(), c.Logger, c.Backends...)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "invalid specification %q", c.Specification)
	}
	log.Info("Orphan chunks task registred")

	cron.Start()
	log.Info("Scheduler is running")
	return cron, nil
}

// Sweep removes the orphaned chunks of all the given backends.
// A failing backend does not prevent the others from being swept.
func Sweep(ctx context.Context, l logger.Logger, backends ...storage.Backend) error {
	log := l.WithPrefix("[cleanup]")

	var failure error
	for _, backend := range backends {
		name := backend.Collection().Name

		log.Debugf("Sweeping %s (%s)", name, backend.Name())
		if err := backend.Cleanup(ctx); err != nil {
			log.Errorf("Could not sweep %s: %+v", name, err)
			failure = errors.Wrapf(err, "could not sweep %s", name)
			continue
		}
		log.Infof("Storage cleanup of %s", name)
	}
	return failure
}
