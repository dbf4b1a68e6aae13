package schedule

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Sweeper is the part of otp.Gatekeeper the sweep job drives.
type Sweeper interface {
	SweepExpired() int
	Size() (codes, tracked int)
}

type SweepJob struct {
	sweeper Sweeper
	logger  *logrus.Logger
}

func NewSweepJob(sweeper Sweeper, logger *logrus.Logger) *SweepJob {
	return &SweepJob{sweeper: sweeper, logger: logger}
}

func (j *SweepJob) Name() string {
	return "otp_sweep"
}

func (j *SweepJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	removed := j.sweeper.SweepExpired()
	codes, tracked := j.sweeper.Size()
	j.logger.WithFields(logrus.Fields{
		"removed": removed,
		"codes":   codes,
		"tracked": tracked,
	}).Info("Swept expired OTP records")
	return nil
}
