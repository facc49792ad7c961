// stale_deployment_reaper.go implements the StaleDeploymentReaper background
// job. A provisioning run that dies with the server (crash, OOM kill, node
// loss) leaves its deployment row stuck in the provisioning state forever,
// which blocks the re-approval path because the run looks like it is still in
// flight. The reaper periodically scans for deployments that have sat in
// provisioning longer than the configured timeout and marks them failed, so an
// operator can retry the approval and the orchestrator resumes from the failed
// state.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/staybase/staybase-backend/internal/audit"
	"github.com/staybase/staybase-backend/internal/db/models"
	"github.com/staybase/staybase-backend/internal/db/repositories"
)

// StaleDeploymentReaper periodically fails deployments abandoned mid-provision.
type StaleDeploymentReaper struct {
	deployments *repositories.DeploymentRepository
	recorder    *audit.Recorder
	timeout     time.Duration
	interval    time.Duration
	logger      *slog.Logger
	stopChan    chan struct{}
}

// NewStaleDeploymentReaper creates a reaper. timeout is how long a deployment
// may remain in provisioning before it is considered abandoned; interval is
// how often the scan runs. Zero or negative values fall back to 30m and 5m.
// recorder may be nil when auditing is disabled.
func NewStaleDeploymentReaper(
	deployments *repositories.DeploymentRepository,
	recorder *audit.Recorder,
	timeout, interval time.Duration,
	logger *slog.Logger,
) *StaleDeploymentReaper {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &StaleDeploymentReaper{
		deployments: deployments,
		recorder:    recorder,
		timeout:     timeout,
		interval:    interval,
		logger:      logger,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the background reaping loop. It runs an initial scan
// immediately, then repeats on the configured interval. The loop exits when
// ctx is cancelled or Stop() is called.
func (j *StaleDeploymentReaper) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("stale deployment reaper started",
		"timeout", j.timeout, "check_interval", j.interval)

	j.runScan(ctx)

	for {
		select {
		case <-ticker.C:
			j.runScan(ctx)
		case <-j.stopChan:
			j.logger.Info("stale deployment reaper stopped")
			return
		case <-ctx.Done():
			j.logger.Info("stale deployment reaper context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit.
func (j *StaleDeploymentReaper) Stop() {
	close(j.stopChan)
}

// runScan finds abandoned deployments and marks each one failed.
func (j *StaleDeploymentReaper) runScan(ctx context.Context) {
	cutoff := time.Now().Add(-j.timeout)

	stalled, err := j.deployments.FindStalled(ctx, cutoff)
	if err != nil {
		j.logger.Error("stale deployment scan failed", "error", err)
		return
	}
	if len(stalled) == 0 {
		return
	}

	j.logger.Warn("found stalled deployments", "count", len(stalled))

	for _, dep := range stalled {
		if err := j.reap(ctx, dep); err != nil {
			j.logger.Error("failed to reap stalled deployment",
				"organization_id", dep.OrganizationID, "error", err)
		}
	}
}

// reap marks one deployment failed and records the action in the audit trail.
func (j *StaleDeploymentReaper) reap(ctx context.Context, dep *models.Deployment) error {
	age := time.Since(dep.CreatedAt).Round(time.Second)
	_, err := j.deployments.Apply(ctx, dep.OrganizationID, repositories.Advance{
		DeploymentStatus: models.DeploymentStatusFailed,
		ErrorLines: []string{
			fmt.Sprintf("provisioning abandoned after %s, marked failed by reaper", age),
		},
	})
	if err != nil {
		return err
	}

	j.logger.Warn("reaped stalled deployment",
		"organization_id", dep.OrganizationID, "age", age)

	if j.recorder != nil {
		event := audit.Event{
			Action:         "deployment.reaped",
			OrganizationID: dep.OrganizationID,
			PerformedBy:    "system",
			Details: map[string]interface{}{
				"deployment_id": dep.ID,
				"age_seconds":   int(age.Seconds()),
			},
		}
		if err := j.recorder.Record(ctx, event); err != nil {
			j.logger.Warn("failed to audit reaped deployment",
				"organization_id", dep.OrganizationID, "error", err)
		}
	}

	return nil
}
