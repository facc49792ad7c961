// orchestrator.go implements the provisioning workflow that turns an approved
// signup request into a live tenant: allocate identifiers, record a
// deployment, insert the tenant, build and seed its schema, store credentials,
// and mark the deployment ready. Failures are always written to the deployment
// record and audit log before they are surfaced.
package provisioner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/staybase/staybase-backend/internal/audit"
	"github.com/staybase/staybase-backend/internal/db/models"
	"github.com/staybase/staybase-backend/internal/db/repositories"
	"github.com/staybase/staybase-backend/internal/tenancy"
)

// Allocator reserves identifiers for a new tenant.
type Allocator interface {
	Allocate(ctx context.Context, companyName string) (*tenancy.Identifiers, error)
}

// Registry is the tenant store surface the orchestrator needs.
type Registry interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByOrganizationID(ctx context.Context, orgID string) (*models.Tenant, error)
}

// Requests links signup requests to their provisioning outcome.
type Requests interface {
	MarkApproved(ctx context.Context, id, orgID, reviewedBy string) error
}

// Deployments is the deployment tracker surface the orchestrator needs.
type Deployments interface {
	Create(ctx context.Context, orgID string) (*models.Deployment, error)
	GetByOrganization(ctx context.Context, orgID string) (*models.Deployment, error)
	Apply(ctx context.Context, orgID string, adv repositories.Advance) (*models.Deployment, error)
}

// Schema creates and seeds tenant schemas.
type Schema interface {
	CreateSchema(ctx context.Context, schemaName string) error
	Seed(ctx context.Context, schemaName, orgID string, spec SeedSpec) error
}

// Credentials stores tenant third-party keys.
type Credentials interface {
	Store(ctx context.Context, orgID, service, keyName, value string) error
}

// Auditor records control-plane actions.
type Auditor interface {
	Record(ctx context.Context, event audit.Event) error
}

// Actor identifies who triggered a provisioning call, for the audit trail.
type Actor struct {
	Email     string
	IPAddress string
	UserAgent string
}

// Orchestrator drives the provisioning state machine
type Orchestrator struct {
	allocator   Allocator
	registry    Registry
	requests    Requests
	deployments Deployments
	schema      Schema
	vault       Credentials
	auditor     Auditor
	baseDomain  string
	logger      *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an orchestrator
func New(
	allocator Allocator,
	registry Registry,
	requests Requests,
	deployments Deployments,
	schema Schema,
	vault Credentials,
	auditor Auditor,
	baseDomain string,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		allocator:   allocator,
		registry:    registry,
		requests:    requests,
		deployments: deployments,
		schema:      schema,
		vault:       vault,
		auditor:     auditor,
		baseDomain:  baseDomain,
		logger:      logger,
		locks:       make(map[string]*sync.Mutex),
	}
}

// lockFor returns the single-writer lock for one provisioning key. Locks are
// kept for the process lifetime; the tenant population is small enough that
// reaping idle entries is not worth the bookkeeping.
func (o *Orchestrator) lockFor(key string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[key]
	if !ok {
		l = &sync.Mutex{}
		o.locks[key] = l
	}
	return l
}

// Provision runs the full workflow for an approved signup request. When the
// request was already approved and has a non-terminal deployment, the workflow
// resumes from the recorded state instead of restarting; every provisioning
// step is idempotent, so resumed runs converge on the same final rows.
func (o *Orchestrator) Provision(ctx context.Context, req *models.SignupRequest, actor Actor, thirdPartyAPIKey string) (*models.Tenant, error) {
	lock := o.lockFor(req.ID)
	lock.Lock()
	defer lock.Unlock()

	if req.OrganizationID != nil {
		return o.resume(ctx, req, actor, thirdPartyAPIKey)
	}
	return o.provisionFresh(ctx, req, actor, thirdPartyAPIKey)
}

func (o *Orchestrator) provisionFresh(ctx context.Context, req *models.SignupRequest, actor Actor, thirdPartyAPIKey string) (*models.Tenant, error) {
	ids, err := o.allocator.Allocate(ctx, req.CompanyName)
	if err != nil {
		// Nothing was created, so there is no deployment to record against.
		o.audit(ctx, audit.Event{
			Action:      "provisioning.allocation_failed",
			PerformedBy: actor.Email,
			Details:     map[string]interface{}{"signup_request_id": req.ID, "error": err.Error()},
			IPAddress:   actor.IPAddress,
			UserAgent:   actor.UserAgent,
		})
		return nil, fmt.Errorf("identifier allocation: %w", err)
	}

	if _, err := o.deployments.Create(ctx, ids.OrganizationID); err != nil {
		o.audit(ctx, audit.Event{
			Action:         "provisioning.failed",
			OrganizationID: ids.OrganizationID,
			PerformedBy:    actor.Email,
			Details:        map[string]interface{}{"step": "create_deployment", "error": err.Error()},
			IPAddress:      actor.IPAddress,
			UserAgent:      actor.UserAgent,
		})
		return nil, fmt.Errorf("create deployment: %w", err)
	}

	// The deployment row is born with a "provisioning started" log line, so
	// only the allocation outcome needs appending here.
	o.appendLog(ctx, ids.OrganizationID,
		fmt.Sprintf("allocated organization %s, subdomain %s for %s", ids.OrganizationID, ids.Subdomain, req.CompanyName),
	)

	plan, maxProps, maxUsers := models.PlanForPropertyCount(req.PropertyCount)
	tenant := &models.Tenant{
		OrganizationID: ids.OrganizationID,
		CompanyName:    req.CompanyName,
		Subdomain:      ids.Subdomain,
		SchemaName:     ids.SchemaName,
		PlanType:       plan,
		Status:         models.TenantStatusActive,
		MaxProperties:  maxProps,
		MaxUsers:       maxUsers,
		Features:       req.RequestedFeatures,
		ContactEmail:   req.Email,
	}

	if err := o.registry.Create(ctx, tenant); err != nil {
		// Uniqueness race despite allocator checks. No schema exists yet, so
		// a retry with fresh allocation is safe.
		o.failDeployment(ctx, ids.OrganizationID, actor,
			repositories.Advance{
				DeploymentStatus: models.DeploymentStatusFailed,
				DatabaseStatus:   models.DatabaseStatusFailed,
				ErrorLines:       []string{fmt.Sprintf("tenant insert failed: %v", err)},
			})
		return nil, fmt.Errorf("tenant insert: %w", err)
	}

	if err := o.requests.MarkApproved(ctx, req.ID, ids.OrganizationID, actor.Email); err != nil {
		o.failDeployment(ctx, ids.OrganizationID, actor,
			repositories.Advance{
				DeploymentStatus: models.DeploymentStatusFailed,
				ErrorLines:       []string{fmt.Sprintf("signup approval update failed: %v", err)},
			})
		return nil, fmt.Errorf("mark approved: %w", err)
	}
	req.OrganizationID = &ids.OrganizationID

	if err := o.buildEnvironment(ctx, tenant, req, actor, thirdPartyAPIKey); err != nil {
		return nil, err
	}
	return tenant, nil
}

// resume picks up an interrupted workflow for an already-approved request.
func (o *Orchestrator) resume(ctx context.Context, req *models.SignupRequest, actor Actor, thirdPartyAPIKey string) (*models.Tenant, error) {
	orgID := *req.OrganizationID

	tenant, err := o.registry.GetByOrganizationID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}
	if tenant == nil {
		return nil, fmt.Errorf("approved request %s references missing tenant %s", req.ID, orgID)
	}

	dep, err := o.deployments.GetByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load deployment: %w", err)
	}
	if dep == nil {
		if _, err := o.deployments.Create(ctx, orgID); err != nil {
			return nil, fmt.Errorf("create deployment: %w", err)
		}
	} else if dep.DeploymentStatus == models.DeploymentStatusReady {
		// Already provisioned; re-approval is a no-op.
		return tenant, nil
	}

	o.appendLog(ctx, orgID, "provisioning resumed from recorded deployment state")

	if err := o.buildEnvironment(ctx, tenant, req, actor, thirdPartyAPIKey); err != nil {
		return nil, err
	}
	return tenant, nil
}

// buildEnvironment runs the schema, seed, credential, and completion steps.
// Entered with the tenant row already present. Steps whose success is already
// recorded on the deployment are skipped, so a resumed run picks up where the
// previous one stopped; the steps themselves are also idempotent.
func (o *Orchestrator) buildEnvironment(ctx context.Context, tenant *models.Tenant, req *models.SignupRequest, actor Actor, thirdPartyAPIKey string) error {
	orgID := tenant.OrganizationID

	dep, err := o.deployments.GetByOrganization(ctx, orgID)
	if err != nil {
		return fmt.Errorf("load deployment: %w", err)
	}
	if dep == nil {
		return fmt.Errorf("no deployment recorded for %s", orgID)
	}

	if dep.DatabaseStatus != models.DatabaseStatusReady {
		if _, err := o.deployments.Apply(ctx, orgID, repositories.Advance{
			DatabaseStatus: models.DatabaseStatusMigrating,
			LogLines:       []string{fmt.Sprintf("creating schema %s", tenant.SchemaName)},
		}); err != nil {
			return fmt.Errorf("advance deployment: %w", err)
		}

		if err := o.schema.CreateSchema(ctx, tenant.SchemaName); err != nil {
			// The tenant row stays in place; schema failures are retried
			// idempotently via re-approval rather than unwound.
			o.failDeployment(ctx, orgID, actor, repositories.Advance{
				DeploymentStatus: models.DeploymentStatusFailed,
				DatabaseStatus:   models.DatabaseStatusFailed,
				ErrorLines:       []string{err.Error()},
			})
			return fmt.Errorf("schema creation: %w", err)
		}

		if _, err := o.deployments.Apply(ctx, orgID, repositories.Advance{
			DatabaseStatus: models.DatabaseStatusReady,
			LogLines:       []string{"schema ready"},
		}); err != nil {
			return fmt.Errorf("advance deployment: %w", err)
		}
	}

	if dep.SeedDataStatus != models.SeedStatusCompleted {
		if _, err := o.deployments.Apply(ctx, orgID, repositories.Advance{
			SeedDataStatus: models.SeedStatusSeeding,
			LogLines:       []string{"seeding baseline data"},
		}); err != nil {
			return fmt.Errorf("advance deployment: %w", err)
		}

		seedSpec := SeedSpec{
			AdminName:     req.ContactName,
			AdminEmail:    req.Email,
			PropertyCount: req.PropertyCount,
		}
		if err := o.schema.Seed(ctx, tenant.SchemaName, orgID, seedSpec); err != nil {
			o.failDeployment(ctx, orgID, actor, repositories.Advance{
				DeploymentStatus: models.DeploymentStatusFailed,
				SeedDataStatus:   models.SeedStatusFailed,
				ErrorLines:       []string{err.Error()},
			})
			return fmt.Errorf("seeding: %w", err)
		}

		if _, err := o.deployments.Apply(ctx, orgID, repositories.Advance{
			SeedDataStatus: models.SeedStatusCompleted,
			LogLines:       []string{"baseline data seeded"},
		}); err != nil {
			return fmt.Errorf("advance deployment: %w", err)
		}
	}

	// A missing credential leaves the tenant functional, so vault failures
	// are recorded and surfaced in logs but never fail the deployment.
	if thirdPartyAPIKey != "" {
		if err := o.vault.Store(ctx, orgID, "channel_manager", "api_key", thirdPartyAPIKey); err != nil {
			o.logger.Error("credential store failed during provisioning",
				"organization_id", orgID, "error", err)
			o.appendLog(ctx, orgID, fmt.Sprintf("credential store failed: %v", err))
		} else {
			o.appendLog(ctx, orgID, "third-party credential stored")
		}
	}

	environmentURL := fmt.Sprintf("https://%s.%s", tenant.Subdomain, o.baseDomain)
	if _, err := o.deployments.Apply(ctx, orgID, repositories.Advance{
		DeploymentStatus:  models.DeploymentStatusReady,
		LogLines:          []string{fmt.Sprintf("environment ready at %s", environmentURL)},
		SetEnvironmentURL: environmentURL,
		SetCompleted:      true,
	}); err != nil {
		return fmt.Errorf("complete deployment: %w", err)
	}

	o.audit(ctx, audit.Event{
		Action:         "tenant.provisioned",
		OrganizationID: orgID,
		PerformedBy:    actor.Email,
		Details: map[string]interface{}{
			"company_name": tenant.CompanyName,
			"subdomain":    tenant.Subdomain,
			"schema_name":  tenant.SchemaName,
			"plan_type":    tenant.PlanType,
			"features":     []string(tenant.Features),
		},
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
	})

	o.logger.Info("tenant provisioned",
		"organization_id", orgID,
		"subdomain", tenant.Subdomain,
		"plan", tenant.PlanType,
	)
	return nil
}

// failDeployment records a failure on the deployment and the audit log. The
// durable record must exist before the error is surfaced, so both writes are
// synchronous and their own failures only get logged.
func (o *Orchestrator) failDeployment(ctx context.Context, orgID string, actor Actor, adv repositories.Advance) {
	if _, err := o.deployments.Apply(ctx, orgID, adv); err != nil {
		o.logger.Error("failed to record deployment failure", "organization_id", orgID, "error", err)
	}
	o.audit(ctx, audit.Event{
		Action:         "provisioning.failed",
		OrganizationID: orgID,
		PerformedBy:    actor.Email,
		Details:        map[string]interface{}{"errors": adv.ErrorLines},
		IPAddress:      actor.IPAddress,
		UserAgent:      actor.UserAgent,
	})
}

func (o *Orchestrator) appendLog(ctx context.Context, orgID string, lines ...string) {
	if _, err := o.deployments.Apply(ctx, orgID, repositories.Advance{LogLines: lines}); err != nil {
		o.logger.Warn("failed to append deployment log", "organization_id", orgID, "error", err)
	}
}

func (o *Orchestrator) audit(ctx context.Context, event audit.Event) {
	if err := o.auditor.Record(ctx, event); err != nil {
		o.logger.Error("audit record failed", "action", event.Action, "error", err)
	}
}
