package file

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dukex/flowledger/pkg/models"
	"github.com/dukex/flowledger/pkg/persistence"
)

// VersionRepository stores published snapshots next to the workflows.
type VersionRepository struct {
	p *Persistence
}

// Publish snapshots the live graph and bumps the workflow version in one commit.
func (vr *VersionRepository) Publish(_ context.Context, tenantID string, workflowID int64) (*models.Version, error) {
	var published *models.Version

	err := vr.p.commit(func(s *state) error {
		workflow := s.liveWorkflow(tenantID, workflowID)
		if workflow == nil {
			return persistence.NewWorkflowError("Publish", tenantID, workflowID, persistence.ErrWorkflowNotFound)
		}

		now := time.Now().UTC()
		version := &models.Version{
			ID:         s.NextVersionID,
			WorkflowID: workflowID,
			Number:     workflow.Version + 1,
			Status:     models.VersionStatusPublished,
			Graph:      workflow.Graph().Clone(),
			CreatedAt:  now,
		}

		s.NextVersionID++
		s.Versions = append(s.Versions, version)

		workflow.Status = models.WorkflowStatusPublished
		workflow.Version = version.Number
		workflow.UpdatedAt = now

		published = copyVersion(version)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return published, nil
}

// ListVersions returns version summaries, newest first.
func (vr *VersionRepository) ListVersions(_ context.Context, tenantID string, workflowID int64) ([]*models.VersionSummary, error) {
	versions := make([]*models.VersionSummary, 0)

	err := vr.p.read(func(s *state) error {
		if s.liveWorkflow(tenantID, workflowID) == nil {
			return nil
		}

		for _, version := range s.Versions {
			if version.WorkflowID == workflowID {
				versions = append(versions, version.Summary())
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Number > versions[j].Number
	})

	return versions, nil
}

// GetVersion returns one snapshot with its graph.
func (vr *VersionRepository) GetVersion(_ context.Context, tenantID string, workflowID int64, number int) (*models.Version, error) {
	var found *models.Version

	_ = vr.p.read(func(s *state) error {
		if s.liveWorkflow(tenantID, workflowID) == nil {
			return nil
		}

		for _, version := range s.Versions {
			if version.WorkflowID == workflowID && version.Number == number {
				found = copyVersion(version)

				break
			}
		}

		return nil
	})

	if found == nil {
		return nil, persistence.NewWorkflowError("GetVersion", tenantID, workflowID,
			fmt.Errorf("%w: %d", persistence.ErrVersionNotFound, number))
	}

	return found, nil
}

func copyVersion(version *models.Version) *models.Version {
	copied := *version
	copied.Graph = version.Graph.Clone()

	return &copied
}
