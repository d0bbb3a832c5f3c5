// Package file provides a single-file JSON persistence implementation for
// local development and tests.
package file

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/flowledger/pkg/models"
	"github.com/dukex/flowledger/pkg/persistence"
	"github.com/dukex/flowledger/pkg/xjson"
)

const stateFileName = "flowledger.json"

// state is everything the store holds. It is replaced as a whole on every commit.
type state struct {
	NextWorkflowID  int64 `json:"next_workflow_id"`
	NextEdgeID      int64 `json:"next_edge_id"`
	NextVersionID   int64 `json:"next_version_id"`
	NextExecutionID int64 `json:"next_execution_id"`
	NextLogID       int64 `json:"next_log_id"`

	Workflows  []*models.Workflow  `json:"workflows"`
	Versions   []*models.Version   `json:"versions"`
	Executions []*models.Execution `json:"executions"`
	Logs       []*models.Log       `json:"logs"`
}

func newState() *state {
	return &state{
		NextWorkflowID:  1,
		NextEdgeID:      1,
		NextVersionID:   1,
		NextExecutionID: 1,
		NextLogID:       1,
		Workflows:       make([]*models.Workflow, 0),
		Versions:        make([]*models.Version, 0),
		Executions:      make([]*models.Execution, 0),
		Logs:            make([]*models.Log, 0),
	}
}

// Persistence implements persistence.Persistence on top of one JSON file.
// Writes copy the state, apply the change, flush it with write-then-rename
// and only then swap it in, so a failed write leaves memory and disk as before.
type Persistence struct {
	root   string
	logger *slog.Logger

	mu    sync.RWMutex
	state *state

	workflowRepo  *WorkflowRepository
	graphRepo     *GraphRepository
	versionRepo   *VersionRepository
	executionRepo *ExecutionRepository
}

// NewPersistence opens (or creates) the store rooted at root. A file:// prefix is accepted.
func NewPersistence(logger *slog.Logger, root string) (*Persistence, error) {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	err := os.MkdirAll(cleanRoot, 0750)
	if err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	p := &Persistence{
		root:   cleanRoot,
		logger: logger,
	}

	p.state, err = p.load()
	if err != nil {
		return nil, err
	}

	p.workflowRepo = &WorkflowRepository{p: p}
	p.graphRepo = &GraphRepository{p: p}
	p.versionRepo = &VersionRepository{p: p}
	p.executionRepo = &ExecutionRepository{p: p}

	return p, nil
}

// Close performs any necessary cleanup. Every commit is already on disk.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the data directory still exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) GraphRepository() persistence.GraphRepository {
	return p.graphRepo
}

func (p *Persistence) VersionRepository() persistence.VersionRepository {
	return p.versionRepo
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

func (p *Persistence) path() string {
	return filepath.Join(p.root, stateFileName)
}

func (p *Persistence) load() (*state, error) {
	body, err := os.ReadFile(p.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return newState(), nil
		}

		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	loaded := newState()

	err = xjson.Unmarshal(body, loaded)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal state file: %w", err)
	}

	return loaded, nil
}

// read runs fn against the current state under a shared lock. fn must not
// retain or mutate what it reads; it copies what it returns.
func (p *Persistence) read(fn func(s *state) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return fn(p.state)
}

// commit applies fn to a private copy of the state and persists it. The copy
// becomes current only after the file has been replaced on disk.
func (p *Persistence) commit(fn func(s *state) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	current, err := xjson.Marshal(p.state)
	if err != nil {
		return fmt.Errorf("failed to snapshot state: %w", err)
	}

	draft := newState()

	err = xjson.Unmarshal(current, draft)
	if err != nil {
		return fmt.Errorf("failed to copy state: %w", err)
	}

	err = fn(draft)
	if err != nil {
		return err
	}

	err = p.write(draft)
	if err != nil {
		return err
	}

	p.state = draft

	return nil
}

func (p *Persistence) write(s *state) error {
	data, err := xjson.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(p.root, ".flowledger-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}

	tmpName := tmp.Name()

	defer func() {
		// No-op once the rename succeeded
		_ = os.Remove(tmpName)
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("failed to write state: %w", err)
	}

	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("failed to sync state: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err = os.Rename(tmpName, p.path()); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	p.logger.Debug("state committed", "path", p.path(), "bytes", len(data))

	return nil
}

// liveWorkflow finds a non-deleted workflow of the tenant.
func (s *state) liveWorkflow(tenantID string, id int64) *models.Workflow {
	for _, workflow := range s.Workflows {
		if workflow.ID == id && workflow.TenantID == tenantID && workflow.DeletedAt == nil {
			return workflow
		}
	}

	return nil
}

func (s *state) execution(tenantID string, id int64) *models.Execution {
	for _, execution := range s.Executions {
		if execution.ID == id && execution.TenantID == tenantID {
			return execution
		}
	}

	return nil
}

func copyWorkflow(workflow *models.Workflow, withGraph bool) *models.Workflow {
	copied := *workflow
	copied.Nodes = []*models.Node{}
	copied.Edges = []*models.Edge{}

	if withGraph {
		graph := workflow.Graph().Clone()
		copied.Nodes = graph.Nodes
		copied.Edges = graph.Edges
	}

	if workflow.DeletedAt != nil {
		deletedAt := *workflow.DeletedAt
		copied.DeletedAt = &deletedAt
	}

	return &copied
}

func copyExecution(execution *models.Execution) *models.Execution {
	copied := *execution
	copied.Context = models.CloneSettings(execution.Context)

	if execution.EndedAt != nil {
		endedAt := *execution.EndedAt
		copied.EndedAt = &endedAt
	}

	if execution.HeartbeatAt != nil {
		heartbeatAt := *execution.HeartbeatAt
		copied.HeartbeatAt = &heartbeatAt
	}

	return &copied
}
