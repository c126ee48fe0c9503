// Package memory provides a concurrency-safe in-memory persistence
// implementation, used by tests and single-process deployments.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/storekit/automation/pkg/models"
	"github.com/storekit/automation/pkg/persistence"
)

// Persistence keeps every registry in mutex-guarded maps. Values are copied
// on the way in and out so concurrent callers never share mutable state.
type Persistence struct {
	mu         sync.RWMutex
	rules      map[string]*models.WorkflowRule
	executions map[string][]models.ExecutionRecord
	operations map[string]*models.BulkOperation
	tasks      map[string]*models.ScheduledTask
}

func NewPersistence() *Persistence {
	return &Persistence{
		rules:      make(map[string]*models.WorkflowRule),
		executions: make(map[string][]models.ExecutionRecord),
		operations: make(map[string]*models.BulkOperation),
		tasks:      make(map[string]*models.ScheduledTask),
	}
}

func (p *Persistence) HealthCheck(_ context.Context) error { return nil }

func (p *Persistence) Close(_ context.Context) error { return nil }

// Rules returns all rules ordered by creation time.
func (p *Persistence) Rules(_ context.Context) ([]*models.WorkflowRule, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rules := make([]*models.WorkflowRule, 0, len(p.rules))
	for _, rule := range p.rules {
		rules = append(rules, copyRule(rule))
	}

	sort.Slice(rules, func(i, j int) bool {
		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})

	return rules, nil
}

func (p *Persistence) RuleByID(_ context.Context, id string) (*models.WorkflowRule, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rule, ok := p.rules[id]
	if !ok {
		return nil, persistence.ErrRuleNotFound
	}

	return copyRule(rule), nil
}

func (p *Persistence) SaveRule(_ context.Context, rule *models.WorkflowRule) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rules[rule.ID] = copyRule(rule)

	return nil
}

func (p *Persistence) DeleteRule(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.rules[id]; !ok {
		return persistence.ErrRuleNotFound
	}

	delete(p.rules, id)
	delete(p.executions, id)

	return nil
}

func (p *Persistence) AppendExecution(_ context.Context, ruleID string, record models.ExecutionRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.rules[ruleID]; !ok {
		return persistence.ErrRuleNotFound
	}

	// The record's context is the caller's live trigger map; detach it so
	// later caller mutations cannot rewrite stored history.
	record.Context = copyMap(record.Context)
	record.Results = slices.Clone(record.Results)

	history := append(p.executions[ruleID], record)
	if len(history) > models.MaxExecutionHistory {
		history = history[len(history)-models.MaxExecutionHistory:]
	}

	p.executions[ruleID] = history

	return nil
}

func (p *Persistence) Executions(_ context.Context, ruleID string) ([]models.ExecutionRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if _, ok := p.rules[ruleID]; !ok {
		return nil, persistence.ErrRuleNotFound
	}

	history := p.executions[ruleID]
	out := make([]models.ExecutionRecord, len(history))
	copy(out, history)

	return out, nil
}

func (p *Persistence) Operations(_ context.Context) ([]*models.BulkOperation, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ops := make([]*models.BulkOperation, 0, len(p.operations))
	for _, op := range p.operations {
		ops = append(ops, copyOperation(op))
	}

	sort.Slice(ops, func(i, j int) bool {
		return ops[i].CreatedAt.Before(ops[j].CreatedAt)
	})

	return ops, nil
}

func (p *Persistence) OperationByID(_ context.Context, id string) (*models.BulkOperation, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	op, ok := p.operations[id]
	if !ok {
		return nil, persistence.ErrOperationNotFound
	}

	return copyOperation(op), nil
}

func (p *Persistence) SaveOperation(_ context.Context, op *models.BulkOperation) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.operations[op.ID] = copyOperation(op)

	return nil
}

func (p *Persistence) Tasks(_ context.Context) ([]*models.ScheduledTask, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	tasks := make([]*models.ScheduledTask, 0, len(p.tasks))
	for _, task := range p.tasks {
		tasks = append(tasks, copyTask(task))
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})

	return tasks, nil
}

func (p *Persistence) TaskByID(_ context.Context, id string) (*models.ScheduledTask, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	task, ok := p.tasks[id]
	if !ok {
		return nil, persistence.ErrTaskNotFound
	}

	return copyTask(task), nil
}

func (p *Persistence) SaveTask(_ context.Context, task *models.ScheduledTask) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tasks[task.ID] = copyTask(task)

	return nil
}

func (p *Persistence) DeleteTask(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.tasks[id]; !ok {
		return persistence.ErrTaskNotFound
	}

	delete(p.tasks, id)

	return nil
}

func copyRule(rule *models.WorkflowRule) *models.WorkflowRule {
	out := *rule

	out.Conditions = make([]models.WorkflowCondition, len(rule.Conditions))
	copy(out.Conditions, rule.Conditions)

	out.Actions = make([]models.WorkflowActionConfig, len(rule.Actions))
	for i, action := range rule.Actions {
		out.Actions[i] = action
		out.Actions[i].Params = copyMap(action.Params)
	}

	return &out
}

func copyOperation(op *models.BulkOperation) *models.BulkOperation {
	return op.Clone()
}

func copyTask(task *models.ScheduledTask) *models.ScheduledTask {
	out := *task
	out.Params = copyMap(task.Params)

	return &out
}

func copyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}

	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}

	return out
}
