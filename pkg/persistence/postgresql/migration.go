package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflow_rules (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				enabled BOOLEAN NOT NULL DEFAULT true,
				trigger VARCHAR(100) NOT NULL,
				conditions JSONB NOT NULL DEFAULT '[]',
				actions JSONB NOT NULL DEFAULT '[]',
				priority INT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_rules_trigger ON workflow_rules(trigger);
			CREATE INDEX idx_workflow_rules_enabled ON workflow_rules(enabled);
			CREATE INDEX idx_workflow_rules_created_at ON workflow_rules(created_at);

			CREATE TABLE rule_executions (
				id BIGSERIAL PRIMARY KEY,
				rule_id UUID NOT NULL REFERENCES workflow_rules(id) ON DELETE CASCADE,
				executed_at TIMESTAMP WITH TIME ZONE NOT NULL,
				context JSONB NOT NULL DEFAULT '{}',
				results JSONB NOT NULL DEFAULT '[]',
				success BOOLEAN NOT NULL,
				error TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX idx_rule_executions_rule_id ON rule_executions(rule_id);
			CREATE INDEX idx_rule_executions_executed_at ON rule_executions(executed_at);
		`,
		2: `
			CREATE TABLE bulk_operations (
				id UUID PRIMARY KEY,
				kind VARCHAR(20) NOT NULL CHECK (kind IN ('update', 'delete', 'export', 'import')),
				entity_kind VARCHAR(100) NOT NULL,
				filter JSONB NOT NULL DEFAULT '{}',
				update_payload JSONB NOT NULL DEFAULT '{}',
				status VARCHAR(20) NOT NULL CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
				progress INT NOT NULL DEFAULT 0,
				total_items INT NOT NULL DEFAULT 0,
				processed_items INT NOT NULL DEFAULT 0,
				failed_items INT NOT NULL DEFAULT 0,
				errors JSONB NOT NULL DEFAULT '[]',
				created_by VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_bulk_operations_status ON bulk_operations(status);
			CREATE INDEX idx_bulk_operations_created_at ON bulk_operations(created_at);
		`,
		3: `
			CREATE TABLE scheduled_tasks (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				schedule VARCHAR(100) NOT NULL,
				action VARCHAR(100) NOT NULL,
				params JSONB NOT NULL DEFAULT '{}',
				enabled BOOLEAN NOT NULL DEFAULT true,
				last_run TIMESTAMP WITH TIME ZONE,
				next_run TIMESTAMP WITH TIME ZONE,
				run_count INT NOT NULL DEFAULT 0,
				failure_count INT NOT NULL DEFAULT 0,
				last_error TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_scheduled_tasks_enabled ON scheduled_tasks(enabled);
			CREATE INDEX idx_scheduled_tasks_next_run ON scheduled_tasks(next_run);
		`,
	}
}
