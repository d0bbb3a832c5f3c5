package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id BIGSERIAL PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status VARCHAR(20) NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'published')),
				version INTEGER NOT NULL DEFAULT 0 CHECK (version >= 0),
				created_by VARCHAR(255) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_tenant_id ON workflows(tenant_id);
			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);

			-- Live graph: node ids are unique across every workflow
			CREATE TABLE workflow_nodes (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id BIGINT NOT NULL REFERENCES workflows(id),
				node_type VARCHAR(50) NOT NULL CHECK (node_type IN ('trigger', 'action', 'condition', 'webhook', 'llm', 'end')),
				name VARCHAR(255) NOT NULL,
				settings JSONB NOT NULL DEFAULT '{}',
				position_x DOUBLE PRECISION NOT NULL DEFAULT 0,
				position_y DOUBLE PRECISION NOT NULL DEFAULT 0,
				ordinal INTEGER NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				UNIQUE (workflow_id, id)
			);

			CREATE TABLE workflow_edges (
				id BIGSERIAL PRIMARY KEY,
				workflow_id BIGINT NOT NULL REFERENCES workflows(id),
				source_node_id VARCHAR(255) NOT NULL,
				target_node_id VARCHAR(255) NOT NULL,
				label VARCHAR(255),
				settings JSONB NOT NULL DEFAULT '{}',
				ordinal INTEGER NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				FOREIGN KEY (workflow_id, source_node_id) REFERENCES workflow_nodes(workflow_id, id),
				FOREIGN KEY (workflow_id, target_node_id) REFERENCES workflow_nodes(workflow_id, id)
			);

			CREATE INDEX idx_workflow_edges_workflow_id ON workflow_edges(workflow_id);

			CREATE TABLE workflow_versions (
				id BIGSERIAL PRIMARY KEY,
				workflow_id BIGINT NOT NULL REFERENCES workflows(id),
				number INTEGER NOT NULL,
				status VARCHAR(20) NOT NULL DEFAULT 'published',
				graph JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				UNIQUE (workflow_id, number)
			);

			CREATE TABLE executions (
				id BIGSERIAL PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				workflow_id BIGINT NOT NULL REFERENCES workflows(id),
				version INTEGER NOT NULL,
				status VARCHAR(20) NOT NULL CHECK (status IN ('pending', 'running', 'succeeded', 'failed', 'cancelled')),
				status_reason TEXT NOT NULL DEFAULT '',
				context JSONB NOT NULL DEFAULT '{}',
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				ended_at TIMESTAMP WITH TIME ZONE,
				heartbeat_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_executions_tenant_workflow ON executions(tenant_id, workflow_id);
			CREATE INDEX idx_executions_status ON executions(status);

			CREATE TABLE execution_logs (
				id BIGSERIAL PRIMARY KEY,
				execution_id BIGINT NOT NULL REFERENCES executions(id),
				node_id VARCHAR(255),
				log_type VARCHAR(20) NOT NULL CHECK (log_type IN ('info', 'success', 'warning', 'error')),
				message TEXT NOT NULL,
				data JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_execution_logs_execution ON execution_logs(execution_id, created_at, id);

			-- Versions and logs are append-only
			CREATE FUNCTION forbid_mutation() RETURNS trigger AS $$
			BEGIN
				RAISE EXCEPTION '% rows are immutable', TG_TABLE_NAME;
			END;
			$$ LANGUAGE plpgsql;

			CREATE TRIGGER workflow_versions_immutable
				BEFORE UPDATE OR DELETE ON workflow_versions
				FOR EACH ROW EXECUTE FUNCTION forbid_mutation();

			CREATE TRIGGER execution_logs_immutable
				BEFORE UPDATE OR DELETE ON execution_logs
				FOR EACH ROW EXECUTE FUNCTION forbid_mutation();
		`,
	}
}
