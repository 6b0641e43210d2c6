package repository

// Schema definitions for the Informes database.
// Compatible with both SQLite and PostgreSQL.

const schemaConsultas = `
CREATE TABLE IF NOT EXISTS consultas (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    tipo_documento TEXT NOT NULL,
    numero TEXT NOT NULL,
    nombre_completo TEXT,
    riesgo TEXT,
    scoring_api REAL,
    evaluation_id TEXT,
    usuario TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_consultas_tenant ON consultas(tenant_id);
CREATE INDEX IF NOT EXISTS idx_consultas_numero ON consultas(tenant_id, numero);
CREATE INDEX IF NOT EXISTS idx_consultas_created ON consultas(tenant_id, created_at);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    bands TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 1.0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_tenant ON rule_configs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_rule_configs_enabled ON rule_configs(tenant_id, enabled);
`

const schemaEvaluations = `
CREATE TABLE IF NOT EXISTS evaluations (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    tipo_documento TEXT NOT NULL,
    numero TEXT NOT NULL,
    nombre_completo TEXT,
    riesgo TEXT NOT NULL,
    scoring_api REAL,
    riesgo_interno TEXT,
    situacion5 TEXT,
    status TEXT NOT NULL,
    fecha_informe TEXT,
    timestamp TIMESTAMP NOT NULL,
    rule_results TEXT,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evaluations_tenant ON evaluations(tenant_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_numero ON evaluations(tenant_id, numero);
CREATE INDEX IF NOT EXISTS idx_evaluations_status ON evaluations(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_evaluations_timestamp ON evaluations(tenant_id, timestamp);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaConsultas,
		schemaRuleConfigs,
		schemaEvaluations,
	}
}
