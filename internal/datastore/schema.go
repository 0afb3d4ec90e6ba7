package datastore

const schema = `
CREATE TABLE IF NOT EXISTS agents (
	name               TEXT PRIMARY KEY,
	class              TEXT NOT NULL,
	model              TEXT,
	transport          TEXT NOT NULL,
	status             TEXT,
	context_summary    TEXT,
	last_seen          INTEGER NOT NULL,
	context_updated_at INTEGER NOT NULL,
	hp_input_tokens    INTEGER NOT NULL DEFAULT 0,
	hp_output_tokens   INTEGER NOT NULL DEFAULT 0,
	hp_turn_input      INTEGER NOT NULL DEFAULT 0,
	hp_turn_output     INTEGER NOT NULL DEFAULT 0,
	hp_tokens_limit    INTEGER NOT NULL DEFAULT 0,
	hp_mode            TEXT NOT NULL DEFAULT 'none',
	hp_alerts_fired    TEXT NOT NULL DEFAULT '',
	current_zone       TEXT,
	current_role       TEXT,
	registered_at      INTEGER NOT NULL,
	retired            INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS messages (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	from_agent     TEXT NOT NULL,
	to_agent       TEXT NOT NULL,
	content_path   TEXT NOT NULL,
	timestamp      INTEGER NOT NULL,
	read_flag      INTEGER NOT NULL DEFAULT 0,
	is_cc          INTEGER NOT NULL DEFAULT 0,
	cc_original_to TEXT
);
CREATE INDEX IF NOT EXISTS idx_messages_to_unread ON messages(to_agent, read_flag, timestamp, id);

CREATE TABLE IF NOT EXISTS broadcast_reads (
	agent_name TEXT NOT NULL,
	message_id INTEGER NOT NULL,
	PRIMARY KEY (agent_name, message_id)
);

CREATE TABLE IF NOT EXISTS tasks (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	task_file       TEXT,
	project         TEXT NOT NULL,
	zone            TEXT,
	status          TEXT NOT NULL,
	blocked_by      TEXT NOT NULL DEFAULT '',
	assigned_to     TEXT,
	created_by      TEXT NOT NULL,
	files           TEXT NOT NULL DEFAULT '',
	progress        TEXT,
	class_required  TEXT,
	task_type       TEXT NOT NULL,
	activity_count  INTEGER NOT NULL DEFAULT 0,
	result_file     TEXT,
	requirement_path TEXT,
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS task_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id     TEXT NOT NULL,
	from_status TEXT NOT NULL,
	to_status   TEXT NOT NULL,
	agent       TEXT NOT NULL,
	timestamp   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_task_history_task ON task_history(task_id, id);

CREATE TABLE IF NOT EXISTS file_claims (
	file_path   TEXT PRIMARY KEY,
	holder      TEXT NOT NULL,
	acquired_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS file_waitlist (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	file_path    TEXT NOT NULL,
	agent        TEXT NOT NULL,
	requested_at INTEGER NOT NULL,
	UNIQUE (file_path, agent)
);

CREATE TABLE IF NOT EXISTS plans (
	id       TEXT PRIMARY KEY,
	agent    TEXT NOT NULL,
	project  TEXT NOT NULL,
	text     TEXT NOT NULL,
	status   TEXT NOT NULL DEFAULT 'active',
	set_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_plans_project_status ON plans(project, status);

CREATE TABLE IF NOT EXISTS log_entries (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	agent      TEXT NOT NULL,
	entry_file TEXT NOT NULL,
	priority   TEXT NOT NULL DEFAULT 'normal',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS flags (
	key     TEXT PRIMARY KEY,
	value   TEXT NOT NULL,
	set_by  TEXT NOT NULL,
	set_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS fenix_records (
	id          TEXT PRIMARY KEY,
	agent       TEXT NOT NULL,
	files       TEXT NOT NULL,
	manifest    TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	consumed_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_fenix_agent_unconsumed ON fenix_records(agent, consumed_at);
`

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}
