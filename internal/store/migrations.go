package store

// migration is a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create event traces",
		SQL: `
			CREATE TABLE event_traces (
				event_id       TEXT PRIMARY KEY,
				invocation_id  TEXT NOT NULL DEFAULT '',
				session_id     TEXT NOT NULL,
				app_name       TEXT NOT NULL,
				user_id        TEXT NOT NULL,
				author         TEXT NOT NULL DEFAULT '',
				branch         TEXT NOT NULL DEFAULT '',
				text           TEXT NOT NULL DEFAULT '',
				partial        INTEGER NOT NULL DEFAULT 0,
				error_code     TEXT NOT NULL DEFAULT '',
				error_message  TEXT NOT NULL DEFAULT '',
				prompt_tokens  INTEGER NOT NULL DEFAULT 0,
				output_tokens  INTEGER NOT NULL DEFAULT 0,
				raw            TEXT,
				created_at     TEXT NOT NULL
			);

			CREATE INDEX idx_traces_session ON event_traces (session_id, created_at);
			CREATE INDEX idx_traces_invocation ON event_traces (invocation_id);
		`,
	},
	{
		Version: 2,
		Name:    "full-text index over trace text",
		SQL: `
			CREATE VIRTUAL TABLE event_traces_fts USING fts5(
				text,
				author,
				content='event_traces',
				content_rowid='rowid'
			);

			CREATE TRIGGER event_traces_ai AFTER INSERT ON event_traces BEGIN
				INSERT INTO event_traces_fts(rowid, text, author)
				VALUES (new.rowid, new.text, new.author);
			END;

			CREATE TRIGGER event_traces_ad AFTER DELETE ON event_traces BEGIN
				INSERT INTO event_traces_fts(event_traces_fts, rowid, text, author)
				VALUES ('delete', old.rowid, old.text, old.author);
			END;

			CREATE TRIGGER event_traces_au AFTER UPDATE ON event_traces BEGIN
				INSERT INTO event_traces_fts(event_traces_fts, rowid, text, author)
				VALUES ('delete', old.rowid, old.text, old.author);
				INSERT INTO event_traces_fts(rowid, text, author)
				VALUES (new.rowid, new.text, new.author);
			END;
		`,
	},
	{
		Version: 3,
		Name:    "index traces by owning session",
		SQL: `
			CREATE INDEX idx_traces_owner ON event_traces (app_name, user_id, session_id, created_at);
		`,
	},
}
