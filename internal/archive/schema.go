package archive

// Chat messages are append-only; the archive never updates or deletes
// rows. The session_id+timestamp index serves the history endpoint.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	user_name  TEXT NOT NULL,
	text       TEXT NOT NULL,
	timestamp  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session_time
	ON messages (session_id, timestamp);
`
