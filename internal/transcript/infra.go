package transcript

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"

	"github.com/pkg/errors"

	"github.com/Vovarama1992/webchat-skin/internal/webchat"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

type repo struct {
	db      *sql.DB
	dialect Dialect
}

func NewRepo(db *sql.DB, dialect Dialect) Repo {
	return &repo{db: db, dialect: dialect}
}

var schema = map[Dialect]string{
	DialectPostgres: `
		CREATE TABLE IF NOT EXISTS transcript_entries (
			id           BIGSERIAL PRIMARY KEY,
			session_id   TEXT NOT NULL,
			seq          BIGINT NOT NULL,
			kind         TEXT NOT NULL,
			text         TEXT NOT NULL,
			ts           TEXT NOT NULL DEFAULT '',
			widget       TEXT,
			dialog_links INTEGER NOT NULL DEFAULT 0,
			created_at   BIGINT NOT NULL
		)`,
	DialectSQLite: `
		CREATE TABLE IF NOT EXISTS transcript_entries (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id   TEXT NOT NULL,
			seq          INTEGER NOT NULL,
			kind         TEXT NOT NULL,
			text         TEXT NOT NULL,
			ts           TEXT NOT NULL DEFAULT '',
			widget       TEXT,
			dialog_links INTEGER NOT NULL DEFAULT 0,
			created_at   INTEGER NOT NULL
		)`,
}

// EnsureSchema creates the entries table if it is missing.
func EnsureSchema(ctx context.Context, db *sql.DB, dialect Dialect) error {
	ddl, ok := schema[dialect]
	if !ok {
		return errors.Errorf("unknown dialect %q", dialect)
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return errors.Wrap(err, "create transcript_entries")
	}
	_, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS transcript_entries_session ON transcript_entries (session_id, seq)`)
	return errors.Wrap(err, "create transcript_entries index")
}

func (r *repo) SaveEntry(ctx context.Context, e *Entry) error {
	var widget sql.NullString
	if e.Widget != nil {
		b, err := json.Marshal(e.Widget)
		if err != nil {
			return errors.Wrap(err, "marshal widget")
		}
		widget = sql.NullString{String: string(b), Valid: true}
	}

	err := r.db.QueryRowContext(ctx, r.rebind(`
		INSERT INTO transcript_entries (session_id, seq, kind, text, ts, widget, dialog_links, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`),
		e.SessionID,
		e.Seq,
		string(e.Kind),
		e.Text,
		e.Timestamp,
		widget,
		e.DialogLinks,
		e.CreatedAt,
	).Scan(&e.ID)
	return errors.Wrap(err, "insert transcript entry")
}

func (r *repo) ListEntries(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT id, session_id, seq, kind, text, ts, widget, dialog_links, created_at
		FROM transcript_entries
		WHERE session_id = $1
		ORDER BY seq ASC
	`), sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "query transcript entries")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var kind string
		var widget sql.NullString
		if err := rows.Scan(
			&e.ID,
			&e.SessionID,
			&e.Seq,
			&kind,
			&e.Text,
			&e.Timestamp,
			&widget,
			&e.DialogLinks,
			&e.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan transcript entry")
		}
		e.Kind = EntryKind(kind)
		if widget.Valid {
			var w webchat.QuickReplyWidget
			if err := json.Unmarshal([]byte(widget.String), &w); err != nil {
				return nil, errors.Wrapf(err, "decode widget of entry %d", e.ID)
			}
			e.Widget = &w
		}
		out = append(out, e)
	}

	return out, errors.Wrap(rows.Err(), "iterate transcript entries")
}

var placeholder = regexp.MustCompile(`\$\d+`)

// rebind turns $n placeholders into ? for SQLite.
func (r *repo) rebind(query string) string {
	if r.dialect == DialectSQLite {
		return placeholder.ReplaceAllString(query, "?")
	}
	return query
}
