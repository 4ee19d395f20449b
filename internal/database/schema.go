package database

import (
	"context"
	"fmt"
)

// ChangeChannel is the LISTEN/NOTIFY channel carrying the name of every
// collection whose documents change.
const ChangeChannel = "docstore_changes"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS documents_data_idx ON documents USING GIN (data jsonb_path_ops);

CREATE OR REPLACE FUNCTION documents_notify() RETURNS trigger AS $$
BEGIN
	IF TG_OP = 'DELETE' THEN
		PERFORM pg_notify('docstore_changes', OLD.collection);
	ELSE
		PERFORM pg_notify('docstore_changes', NEW.collection);
	END IF;
	RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS documents_notify ON documents;
CREATE TRIGGER documents_notify
	AFTER INSERT OR UPDATE OR DELETE ON documents
	FOR EACH ROW EXECUTE FUNCTION documents_notify();
`

// EnsureSchema creates the documents table, its index and the change
// notification trigger. It is safe to run on every start.
func (db *Database) EnsureSchema(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply document schema: %w", err)
	}
	return nil
}
