package store

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/opsdash/internal/model"
)

const entityTableSQL = `
CREATE TABLE IF NOT EXISTS %[1]s (
    id                   TEXT PRIMARY KEY,
    position             INTEGER NOT NULL DEFAULT 0,
    payload              TEXT NOT NULL,
    dirty                INTEGER NOT NULL DEFAULT 0,
    updated_at           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_position ON %[1]s(position);
`

const pendingDeletesSQL = `
CREATE TABLE IF NOT EXISTS pending_deletes (
    kind                 TEXT NOT NULL,
    id                   TEXT NOT NULL,
    recorded_at          TEXT NOT NULL,
    PRIMARY KEY (kind, id)
);
`

// schemaSQL builds the DDL for every entity table plus the pending delete log.
func schemaSQL() string {
	var b strings.Builder
	for _, k := range model.Kinds {
		fmt.Fprintf(&b, entityTableSQL, k)
	}
	b.WriteString(pendingDeletesSQL)
	return b.String()
}
