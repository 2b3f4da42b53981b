package sink

import (
	"context"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ajitpratap0/runvars/pkg/columnar"
	"github.com/ajitpratap0/runvars/pkg/errors"
)

// Write modes of the PostgreSQL sink, chosen with ?mode=.
const (
	modeAppend   = "append"
	modeTruncate = "truncate"
	modeReplace  = "replace"
)

// postgresSink copies rows into a table, creating it when missing. Float
// columns map to double precision, string and mixed columns to text.
type postgresSink struct {
	conn  *pgx.Conn
	table pgx.Identifier
	mode  string
}

func newPostgres(ctx context.Context, u *url.URL) (*postgresSink, error) {
	table, mode, dsn, err := postgresTarget(u)
	if err != nil {
		return nil, err
	}
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to PostgreSQL")
	}
	return &postgresSink{conn: conn, table: table, mode: mode}, nil
}

// postgresTarget splits the sink parameters off the connection string.
func postgresTarget(u *url.URL) (pgx.Identifier, string, string, error) {
	q := u.Query()
	name := q.Get("table")
	if name == "" {
		return nil, "", "", errors.New(errors.ErrorTypeConfig, "postgres destination needs a table query parameter")
	}
	mode := q.Get("mode")
	switch mode {
	case "":
		mode = modeAppend
	case modeAppend, modeTruncate, modeReplace:
	default:
		return nil, "", "", errors.Newf(errors.ErrorTypeConfig, "unknown postgres write mode %q", mode)
	}
	q.Del("table")
	q.Del("mode")

	dsn := *u
	dsn.RawQuery = q.Encode()
	return pgx.Identifier(strings.Split(name, ".")), mode, dsn.String(), nil
}

func (s *postgresSink) Scheme() string { return "postgres" }

func (s *postgresSink) Put(context.Context, io.Reader, Object) (int64, error) {
	return 0, errors.New(errors.ErrorTypeValidation, "postgres sink accepts tables, not serialized bytes")
}

func (s *postgresSink) PutTable(ctx context.Context, t *columnar.Table) (int64, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeConnection, "failed to begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	for _, stmt := range createStatements(s.table, t, s.mode) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return 0, errors.Wrap(err, errors.ErrorTypeConnection, "failed to prepare table "+s.table.Sanitize())
		}
	}

	n, err := tx.CopyFrom(ctx, s.table, t.ColumnNames(), pgx.CopyFromSlice(t.NumRows(), func(i int) ([]any, error) {
		return rowValues(t, i), nil
	}))
	if err != nil {
		return n, errors.Wrap(err, errors.ErrorTypeConnection, "failed to copy rows into "+s.table.Sanitize())
	}
	if err := tx.Commit(ctx); err != nil {
		return n, errors.Wrap(err, errors.ErrorTypeConnection, "failed to commit")
	}
	return n, nil
}

func (s *postgresSink) Close() error {
	return s.conn.Close(context.Background())
}

func createStatements(table pgx.Identifier, t *columnar.Table, mode string) []string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(table.Sanitize())
	b.WriteString(" (")
	for i, col := range t.Columns() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgx.Identifier{col.Name()}.Sanitize())
		if col.Type() == columnar.ColumnTypeFloat {
			b.WriteString(" double precision")
		} else {
			b.WriteString(" text")
		}
	}
	b.WriteString(")")

	switch mode {
	case modeReplace:
		return []string{"DROP TABLE IF EXISTS " + table.Sanitize(), b.String()}
	case modeTruncate:
		return []string{b.String(), "TRUNCATE " + table.Sanitize()}
	default:
		return []string{b.String()}
	}
}

func rowValues(t *columnar.Table, i int) []any {
	values := t.Values(i)
	for c, v := range values {
		if f, ok := v.(float64); ok && t.Columns()[c].Type() == columnar.ColumnTypeMixed {
			values[c] = strconv.FormatFloat(f, 'g', -1, 64)
		}
	}
	return values
}
