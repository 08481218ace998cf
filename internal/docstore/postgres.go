// Copyright 2024 Makerhive
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/omeid/pgerror"
	"go.uber.org/zap"
)

// PostgresStore presents the collection/document operation set over a fixed
// relational schema. Inserts return the generated identity, reads reshape
// rows back into logical field names, and the DDL below is idempotent so a
// restart never fails on existing objects.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens the connection described by cfg, verifies it with
// a ping and idempotently creates all tables and indexes.
func NewPostgresStore(ctx context.Context, cfg Config) (*PostgresStore, error) {
	conninfo, err := buildConnInfo(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", conninfo)
	if err != nil {
		return nil, fmt.Errorf("docstore: cannot open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("docstore: cannot reach postgres: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	zap.S().Infow("Postgres store initialized")
	return s, nil
}

// buildConnInfo turns the configuration into a lib/pq keyword/value string.
//
// A DATABASE_URL is parsed into discrete parameters with the host resolved
// to IPv4 first, because some hosting providers resolve the same name to an
// unreachable IPv6 address before the working IPv4 one. Hosts behind a
// connection pooler use a different credential encoding, so those URLs pass
// through untouched apart from forcing sslmode=require.
func buildConnInfo(cfg Config) (string, error) {
	if cfg.DatabaseURL == "" {
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=require",
			cfg.PQHost, cfg.PQPort, cfg.PQUser, cfg.PQPassword, cfg.PQDatabase), nil
	}

	u, err := url.Parse(cfg.DatabaseURL)
	if err != nil {
		return "", fmt.Errorf("docstore: bad database url: %w", err)
	}

	if strings.Contains(u.Hostname(), "pooler.") {
		q := u.Query()
		if q.Get("sslmode") == "" {
			q.Set("sslmode", "require")
			u.RawQuery = q.Encode()
		}
		return u.String(), nil
	}

	host := u.Hostname()
	if ip := lookupIPv4(host); ip != "" {
		host = ip
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	password, _ := u.User.Password()
	dbname := strings.TrimPrefix(u.Path, "/")

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=require",
		host, port, u.User.Username(), password, dbname), nil
}

// lookupIPv4 returns the first A record for host, or "" when resolution
// fails (the original hostname is then used as-is).
func lookupIPv4(host string) string {
	if net.ParseIP(host) != nil {
		return host
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		zap.S().Debugf("IPv4 lookup for %s failed: %s", host, err)
		return ""
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}

// pgDDL is executed statement by statement; each statement is transactional
// on its own, there is no surrounding transaction.
var pgDDL = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT,
		api_key TEXT,
		role TEXT NOT NULL DEFAULT 'member',
		bio TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT,
		category TEXT,
		tags TEXT[] NOT NULL DEFAULT '{}',
		likes INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS discussions (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		content TEXT,
		category TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS replies (
		id SERIAL PRIMARY KEY,
		discussion_id INTEGER NOT NULL REFERENCES discussions (id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS lessons (
		id SERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		category TEXT,
		level TEXT,
		video_url TEXT,
		duration INTEGER,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		created_by INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		members TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_api_key_idx ON users (api_key) WHERE api_key IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS users_created_at_idx ON users (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS projects_created_at_idx ON projects (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS projects_user_id_idx ON projects (user_id)`,
	`CREATE INDEX IF NOT EXISTS discussions_created_at_idx ON discussions (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS discussions_user_id_idx ON discussions (user_id)`,
	`CREATE INDEX IF NOT EXISTS replies_discussion_id_idx ON replies (discussion_id)`,
	`CREATE INDEX IF NOT EXISTS replies_user_id_idx ON replies (user_id)`,
	`CREATE INDEX IF NOT EXISTS lessons_created_at_idx ON lessons (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS rooms_created_at_idx ON rooms (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS rooms_created_by_idx ON rooms (created_by)`,
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	for _, stmt := range pgDDL {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.errorHandling(stmt, err)
			return fmt.Errorf("docstore: schema setup failed: %w", err)
		}
	}
	return nil
}

// errorHandling logs postgres errors the same way for every statement;
// connection exceptions are called out separately because they are what the
// startup fallback chain keys on.
func (s *PostgresStore) errorHandling(sqlStatement string, err error) {
	if e := pgerror.ConnectionException(err); e != nil {
		zap.S().Errorw(
			"PostgreSQL failed: ConnectionException",
			"error", err,
			"sqlStatement", sqlStatement,
		)
	} else {
		zap.S().Errorw(
			"PostgreSQL failed.",
			"error", err,
			"sqlStatement", sqlStatement,
		)
	}
}

func (s *PostgresStore) Collection(name string) Collection {
	return &pgCollection{store: s, name: name}
}

func (s *PostgresStore) Kind() string { return "postgres" }

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close(ctx context.Context) error {
	return s.db.Close()
}

type pgCollection struct {
	store *PostgresStore
	name  string
}

func (c *pgCollection) schema() (*tableSchema, error) {
	ts, ok := pgTables[c.name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, c.name)
	}
	return ts, nil
}

func (c *pgCollection) InsertOne(ctx context.Context, doc Document) (*InsertOneResult, error) {
	ts, err := c.schema()
	if err != nil {
		return nil, err
	}
	cols, vals := ts.insertColumns(doc)
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	sqlStatement := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		ts.table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	var id int64
	if err := c.store.db.QueryRowContext(ctx, sqlStatement, vals...).Scan(&id); err != nil {
		c.store.errorHandling(sqlStatement, err)
		return nil, err
	}
	return &InsertOneResult{InsertedID: id}, nil
}

func (c *pgCollection) FindOne(ctx context.Context, filter Filter) (Document, error) {
	ts, err := c.schema()
	if err != nil {
		return nil, err
	}
	where, args, err := ts.whereClause(filter, 1)
	if err != nil {
		return nil, err
	}
	sqlStatement := fmt.Sprintf("SELECT %s FROM %s", strings.Join(ts.columns, ", "), ts.table)
	if where != "" {
		sqlStatement += " WHERE " + where
	}
	sqlStatement += " LIMIT 1"

	row := c.store.db.QueryRowContext(ctx, sqlStatement, args...)
	doc, err := ts.scanRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		c.store.errorHandling(sqlStatement, err)
		return nil, err
	}
	return doc, nil
}

func (c *pgCollection) Find(filter Filter) Query {
	return &pgQuery{coll: c, filter: filter, skip: -1, limit: -1}
}

func (c *pgCollection) UpdateOne(ctx context.Context, filter Filter, update Update) (*UpdateResult, error) {
	ts, err := c.schema()
	if err != nil {
		return nil, err
	}
	set, setArgs, err := ts.setClause(update, 1)
	if err != nil {
		return nil, err
	}
	where, whereArgs, err := ts.whereClause(filter, 1+len(setArgs))
	if err != nil {
		return nil, err
	}
	if where == "" {
		where = "TRUE"
	}
	// UPDATE has no LIMIT; constrain to the first matching row by id.
	sqlStatement := fmt.Sprintf(
		"UPDATE %s SET %s WHERE id IN (SELECT id FROM %s WHERE %s ORDER BY id LIMIT 1)",
		ts.table, set, ts.table, where)

	res, err := c.store.db.ExecContext(ctx, sqlStatement, append(setArgs, whereArgs...)...)
	if err != nil {
		c.store.errorHandling(sqlStatement, err)
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	return &UpdateResult{MatchedCount: affected, ModifiedCount: affected}, nil
}

func (c *pgCollection) DeleteOne(ctx context.Context, filter Filter) (*DeleteResult, error) {
	return c.delete(ctx, filter, true)
}

func (c *pgCollection) DeleteMany(ctx context.Context, filter Filter) (*DeleteResult, error) {
	return c.delete(ctx, filter, false)
}

func (c *pgCollection) delete(ctx context.Context, filter Filter, single bool) (*DeleteResult, error) {
	ts, err := c.schema()
	if err != nil {
		return nil, err
	}
	where, args, err := ts.whereClause(filter, 1)
	if err != nil {
		return nil, err
	}
	if where == "" {
		where = "TRUE"
	}
	var sqlStatement string
	if single {
		sqlStatement = fmt.Sprintf(
			"DELETE FROM %s WHERE id IN (SELECT id FROM %s WHERE %s ORDER BY id LIMIT 1)",
			ts.table, ts.table, where)
	} else {
		sqlStatement = fmt.Sprintf("DELETE FROM %s WHERE %s", ts.table, where)
	}

	res, err := c.store.db.ExecContext(ctx, sqlStatement, args...)
	if err != nil {
		c.store.errorHandling(sqlStatement, err)
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	return &DeleteResult{DeletedCount: affected}, nil
}

func (c *pgCollection) CountDocuments(ctx context.Context, filter Filter) (int64, error) {
	ts, err := c.schema()
	if err != nil {
		return 0, err
	}
	where, args, err := ts.whereClause(filter, 1)
	if err != nil {
		return 0, err
	}
	sqlStatement := fmt.Sprintf("SELECT COUNT(*) FROM %s", ts.table)
	if where != "" {
		sqlStatement += " WHERE " + where
	}
	var n int64
	if err := c.store.db.QueryRowContext(ctx, sqlStatement, args...).Scan(&n); err != nil {
		c.store.errorHandling(sqlStatement, err)
		return 0, err
	}
	return n, nil
}

func (c *pgCollection) CreateIndex(ctx context.Context, spec IndexSpec, opts IndexOptions) error {
	ts, err := c.schema()
	if err != nil {
		return err
	}
	var parts, nameParts []string
	for _, field := range sortedSpecKeys(spec) {
		col := ts.fieldToColumn(field)
		dir := "ASC"
		if spec[field] == Descending {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
		nameParts = append(nameParts, col)
	}
	unique := ""
	if opts.Unique {
		unique = "UNIQUE "
	}
	sqlStatement := fmt.Sprintf(
		"CREATE %sINDEX IF NOT EXISTS %s_%s_idx ON %s (%s)",
		unique, ts.table, strings.Join(nameParts, "_"), ts.table, strings.Join(parts, ", "))
	if opts.Sparse && len(nameParts) == 1 {
		sqlStatement += fmt.Sprintf(" WHERE %s IS NOT NULL", nameParts[0])
	}
	if _, err := c.store.db.ExecContext(ctx, sqlStatement); err != nil {
		c.store.errorHandling(sqlStatement, err)
		return err
	}
	return nil
}

type pgQuery struct {
	coll      *pgCollection
	filter    Filter
	sortField string
	sortDir   SortDirection
	skip      int64
	limit     int64
}

func (q *pgQuery) Sort(field string, direction SortDirection) Query {
	q.sortField = field
	q.sortDir = direction
	return q
}

func (q *pgQuery) Skip(n int64) Query {
	q.skip = n
	return q
}

func (q *pgQuery) Limit(n int64) Query {
	q.limit = n
	return q
}

func (q *pgQuery) All(ctx context.Context) ([]Document, error) {
	ts, err := q.coll.schema()
	if err != nil {
		return nil, err
	}
	where, args, err := ts.whereClause(q.filter, 1)
	if err != nil {
		return nil, err
	}

	sqlStatement := fmt.Sprintf("SELECT %s FROM %s", strings.Join(ts.columns, ", "), ts.table)
	if where != "" {
		sqlStatement += " WHERE " + where
	}
	if q.sortField != "" {
		dir := "ASC"
		if q.sortDir == Descending {
			dir = "DESC"
		}
		// Secondary sort on id pins tie order across re-queries.
		sqlStatement += fmt.Sprintf(" ORDER BY %s %s, id %s", ts.fieldToColumn(q.sortField), dir, dir)
	}
	if q.limit >= 0 {
		args = append(args, q.limit)
		sqlStatement += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.skip > 0 {
		args = append(args, q.skip)
		sqlStatement += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := q.coll.store.db.QueryContext(ctx, sqlStatement, args...)
	if err != nil {
		q.coll.store.errorHandling(sqlStatement, err)
		return nil, err
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		doc, err := ts.scanRow(rows.Scan)
		if err != nil {
			q.coll.store.errorHandling(sqlStatement, err)
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		q.coll.store.errorHandling(sqlStatement, err)
		return nil, err
	}
	return docs, nil
}

// scanRow reads one row in ts.columns order and reshapes it into a document
// with logical field names. The identity column always surfaces as "id".
func (ts *tableSchema) scanRow(scan func(dest ...any) error) (Document, error) {
	dests := make([]any, len(ts.columns))
	arrays := make(map[int]*pq.StringArray)
	for i, col := range ts.columns {
		if ts.arrayColumns[col] {
			arr := &pq.StringArray{}
			arrays[i] = arr
			dests[i] = arr
			continue
		}
		dests[i] = new(any)
	}
	if err := scan(dests...); err != nil {
		return nil, err
	}

	doc := make(Document, len(ts.columns))
	for i, col := range ts.columns {
		field := ts.columnToField(col)
		if arr, ok := arrays[i]; ok {
			doc[field] = []string(*arr)
			continue
		}
		v := *(dests[i].(*any))
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		doc[field] = v
	}
	return doc, nil
}

func sortedSpecKeys(spec IndexSpec) []string {
	keys := make([]string, 0, len(spec))
	for k := range spec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
