// Package sqlstore keeps documents in SQL tables, one table per collection
// holding an id column and a JSON data column
package sqlstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	// database/sql drivers for the supported dialects
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/conduit-lang/docmap/internal/orm/adapter/eval"
	"github.com/conduit-lang/docmap/internal/orm/collection"
	"github.com/conduit-lang/docmap/internal/orm/document"
	"github.com/conduit-lang/docmap/internal/orm/normalize"
	"github.com/conduit-lang/docmap/internal/orm/query"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// Store implements collection.Adapter on a SQL database
type Store struct {
	db             *sql.DB
	dialect        Dialect
	normalizer     normalize.Normalizer
	newID          func() string
	retry          RetryConfig
	concurrency    int
	streamPageSize int
	logger         *zap.Logger
}

// DefaultStreamPageSize is the number of rows a stream reads per query
const DefaultStreamPageSize = 100

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNormalizer replaces the default normalizer
func WithNormalizer(n normalize.Normalizer) Option {
	return func(s *Store) {
		s.normalizer = n
	}
}

// WithIDGenerator sets the generator used for documents created without an id
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		s.newID = newID
	}
}

// WithStreamPageSize sets the number of rows a stream reads per query
func WithStreamPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.streamPageSize = n
		}
	}
}

// WithRetry sets the retry policy for transient failures
func WithRetry(cfg RetryConfig) Option {
	return func(s *Store) {
		s.retry = cfg
	}
}

// New creates a store on an open database
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{
		db:             db,
		dialect:        dialect,
		newID:          document.NewID,
		retry:          DefaultRetryConfig(),
		concurrency:    normalize.DefaultConcurrency,
		streamPageSize: DefaultStreamPageSize,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.normalizer == nil {
		s.normalizer = normalize.New(s, normalize.WithLogger(s.logger))
	}
	return s
}

// Open connects to a database of the named dialect and verifies the connection
func Open(ctx context.Context, dialectName, dsn string, opts ...Option) (*Store, error) {
	dialect, err := DialectFor(dialectName)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect.Name(), err)
	}
	if _, ok := dialect.(SQLite); ok && inMemoryDSN(dsn) {
		// every connection to an in-memory database opens a new, empty one
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialect.Name(), err)
	}
	return New(db, dialect, opts...), nil
}

func inMemoryDSN(dsn string) bool {
	return dsn == ":memory:" ||
		strings.HasPrefix(dsn, "file::memory:") ||
		strings.Contains(dsn, "mode=memory")
}

// DB returns the underlying database handle
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the store's dialect
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureCollection creates the table of a collection when it does not exist
func (s *Store) EnsureCollection(ctx context.Context, name string) error {
	table, err := tableName(name)
	if err != nil {
		return err
	}
	ddl := s.dialect.CreateTable(table)
	s.logger.Debug("ensure collection", zap.String("sql", ddl))

	return retry(ctx, s.retry, s.logger, func() error {
		_, err := s.db.ExecContext(ctx, ddl)
		return err
	})
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s.logger.Debug("exec", zap.String("sql", query), zap.Int("args", len(args)))

	var result sql.Result
	err := retry(ctx, s.retry, s.logger, func() error {
		var err error
		result, err = s.db.ExecContext(ctx, query, args...)
		return err
	})
	return result, convertError(err)
}

func (s *Store) query(ctx context.Context, stmt *statement) (*sql.Rows, error) {
	s.logger.Debug("query", zap.String("sql", stmt.String()), zap.Int("args", len(stmt.args)))

	var rows *sql.Rows
	err := retry(ctx, s.retry, s.logger, func() error {
		var err error
		rows, err = s.db.QueryContext(ctx, stmt.String(), stmt.args...)
		return err
	})
	return rows, convertError(err)
}

// Load implements normalize.Loader
func (s *Store) Load(ctx context.Context, node *schema.Node, id string) (document.Snapshot, error) {
	table, err := tableName(node.CollectionName)
	if err != nil {
		return document.Snapshot{}, err
	}
	stmt := newStatement(s.dialect, "SELECT id, data FROM %s WHERE id = ", table)
	stmt.sql.WriteString(stmt.param(id))

	var raw []byte
	var snapID string
	err = retry(ctx, s.retry, s.logger, func() error {
		return s.db.QueryRowContext(ctx, stmt.String(), stmt.args...).Scan(&snapID, &raw)
	})
	if err != nil {
		return document.Snapshot{}, convertError(err)
	}
	return decodeSnapshot(snapID, raw)
}

// Count returns the number of documents matching the query filters
func (s *Store) Count(ctx context.Context, node *schema.Node, q query.Query) (int, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	stmt, err := countStatement(s.dialect, node, q)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("query", zap.String("sql", stmt.String()), zap.Int("args", len(stmt.args)))

	var n int
	err = retry(ctx, s.retry, s.logger, func() error {
		return s.db.QueryRowContext(ctx, stmt.String(), stmt.args...).Scan(&n)
	})
	if err != nil {
		return 0, convertError(err)
	}
	return n, nil
}

func (s *Store) snapshots(ctx context.Context, node *schema.Node, q query.Query) (*sql.Rows, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	stmt, err := selectStatement(s.dialect, node, q)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, stmt)
}

// Fetch returns the normalized documents matching the query
func (s *Store) Fetch(ctx context.Context, node *schema.Node, q query.Query) ([]document.Record, error) {
	rows, err := s.snapshots(ctx, node, q)
	if err != nil {
		return nil, err
	}
	snaps, err := readSnapshots(rows, q.Select)
	if err != nil {
		return nil, err
	}
	return normalize.NormalizeAll(ctx, s.normalizer, node, snaps, s.concurrency)
}

// Stream returns a stream reading matching rows a page at a time. Each page's
// cursor is closed before its documents are normalized.
func (s *Store) Stream(ctx context.Context, node *schema.Node, q query.Query) (collection.Stream, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	stream := &rowStream{store: s, node: node, q: q, pageSize: s.streamPageSize}
	if err := stream.fill(ctx); err != nil {
		return nil, err
	}
	return stream, nil
}

// Create inserts a new document and returns its id
func (s *Store) Create(ctx context.Context, node *schema.Node, rec document.Record) (string, error) {
	snap, err := s.normalizer.Denormalize(node, rec)
	if err != nil {
		return "", err
	}
	if snap.ID == "" {
		if s.newID == nil {
			return "", collection.ErrMissingID
		}
		snap.ID = s.newID()
	}

	table, err := tableName(node.CollectionName)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(snap.Data)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	stmt := newStatement(s.dialect, "INSERT INTO %s (id, data) VALUES (", table)
	fmt.Fprintf(&stmt.sql, "%s, %s)", stmt.param(snap.ID), stmt.param(string(data)))

	if _, err := s.exec(ctx, stmt.String(), stmt.args...); err != nil {
		return "", err
	}
	return snap.ID, nil
}

// Update replaces a stored document, creating it when missing
func (s *Store) Update(ctx context.Context, node *schema.Node, rec document.Record) error {
	snap, err := s.normalizer.Denormalize(node, rec)
	if err != nil {
		return err
	}
	if snap.ID == "" {
		return collection.ErrMissingID
	}

	table, err := tableName(node.CollectionName)
	if err != nil {
		return err
	}
	data, err := json.Marshal(snap.Data)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	stmt := newStatement(s.dialect, "INSERT INTO %s (id, data) VALUES (", table)
	fmt.Fprintf(&stmt.sql, "%s, %s) ON CONFLICT (id) DO UPDATE SET data = excluded.data",
		stmt.param(snap.ID), stmt.param(string(data)))

	_, err = s.exec(ctx, stmt.String(), stmt.args...)
	return err
}

// Delete removes a stored document
func (s *Store) Delete(ctx context.Context, node *schema.Node, rec document.Record) error {
	id, err := normalize.IDValue(rec[node.IDKey])
	if err != nil {
		return fmt.Errorf("field %s: %w", node.IDKey, err)
	}
	if id == "" {
		return collection.ErrMissingID
	}

	table, err := tableName(node.CollectionName)
	if err != nil {
		return err
	}
	stmt := newStatement(s.dialect, "DELETE FROM %s WHERE id = ", table)
	stmt.sql.WriteString(stmt.param(id))

	_, err = s.exec(ctx, stmt.String(), stmt.args...)
	return err
}

func scanSnapshot(rows *sql.Rows) (document.Snapshot, error) {
	var id string
	var raw []byte
	if err := rows.Scan(&id, &raw); err != nil {
		return document.Snapshot{}, fmt.Errorf("failed to scan document: %w", err)
	}
	return decodeSnapshot(id, raw)
}

// decodeSnapshot parses the data column. Integral numbers decode as int64,
// other numbers as float64.
func decodeSnapshot(id string, raw []byte) (document.Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return document.Snapshot{}, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return document.Snapshot{ID: id, Data: document.Numbers(data).(map[string]any)}, nil
}

// readSnapshots scans and closes rows
func readSnapshots(rows *sql.Rows, selected []string) ([]document.Snapshot, error) {
	defer rows.Close()

	var snaps []document.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, eval.Project(snap, selected))
	}
	if err := rows.Err(); err != nil {
		return nil, convertError(err)
	}
	return snaps, nil
}

type rowStream struct {
	store    *Store
	node     *schema.Node
	q        query.Query
	pageSize int
	read     int
	done     bool
	buffer   []document.Snapshot
	current  document.Record
	err      error
}

// fill reads the next page of rows into the buffer
func (r *rowStream) fill(ctx context.Context) error {
	size := r.pageSize
	if r.q.HasLimit() {
		remaining := r.q.LimitValue() - r.read
		if remaining <= 0 {
			r.done = true
			return nil
		}
		size = min(size, remaining)
	}
	offset := r.q.OffsetValue() + r.read

	page := r.q
	page.Limit = &size
	page.Offset = &offset
	if !slices.ContainsFunc(page.OrderBy, func(o query.OrderBy) bool { return o.Key == r.node.IDKey }) {
		// pages need a total order
		page.OrderBy = append(slices.Clone(page.OrderBy), query.NewOrderBy(r.node.IDKey))
	}

	rows, err := r.store.snapshots(ctx, r.node, page)
	if err != nil {
		return err
	}
	snaps, err := readSnapshots(rows, r.q.Select)
	if err != nil {
		return err
	}

	r.read += len(snaps)
	r.done = len(snaps) < size
	r.buffer = snaps
	return nil
}

func (r *rowStream) Next(ctx context.Context) bool {
	if r.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		r.err = err
		return false
	}
	if len(r.buffer) == 0 {
		if r.done {
			return false
		}
		if err := r.fill(ctx); err != nil {
			r.err = err
			return false
		}
		if len(r.buffer) == 0 {
			return false
		}
	}

	snap := r.buffer[0]
	r.buffer = r.buffer[1:]
	rec, err := r.store.normalizer.Normalize(ctx, r.node, snap)
	if err != nil {
		r.err = err
		return false
	}
	r.current = rec
	return true
}

func (r *rowStream) Record() document.Record {
	return r.current
}

func (r *rowStream) Err() error {
	return r.err
}

func (r *rowStream) Close() error {
	r.buffer = nil
	r.done = true
	return nil
}
