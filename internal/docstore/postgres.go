package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/database"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/logger"
)

// timeLayout is fixed width so that lexical order of encoded times is chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const listenRetryDelay = time.Second

// PostgresStore keeps documents as JSONB rows of a single documents table.
// Live queries are driven by LISTEN/NOTIFY on database.ChangeChannel.
type PostgresStore struct {
	db  *database.Database
	hub *Hub
	log *logger.Logger

	mu         sync.Mutex
	listening  bool
	stopListen context.CancelFunc
	listenDone chan struct{}
}

// NewPostgresStore creates a store on top of an open pool. The documents
// schema must already exist (see database.EnsureSchema).
func NewPostgresStore(db *database.Database, log *logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:  db,
		hub: NewHub(),
		log: log.WithComponent("docstore.postgres"),
	}
}

// Collection returns a handle on the named collection.
func (s *PostgresStore) Collection(name string) Collection {
	return &postgresCollection{store: s, name: name}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return mapPostgresError(s.db.Ping(ctx))
}

// Close stops the change listener and closes the pool.
func (s *PostgresStore) Close(ctx context.Context) error {
	s.mu.Lock()
	stop, done := s.stopListen, s.listenDone
	s.listening = false
	s.mu.Unlock()

	if stop != nil {
		stop()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.db.Close()
	return nil
}

// ensureListener starts the notification loop on first use.
func (s *PostgresStore) ensureListener() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listening {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.listening = true
	s.stopListen = cancel
	s.listenDone = make(chan struct{})
	go s.listen(ctx, s.listenDone)
}

func (s *PostgresStore) listen(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		err := s.waitNotifications(ctx)
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("Change listener disconnected, reconnecting", map[string]interface{}{
			"error": err.Error(),
		})

		select {
		case <-ctx.Done():
			return
		case <-time.After(listenRetryDelay):
		}
		// Changes may have been missed while disconnected.
		s.hub.PublishAll()
	}
}

func (s *PostgresStore) waitNotifications(ctx context.Context) error {
	pooled, err := s.db.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	// A listening connection must never go back to the pool.
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{database.ChangeChannel}.Sanitize()); err != nil {
		return err
	}

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		s.hub.Publish(n.Payload)
	}
}

type postgresCollection struct {
	store *PostgresStore
	name  string
}

func (c *postgresCollection) Get(ctx context.Context, id string) (*Document, error) {
	var raw []byte
	err := c.store.db.Pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		c.name, id,
	).Scan(&raw)
	if err != nil {
		return nil, mapPostgresError(err)
	}

	fields, err := decodeJSONDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document %s/%s: %w", c.name, id, err)
	}
	return &Document{ID: id, Fields: fields}, nil
}

func (c *postgresCollection) Find(ctx context.Context, q Query) ([]Document, error) {
	sql, args, err := buildSelect(c.name, q)
	if err != nil {
		return nil, err
	}

	rows, err := c.store.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, mapPostgresError(err)
		}
		fields, err := decodeJSONDocument(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode document %s/%s: %w", c.name, id, err)
		}
		docs = append(docs, Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, mapPostgresError(err)
	}
	return docs, nil
}

func (c *postgresCollection) Insert(ctx context.Context, fields map[string]interface{}) (string, error) {
	set, _ := splitMerge(fields)
	raw, err := encodeJSONDocument(set)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err = c.store.db.Pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)`,
		c.name, id, string(raw),
	)
	if err != nil {
		return "", mapPostgresError(err)
	}
	return id, nil
}

func (c *postgresCollection) Merge(ctx context.Context, id string, fields map[string]interface{}) error {
	set, unset := splitMerge(fields)
	raw, err := encodeJSONDocument(set)
	if err != nil {
		return err
	}
	if unset == nil {
		unset = []string{}
	}

	tag, err := c.store.db.Pool.Exec(ctx,
		`UPDATE documents
		    SET data = (data - $3::text[]) || $4::jsonb, updated_at = now()
		  WHERE collection = $1 AND id = $2`,
		c.name, id, unset, string(raw),
	)
	if err != nil {
		return mapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *postgresCollection) Delete(ctx context.Context, id string) error {
	tag, err := c.store.db.Pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		c.name, id,
	)
	if err != nil {
		return mapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *postgresCollection) Watch(ctx context.Context, q Query, fn WatchFunc) (func(), error) {
	if _, _, err := buildSelect(c.name, q); err != nil {
		return nil, err
	}
	c.store.ensureListener()
	return watchSnapshots(ctx, c.store.hub, c.name, q, c.Find, fn)
}

// sqlBuilder accumulates positional arguments.
type sqlBuilder struct {
	args []interface{}
}

func (b *sqlBuilder) arg(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// buildSelect translates q into a SELECT over the documents table. Field names
// are always bound as parameters.
func buildSelect(collection string, q Query) (string, []interface{}, error) {
	b := &sqlBuilder{}
	var sb strings.Builder
	sb.WriteString("SELECT id, data FROM documents WHERE collection = ")
	sb.WriteString(b.arg(collection))

	for _, p := range q.Where {
		cond, err := b.predicate(p)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" AND ")
		sb.WriteString(cond)
	}

	sb.WriteString(" ORDER BY ")
	for _, o := range q.OrderBy {
		sb.WriteString("data->")
		sb.WriteString(b.arg(o.Field))
		sb.WriteString("::text")
		if o.Desc {
			sb.WriteString(" DESC NULLS LAST, ")
		} else {
			sb.WriteString(" ASC NULLS FIRST, ")
		}
	}
	sb.WriteString("id ASC")

	return sb.String(), b.args, nil
}

func (b *sqlBuilder) predicate(p Predicate) (string, error) {
	switch p.Op {
	case OpEq:
		raw, err := json.Marshal(map[string]interface{}{p.Field: encodeJSONValue(copyValue(p.Value))})
		if err != nil {
			return "", fmt.Errorf("invalid value for %s: %w", p.Field, err)
		}
		return fmt.Sprintf("data @> %s::jsonb", b.arg(string(raw))), nil

	case OpIn:
		values, _ := p.Value.([]interface{})
		raw, err := json.Marshal(encodeJSONValue(copyValue(values)))
		if err != nil {
			return "", fmt.Errorf("invalid values for %s: %w", p.Field, err)
		}
		return fmt.Sprintf("data->%s::text IN (SELECT jsonb_array_elements(%s::jsonb))",
			b.arg(p.Field), b.arg(string(raw))), nil

	case OpGte, OpLte:
		cmp := string(p.Op)
		if f, ok := toFloat(p.Value); ok {
			key := b.arg(p.Field)
			return fmt.Sprintf(
				"(CASE WHEN jsonb_typeof(data->%[1]s::text) = 'number' THEN (data->>%[1]s::text)::numeric %[2]s %[3]s::numeric ELSE false END)",
				key, cmp, b.arg(f)), nil
		}
		var text string
		switch v := p.Value.(type) {
		case string:
			text = v
		case time.Time:
			text = encodeTime(v)
		default:
			return "", fmt.Errorf("unsupported range value %T for %s", p.Value, p.Field)
		}
		key := b.arg(p.Field)
		return fmt.Sprintf(
			`(CASE WHEN jsonb_typeof(data->%[1]s::text) = 'string' THEN (data->>%[1]s::text) COLLATE "C" %[2]s %[3]s::text ELSE false END)`,
			key, cmp, b.arg(text)), nil
	}
	return "", fmt.Errorf("unsupported operator %q", p.Op)
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// encodeJSONValue rewrites time values into their sortable string form.
// v must already be in copyValue form.
func encodeJSONValue(v interface{}) interface{} {
	switch val := v.(type) {
	case time.Time:
		return encodeTime(val)
	case map[string]interface{}:
		for k, item := range val {
			val[k] = encodeJSONValue(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = encodeJSONValue(item)
		}
		return val
	}
	return v
}

func encodeJSONDocument(fields map[string]interface{}) ([]byte, error) {
	raw, err := json.Marshal(encodeJSONValue(copyFields(fields)))
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return raw, nil
}

func decodeJSONDocument(raw []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	fields := map[string]interface{}{}
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	normalizeJSONValue(fields)
	return fields, nil
}

// mapPostgresError wraps driver errors with the matching store sentinel.
func mapPostgresError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "42501" || strings.HasPrefix(pgErr.Code, "28"):
			return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		case strings.HasPrefix(pgErr.Code, "53") || strings.HasPrefix(pgErr.Code, "54"):
			return fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
		case strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P"):
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connectErr) || errors.As(err, &netErr) ||
		pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
