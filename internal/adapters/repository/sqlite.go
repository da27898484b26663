package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/botscope/internal/domain/model"
	"github.com/okian/botscope/pkg/logger"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS nodes (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    label       TEXT NOT NULL,
    key         TEXT NOT NULL,
    props       TEXT NOT NULL DEFAULT '{}',
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL,
    UNIQUE(label, key)
);
CREATE TABLE IF NOT EXISTS edges (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    source_id   INTEGER NOT NULL REFERENCES nodes(id),
    target_id   INTEGER NOT NULL REFERENCES nodes(id),
    edge_type   TEXT NOT NULL,
    props       TEXT NOT NULL DEFAULT '{}',
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL,
    UNIQUE(source_id, target_id, edge_type)
);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id, edge_type);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
`

const (
	upsertNodeSQL = `INSERT INTO nodes (label, key, props, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(label, key) DO UPDATE SET
		   props = json_patch(nodes.props, excluded.props),
		   updated_at = excluded.updated_at
		 RETURNING id`

	upsertEdgeSQL = `INSERT INTO edges (source_id, target_id, edge_type, props, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_id, target_id, edge_type) DO UPDATE SET
		   props = excluded.props,
		   updated_at = excluded.updated_at`

	nodePropsSQL = `SELECT props FROM nodes WHERE label = ? AND key = ? LIMIT 1`

	actionPropsSQL = `SELECT a.props
		 FROM nodes p
		 JOIN edges e ON e.source_id = p.id AND e.edge_type = ?
		 JOIN nodes a ON a.id = e.target_id AND a.label = ?
		 WHERE p.label = ? AND p.key = ?
		 ORDER BY e.id
		 LIMIT 1`

	classificationsSQL = `SELECT c.key, e.props, e.created_at, e.updated_at
		 FROM nodes p
		 JOIN edges e ON e.source_id = p.id AND e.edge_type = ?
		 JOIN nodes c ON c.id = e.target_id AND c.label = ?
		 WHERE p.label = ? AND p.key = ?
		 ORDER BY c.key`

	playerIDsSQL = `SELECT key FROM nodes WHERE label = ? ORDER BY id`
)

const timeLayout = time.RFC3339Nano

// SQLiteStore keeps the property graph in two SQLite tables.
type SQLiteStore struct {
	db     *sql.DB
	opts   options
	logger logger.Logger
}

// OpenSQLite opens dsn with the pure-Go SQLite driver and creates the graph tables.
func OpenSQLite(ctx context.Context, dsn string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	s, err := NewSQLiteStore(ctx, db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore creates the graph tables on db.
func NewSQLiteStore(ctx context.Context, db *sql.DB, opts ...Option) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("graph schema: %w", err)
	}
	o := newOptions(opts)
	return &SQLiteStore{db: db, opts: o, logger: o.logger.Named("repository.sqlite")}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Profile returns the profile attributes of playerID.
func (s *SQLiteStore) Profile(ctx context.Context, playerID string) (model.PlayerRecord, error) {
	props, err := s.props(ctx, nodePropsSQL, LabelPlayer, playerID)
	if err != nil {
		return model.PlayerRecord{}, fmt.Errorf("profile %s: %w", playerID, err)
	}
	rec := profileFromProps(playerID, props)
	if rec.Empty() {
		return model.PlayerRecord{}, fmt.Errorf("profile %s: %w", playerID, ErrNotFound)
	}
	return rec, nil
}

// Social returns the social diversity of playerID.
func (s *SQLiteStore) Social(ctx context.Context, playerID string) (model.SocialRecord, error) {
	props, err := s.props(ctx, nodePropsSQL, LabelPlayer, playerID)
	if err != nil {
		return model.SocialRecord{}, fmt.Errorf("social %s: %w", playerID, err)
	}
	rec := socialFromProps(playerID, props)
	if rec.Empty() {
		return model.SocialRecord{}, fmt.Errorf("social %s: %w", playerID, ErrNotFound)
	}
	return rec, nil
}

// Actions returns the first Action node performed by playerID.
func (s *SQLiteStore) Actions(ctx context.Context, playerID string) (model.ActionRecord, error) {
	props, err := s.props(ctx, actionPropsSQL, EdgePerformed, LabelAction, LabelPlayer, playerID)
	if err != nil {
		return model.ActionRecord{}, fmt.Errorf("actions %s: %w", playerID, err)
	}
	rec := model.ActionRecord{PlayerID: playerID, Counters: numbers(props)}
	if rec.Empty() {
		return model.ActionRecord{}, fmt.Errorf("actions %s: %w", playerID, ErrNotFound)
	}
	return rec, nil
}

func (s *SQLiteStore) props(ctx context.Context, query string, args ...any) (map[string]any, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, model.Upstream("sqlite query", err)
	}
	var props map[string]any
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, model.Upstream("decode props", err)
	}
	return props, nil
}

// UpsertClassification merges the label node and the player's edge to it.
func (s *SQLiteStore) UpsertClassification(ctx context.Context, playerID string, v model.Verdict) error {
	now := s.opts.now().UTC().Format(timeLayout)
	edge, err := json.Marshal(edgeProps(v))
	if err != nil {
		return fmt.Errorf("encode classification: %w", err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		pid, err := upsertNode(ctx, tx, LabelPlayer, playerID, nil, now)
		if err != nil {
			return err
		}
		cid, err := upsertNode(ctx, tx, LabelClassification, v.Label, map[string]any{"type": v.Label}, now)
		if err != nil {
			return err
		}
		return upsertEdge(ctx, tx, pid, cid, EdgeHasClassification, edge, now)
	})
}

// Classifications lists the player's classification edges.
func (s *SQLiteStore) Classifications(ctx context.Context, playerID string) ([]Classification, error) {
	rows, err := s.db.QueryContext(ctx, classificationsSQL, EdgeHasClassification, LabelClassification, LabelPlayer, playerID)
	if err != nil {
		return nil, model.Upstream("classifications", err)
	}
	defer rows.Close()

	var out []Classification
	for rows.Next() {
		var c Classification
		var raw, createdAt, updatedAt string
		if err := rows.Scan(&c.Label, &raw, &createdAt, &updatedAt); err != nil {
			return nil, model.Upstream("scan classification", err)
		}
		var props map[string]any
		if err := json.Unmarshal([]byte(raw), &props); err == nil {
			if f, ok := props["confidence"].(float64); ok {
				c.Confidence = model.Float64Ptr(f)
			}
			c.Reasoning, _ = props["reasoning"].(string)
		}
		c.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		c.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Upstream("classifications", err)
	}
	return out, nil
}

// UpsertPlayers merges profile attributes into Player nodes.
func (s *SQLiteStore) UpsertPlayers(ctx context.Context, players []model.PlayerRecord) error {
	now := s.opts.now().UTC().Format(timeLayout)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, p := range players {
			if _, err := upsertNode(ctx, tx, LabelPlayer, p.ID, floatProps(p.Attributes), now); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertActions merges one Action node per player and its PERFORMED edge.
func (s *SQLiteStore) UpsertActions(ctx context.Context, actions []model.ActionRecord) error {
	now := s.opts.now().UTC().Format(timeLayout)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, a := range actions {
			pid, err := upsertNode(ctx, tx, LabelPlayer, a.PlayerID, nil, now)
			if err != nil {
				return err
			}
			aid, err := upsertNode(ctx, tx, LabelAction, a.PlayerID, floatProps(a.Counters), now)
			if err != nil {
				return err
			}
			if err := upsertEdge(ctx, tx, pid, aid, EdgePerformed, []byte("{}"), now); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertSocial sets social diversity on Player nodes.
func (s *SQLiteStore) UpsertSocial(ctx context.Context, social []model.SocialRecord) error {
	now := s.opts.now().UTC().Format(timeLayout)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, r := range social {
			if _, err := upsertNode(ctx, tx, LabelPlayer, r.PlayerID, socialProps(r), now); err != nil {
				return err
			}
		}
		return nil
	})
}

// PlayerIDs lists Player keys in insertion order.
func (s *SQLiteStore) PlayerIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, playerIDsSQL, LabelPlayer)
	if err != nil {
		return nil, model.Upstream("player ids", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, model.Upstream("scan player id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Upstream("player ids", err)
	}
	return ids, nil
}

// Query runs a read statement. Params bind as named arguments (:name, @name or $name).
func (s *SQLiteStore) Query(ctx context.Context, statement string, params map[string]any) ([]map[string]any, error) {
	args := make([]any, 0, len(params))
	for k, v := range params {
		args = append(args, sql.Named(k, v))
	}
	rows, err := s.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, model.Upstream("sqlite query", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, model.Upstream("sqlite columns", err)
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, model.Upstream("sqlite scan", err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Upstream("sqlite query", err)
	}
	return out, nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Upstream("begin tx", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn(ctx, "rollback failed", logger.Error(rbErr))
		}
		return model.Upstream("graph write", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Upstream("commit tx", err)
	}
	return nil
}

func upsertNode(ctx context.Context, tx *sql.Tx, label, key string, props map[string]any, now string) (int64, error) {
	if props == nil {
		props = map[string]any{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return 0, fmt.Errorf("encode %s props: %w", label, err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx, upsertNodeSQL, label, key, string(raw), now, now).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert %s %s: %w", label, key, err)
	}
	return id, nil
}

func upsertEdge(ctx context.Context, tx *sql.Tx, src, dst int64, edgeType string, props []byte, now string) error {
	if _, err := tx.ExecContext(ctx, upsertEdgeSQL, src, dst, edgeType, string(props), now, now); err != nil {
		return fmt.Errorf("upsert %s edge: %w", edgeType, err)
	}
	return nil
}

func edgeProps(v model.Verdict) map[string]any {
	props := map[string]any{"reasoning": v.Reasoning}
	if v.Confidence != nil {
		props["confidence"] = *v.Confidence
	}
	return props
}

func floatProps(m map[string]float64) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func socialProps(r model.SocialRecord) map[string]any {
	out := map[string]any{}
	if r.Account != nil {
		out[model.AttrAccount] = *r.Account
	}
	if r.Diversity != nil {
		out[model.AttrSocialDiv] = *r.Diversity
	}
	return out
}

func numbers(props map[string]any) map[string]float64 {
	out := make(map[string]float64, len(props))
	for k, v := range props {
		switch n := v.(type) {
		case float64:
			out[k] = n
		case int64:
			out[k] = float64(n)
		}
	}
	return out
}

func profileFromProps(playerID string, props map[string]any) model.PlayerRecord {
	all := numbers(props)
	attrs := make(map[string]float64, len(model.ProfileKeys))
	for _, k := range model.ProfileKeys {
		if v, ok := all[k]; ok {
			attrs[k] = v
		}
	}
	return model.PlayerRecord{ID: playerID, Attributes: attrs}
}

func socialFromProps(playerID string, props map[string]any) model.SocialRecord {
	all := numbers(props)
	rec := model.SocialRecord{PlayerID: playerID}
	if v, ok := all[model.AttrAccount]; ok {
		rec.Account = model.Float64Ptr(v)
	}
	if v, ok := all[model.AttrSocialDiv]; ok {
		rec.Diversity = model.Float64Ptr(v)
	}
	return rec
}
