package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/okian/botscope/internal/domain/model"
	"github.com/okian/botscope/pkg/logger"
)

const (
	cypherProfile = `MATCH (p:Player {actor: $player_id})
RETURN properties(p) AS props
LIMIT 1`

	cypherActions = `MATCH (p:Player {actor: $player_id})-[:PERFORMED]->(a:Action)
RETURN properties(a) AS props
LIMIT 1`

	cypherUpsertClassification = `MERGE (p:Player {actor: $player_id})
MERGE (c:Classification {type: $label})
MERGE (p)-[r:HAS_CLASSIFICATION]->(c)
ON CREATE SET r.created_at = $now
SET r.updated_at = $now, r.confidence = $confidence, r.reasoning = $reasoning`

	cypherClassifications = `MATCH (p:Player {actor: $player_id})-[r:HAS_CLASSIFICATION]->(c:Classification)
RETURN c.type AS label, r.confidence AS confidence, r.reasoning AS reasoning,
       r.created_at AS created_at, r.updated_at AS updated_at
ORDER BY label`

	cypherUpsertPlayers = `UNWIND $rows AS row
MERGE (p:Player {actor: row.actor})
SET p += row.props`

	cypherUpsertActions = `UNWIND $rows AS row
MERGE (p:Player {actor: row.actor})
MERGE (p)-[:PERFORMED]->(a:Action {actor: row.actor})
SET a += row.props`

	cypherPlayerIDs = `MATCH (p:Player)
RETURN p.actor AS actor
ORDER BY actor`
)

// cypherRunner executes one auto-committed Cypher statement.
type cypherRunner interface {
	Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

type driverRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

func (r driverRunner) Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	res, err := neo4j.ExecuteQuery(ctx, r.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(r.database),
	)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(res.Records))
	for _, rec := range res.Records {
		rows = append(rows, rec.AsMap())
	}
	return rows, nil
}

// Neo4jConfig names the server and credentials.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// Neo4jStore keeps the property graph in Neo4j. Every statement is parameterized.
type Neo4jStore struct {
	runner cypherRunner
	close  func(ctx context.Context) error
	opts   options
	logger logger.Logger
}

// OpenNeo4j connects to cfg.URI and verifies connectivity.
func OpenNeo4j(ctx context.Context, cfg Neo4jConfig, opts ...Option) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver %s: %w", cfg.URI, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, model.Upstream("neo4j connectivity", err)
	}
	s := newNeo4jStore(driverRunner{driver: driver, database: cfg.Database}, opts...)
	s.close = driver.Close
	return s, nil
}

func newNeo4jStore(r cypherRunner, opts ...Option) *Neo4jStore {
	o := newOptions(opts)
	return &Neo4jStore{
		runner: r,
		close:  func(context.Context) error { return nil },
		opts:   o,
		logger: o.logger.Named("repository.neo4j"),
	}
}

// Close releases the driver.
func (s *Neo4jStore) Close() error {
	return s.close(context.Background())
}

// Query runs statement with params.
func (s *Neo4jStore) Query(ctx context.Context, statement string, params map[string]any) ([]map[string]any, error) {
	rows, err := s.runner.Run(ctx, statement, params)
	if err != nil {
		s.logger.Debug(ctx, "cypher statement failed", logger.Error(err))
		return nil, model.Upstream("neo4j query", err)
	}
	return rows, nil
}

func (s *Neo4jStore) first(ctx context.Context, query, playerID string) (map[string]any, error) {
	rows, err := s.Query(ctx, query, map[string]any{"player_id": playerID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	props, _ := rows[0]["props"].(map[string]any)
	return props, nil
}

// Profile returns the profile attributes of playerID.
func (s *Neo4jStore) Profile(ctx context.Context, playerID string) (model.PlayerRecord, error) {
	props, err := s.first(ctx, cypherProfile, playerID)
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
func (s *Neo4jStore) Social(ctx context.Context, playerID string) (model.SocialRecord, error) {
	props, err := s.first(ctx, cypherProfile, playerID)
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
func (s *Neo4jStore) Actions(ctx context.Context, playerID string) (model.ActionRecord, error) {
	props, err := s.first(ctx, cypherActions, playerID)
	if err != nil {
		return model.ActionRecord{}, fmt.Errorf("actions %s: %w", playerID, err)
	}
	delete(props, "actor")
	rec := model.ActionRecord{PlayerID: playerID, Counters: numbers(props)}
	if rec.Empty() {
		return model.ActionRecord{}, fmt.Errorf("actions %s: %w", playerID, ErrNotFound)
	}
	return rec, nil
}

// UpsertClassification merges the label node and the player's edge to it.
func (s *Neo4jStore) UpsertClassification(ctx context.Context, playerID string, v model.Verdict) error {
	var confidence any
	if v.Confidence != nil {
		confidence = *v.Confidence
	}
	_, err := s.Query(ctx, cypherUpsertClassification, map[string]any{
		"player_id":  playerID,
		"label":      v.Label,
		"confidence": confidence,
		"reasoning":  v.Reasoning,
		"now":        s.opts.now().UTC().Format(timeLayout),
	})
	return err
}

// Classifications lists the player's classification edges.
func (s *Neo4jStore) Classifications(ctx context.Context, playerID string) ([]Classification, error) {
	rows, err := s.Query(ctx, cypherClassifications, map[string]any{"player_id": playerID})
	if err != nil {
		return nil, err
	}
	out := make([]Classification, 0, len(rows))
	for _, row := range rows {
		c := Classification{}
		c.Label, _ = row["label"].(string)
		c.Reasoning, _ = row["reasoning"].(string)
		if f, ok := row["confidence"].(float64); ok {
			c.Confidence = model.Float64Ptr(f)
		}
		if ts, ok := row["created_at"].(string); ok {
			c.CreatedAt, _ = time.Parse(timeLayout, ts)
		}
		if ts, ok := row["updated_at"].(string); ok {
			c.UpdatedAt, _ = time.Parse(timeLayout, ts)
		}
		out = append(out, c)
	}
	return out, nil
}

// UpsertPlayers merges profile attributes into Player nodes.
func (s *Neo4jStore) UpsertPlayers(ctx context.Context, players []model.PlayerRecord) error {
	rows := make([]any, 0, len(players))
	for _, p := range players {
		rows = append(rows, map[string]any{"actor": p.ID, "props": floatProps(p.Attributes)})
	}
	_, err := s.Query(ctx, cypherUpsertPlayers, map[string]any{"rows": rows})
	return err
}

// UpsertActions merges one Action node per player and its PERFORMED edge.
func (s *Neo4jStore) UpsertActions(ctx context.Context, actions []model.ActionRecord) error {
	rows := make([]any, 0, len(actions))
	for _, a := range actions {
		rows = append(rows, map[string]any{"actor": a.PlayerID, "props": floatProps(a.Counters)})
	}
	_, err := s.Query(ctx, cypherUpsertActions, map[string]any{"rows": rows})
	return err
}

// UpsertSocial sets social diversity on Player nodes.
func (s *Neo4jStore) UpsertSocial(ctx context.Context, social []model.SocialRecord) error {
	rows := make([]any, 0, len(social))
	for _, r := range social {
		rows = append(rows, map[string]any{"actor": r.PlayerID, "props": socialProps(r)})
	}
	_, err := s.Query(ctx, cypherUpsertPlayers, map[string]any{"rows": rows})
	return err
}

// PlayerIDs lists Player keys ordered by id.
func (s *Neo4jStore) PlayerIDs(ctx context.Context) ([]string, error) {
	rows, err := s.Query(ctx, cypherPlayerIDs, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if id, ok := row["actor"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
