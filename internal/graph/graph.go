package graph

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/danielpatrickdp/relgraph-tagger/internal/vocab"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS discourse_edges (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    dialogue_id  TEXT NOT NULL,
    source_turn  INTEGER NOT NULL,
    target_turn  INTEGER NOT NULL,
    relation     TEXT NOT NULL,
    created_at   TEXT NOT NULL,
    UNIQUE(dialogue_id, source_turn, target_turn)
);
CREATE INDEX IF NOT EXISTS idx_discourse_dialogue ON discourse_edges(dialogue_id);
`

// #endregion schema

// #region types
// Edge is a discourse link from an earlier turn to the turn that responds to it.
type Edge struct {
	Source   int    `json:"source"`
	Target   int    `json:"target"`
	Relation string `json:"relation"`
}

// Adjacency holds the three per-turn adjacency families of one dialogue.
// Every family has one row per turn and one column per turn.
type Adjacency struct {
	Local      [][]int
	Full       [][]int
	ByRelation [][]int
}

// Store persists discourse edges per dialogue.
type Store struct {
	db *sql.DB
}

// #endregion types

// #region build
// BuildAdjacency derives the adjacency families of a dialogue with turns turns.
// Local marks each turn and its direct discourse neighbours in both directions.
// Full marks every turn up to and including the row's own. ByRelation stores
// the 1-based relation id of an edge in the row of its target turn.
func BuildAdjacency(turns int, edges []Edge, relations vocab.Indexer) (Adjacency, error) {
	adj := Adjacency{
		Local:      square(turns),
		Full:       square(turns),
		ByRelation: square(turns),
	}
	for i := 0; i < turns; i++ {
		adj.Local[i][i] = 1
		for j := 0; j <= i; j++ {
			adj.Full[i][j] = 1
		}
	}
	for _, e := range edges {
		if e.Source < 0 || e.Source >= turns || e.Target < 0 || e.Target >= turns {
			return Adjacency{}, fmt.Errorf("edge %d->%d outside %d turns", e.Source, e.Target, turns)
		}
		id, err := relations.Index(e.Relation)
		if err != nil {
			return Adjacency{}, fmt.Errorf("relation of edge %d->%d: %w", e.Source, e.Target, err)
		}
		adj.Local[e.Target][e.Source] = 1
		adj.Local[e.Source][e.Target] = 1
		adj.ByRelation[e.Target][e.Source] = id + 1
	}
	return adj, nil
}

func square(n int) [][]int {
	out := make([][]int, n)
	for i := range out {
		out[i] = make([]int, n)
	}
	return out
}

// #endregion build

// #region constructor
// NewStore creates tables and returns a Store.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("graph schema: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region add-edge
// AddEdge inserts an edge. An edge between the same turns of the same dialogue
// is ignored.
func (s *Store) AddEdge(dialogueID string, e Edge) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO discourse_edges (dialogue_id, source_turn, target_turn, relation, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		dialogueID, e.Source, e.Target, e.Relation, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// SaveDialogue replaces every stored edge of a dialogue.
func (s *Store) SaveDialogue(dialogueID string, edges []Edge) error {
	if err := s.SeverDialogue(dialogueID); err != nil {
		return fmt.Errorf("clear dialogue %s: %w", dialogueID, err)
	}
	for _, e := range edges {
		if err := s.AddEdge(dialogueID, e); err != nil {
			return fmt.Errorf("add edge %d->%d: %w", e.Source, e.Target, err)
		}
	}
	return nil
}

// #endregion add-edge

// #region edges
// Edges returns the edges of a dialogue ordered by target then source turn.
func (s *Store) Edges(dialogueID string) ([]Edge, error) {
	rows, err := s.db.Query(
		`SELECT source_turn, target_turn, relation FROM discourse_edges
		 WHERE dialogue_id = ?
		 ORDER BY target_turn, source_turn`,
		dialogueID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.Source, &e.Target, &e.Relation); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// #endregion edges

// #region thread
// Thread walks from turn back through the turns it responds to, breadth first,
// up to maxDepth hops. The result starts with turn itself.
func (s *Store) Thread(dialogueID string, turn, maxDepth int) ([]int, error) {
	if maxDepth <= 0 {
		maxDepth = 5
	}
	edges, err := s.Edges(dialogueID)
	if err != nil {
		return nil, fmt.Errorf("thread edges: %w", err)
	}
	parents := make(map[int][]int)
	for _, e := range edges {
		parents[e.Target] = append(parents[e.Target], e.Source)
	}

	type queueItem struct {
		turn  int
		depth int
	}
	out := []int{turn}
	visited := map[int]bool{turn: true}
	queue := []queueItem{{turn, 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, p := range parents[cur.turn] {
			if visited[p] {
				continue
			}
			visited[p] = true
			out = append(out, p)
			queue = append(queue, queueItem{p, cur.depth + 1})
		}
	}
	return out, nil
}

// #endregion thread

// #region sever
// SeverDialogue deletes every edge of a dialogue.
func (s *Store) SeverDialogue(dialogueID string) error {
	_, err := s.db.Exec(`DELETE FROM discourse_edges WHERE dialogue_id = ?`, dialogueID)
	return err
}

// #endregion sever
