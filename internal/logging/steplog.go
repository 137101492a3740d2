package logging

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region open
// OpenStepLog opens (or creates) a sqlite database holding the step log.
func OpenStepLog(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open step log: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate step log: %w", err)
	}
	return db, nil
}

// NewRunID returns a fresh identifier grouping the steps of one run.
func NewRunID() string {
	return uuid.New().String()
}

// #endregion open

// #region log-step
// LogStep writes a step entry to the step_log table.
func LogStep(db *sql.DB, entry StepEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var lossArgs []interface{}
	if entry.Mode == "predict" {
		lossArgs = []interface{}{nil, nil, nil, nil, nil}
	} else {
		lossArgs = []interface{}{entry.SentCE, entry.SentMargin, entry.ActCE, entry.ActMargin, entry.Total}
	}

	args := []interface{}{entry.RunID, entry.Step, entry.Mode, entry.Dialogues, entry.Turns, entry.Passes}
	args = append(args, lossArgs...)
	args = append(args, nullIfEmpty(entry.Note), entry.CreatedAt.Format(time.RFC3339Nano))

	_, err := db.Exec(
		`INSERT INTO step_log (run_id, step, mode, dialogues, turns, passes,
		 sent_ce, sent_margin, act_ce, act_margin, total, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("log step: %w", err)
	}
	return nil
}

// #endregion log-step

// #region list-steps
// ListSteps returns the steps of a run in step order. An empty runID lists the
// most recent steps across all runs, newest first.
func ListSteps(db *sql.DB, runID string, limit int) ([]StepEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT run_id, step, mode, dialogues, turns, passes,
		sent_ce, sent_margin, act_ce, act_margin, total, note, created_at
		FROM step_log`
	var rows *sql.Rows
	var err error
	if runID != "" {
		rows, err = db.Query(query+` WHERE run_id = ? ORDER BY step LIMIT ?`, runID, limit)
	} else {
		rows, err = db.Query(query+` ORDER BY id DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var entries []StepEntry
	for rows.Next() {
		var e StepEntry
		var sentCE, sentMargin, actCE, actMargin, total sql.NullFloat64
		var note sql.NullString
		var createdStr string
		if err := rows.Scan(&e.RunID, &e.Step, &e.Mode, &e.Dialogues, &e.Turns, &e.Passes,
			&sentCE, &sentMargin, &actCE, &actMargin, &total, &note, &createdStr); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		e.SentCE, e.SentMargin = sentCE.Float64, sentMargin.Float64
		e.ActCE, e.ActMargin, e.Total = actCE.Float64, actMargin.Float64, total.Float64
		e.Note = note.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion list-steps

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
