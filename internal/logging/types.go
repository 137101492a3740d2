package logging

import "time"

// #region step-entry
// StepEntry is a single row in the step_log table: one predict or measure call.
type StepEntry struct {
	RunID      string
	Step       int
	Mode       string // "measure" | "predict"
	Dialogues  int
	Turns      int
	Passes     int
	SentCE     float64
	SentMargin float64
	ActCE      float64
	ActMargin  float64
	Total      float64
	Note       string
	CreatedAt  time.Time
}

// #endregion step-entry

// #region schema
// Schema creates the step_log table. Safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS step_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	step        INTEGER NOT NULL,
	mode        TEXT NOT NULL,
	dialogues   INTEGER NOT NULL,
	turns       INTEGER NOT NULL,
	passes      INTEGER NOT NULL,
	sent_ce     REAL,
	sent_margin REAL,
	act_ce      REAL,
	act_margin  REAL,
	total       REAL,
	note        TEXT,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_step_log_run ON step_log(run_id, step);
`

// #endregion schema
