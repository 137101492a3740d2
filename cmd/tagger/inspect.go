package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/relgraph-tagger/internal/graph"
	"github.com/danielpatrickdp/relgraph-tagger/internal/logging"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show logged steps and stored discourse threads",
	Long: `List the steps recorded in the step log, or walk the stored discourse
thread of one dialogue turn.

Examples:
  tagger inspect --last 10
  tagger inspect --run 3f2a...
  tagger inspect --dialogue d1 --turn 4`,
	RunE: runInspect,
}

var (
	inspectRun      string
	inspectLast     int
	inspectDialogue string
	inspectTurn     int
	inspectDepth    int
)

func init() {
	inspectCmd.Flags().StringVar(&inspectRun, "run", "", "show the steps of one run")
	inspectCmd.Flags().IntVar(&inspectLast, "last", 20, "show N most recent steps")
	inspectCmd.Flags().StringVar(&inspectDialogue, "dialogue", "", "show the discourse edges of a dialogue")
	inspectCmd.Flags().IntVar(&inspectTurn, "turn", -1, "walk the thread leading to this turn")
	inspectCmd.Flags().IntVar(&inspectDepth, "depth", 5, "maximum thread depth")
}

// #region inspect
func runInspect(_ *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := logging.OpenStepLog(cfg.Storage.DB)
	if err != nil {
		return fmt.Errorf("open step log: %w", err)
	}
	defer db.Close()

	if inspectDialogue != "" {
		store, err := graph.NewStore(db)
		if err != nil {
			return err
		}
		return runThreadMode(store)
	}
	return runStepMode(db)
}

func runStepMode(db *sql.DB) error {
	steps, err := logging.ListSteps(db, inspectRun, inspectLast)
	if err != nil {
		return err
	}
	if outputJSON {
		return writeJSON(steps)
	}
	if len(steps) == 0 {
		fmt.Println("no steps logged")
		return nil
	}
	fmt.Printf("%-36s %-5s %-8s %-5s %-5s %-6s %-10s\n", "RUN", "STEP", "MODE", "DIALS", "TURNS", "PASSES", "TOTAL")
	for _, e := range steps {
		total := "-"
		if e.Mode == "measure" {
			total = fmt.Sprintf("%.4f", e.Total)
		}
		fmt.Printf("%-36s %-5d %-8s %-5d %-5d %-6d %-10s\n", e.RunID, e.Step, e.Mode, e.Dialogues, e.Turns, e.Passes, total)
	}
	return nil
}

func runThreadMode(store *graph.Store) error {
	if inspectTurn < 0 {
		edges, err := store.Edges(inspectDialogue)
		if err != nil {
			return err
		}
		if outputJSON {
			return writeJSON(edges)
		}
		for _, e := range edges {
			fmt.Printf("%d -> %d  %s\n", e.Source, e.Target, e.Relation)
		}
		return nil
	}
	thread, err := store.Thread(inspectDialogue, inspectTurn, inspectDepth)
	if err != nil {
		return err
	}
	if outputJSON {
		return writeJSON(thread)
	}
	fmt.Printf("%s turn %d thread: %v\n", inspectDialogue, inspectTurn, thread)
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion inspect
