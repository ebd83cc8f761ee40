package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pkorolev/factscan/internal/connector"
	"github.com/pkorolev/factscan/internal/model"
	"github.com/pkorolev/factscan/internal/query"
	"github.com/spf13/cobra"
)

var (
	topK         int
	threshold    float64
	jsonOut      bool
	queryTimeout time.Duration
)

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query <claim>",
	Short: "Check a claim against the indexed fact-checks",
	Long: `Query embeds the claim and searches the vector index for semantically
similar fact-checks. When any match reaches the score threshold the
decision is matched_fact; otherwise no_match, with the nearest
candidates listed for inspection.

Example:
  factscan query "Drinking bleach cures covid"
  factscan query "The moon landing was staged" --top-k 10 --threshold 0.8
  factscan query "..." --json`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().IntVar(&topK, "top-k", 0, "number of nearest fact-checks to retrieve (defaults to the configured top_k)")
	queryCmd.Flags().Float64Var(&threshold, "threshold", 0, "similarity score required for a match, in [0,1] (defaults to the configured score_threshold)")
	queryCmd.Flags().BoolVar(&jsonOut, "json", false, "print the result as JSON")
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", 30*time.Second, "query timeout")
}

func runQuery(cmd *cobra.Command, args []string) error {
	claim := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyQueryDefaults(cmd, cfg)

	store := buildCache(cfg)
	provider, ix, err := openIndex(cfg, store)
	if err != nil {
		return err
	}
	if ix.Len() == 0 {
		fmt.Fprintf(os.Stderr, "Warning: the index is empty; run 'factscan ingest' first\n")
	}

	var augmenter query.Augmenter
	if google := connector.NewGoogleFactCheck(cfg.Google, cfg.HTTP.Timeout); google.Enabled() {
		augmenter = google
	}

	engine := query.New(provider, ix, augmenter, verbose)
	result, err := engine.Query(ctx, claim, topK, threshold)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if jsonOut || cfg.Output.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printResult(claim, result, threshold)
	return nil
}

// applyQueryDefaults fills flags the user did not set from the
// configuration. Values given explicitly pass through untouched, even
// out-of-range ones, so the engine's validation rejects them instead of
// a sentinel check silently swallowing them.
func applyQueryDefaults(cmd *cobra.Command, cfg *model.Config) {
	if !cmd.Flags().Changed("top-k") {
		topK = cfg.Query.TopK
	}
	if !cmd.Flags().Changed("threshold") {
		threshold = cfg.Query.ScoreThreshold
	}
}

func printResult(claim string, result model.QueryResult, threshold float64) {
	fmt.Printf("Claim: %s\n", claim)
	switch result.Decision {
	case model.DecisionMatched:
		fmt.Printf("Decision: matched_fact (%d fact-checks at or above %.2f)\n\n", len(result.Matches), threshold)
	default:
		fmt.Printf("Decision: no_match (nearest %d candidates below %.2f)\n\n", len(result.Matches), threshold)
	}
	for i, m := range result.Matches {
		fmt.Printf("%2d. [%.3f] %s\n", i+1, m.Score, m.Title)
		if m.Verdict != "" {
			fmt.Printf("    Verdict: %s\n", m.Verdict)
		}
		if m.URL != "" {
			fmt.Printf("    %s\n", m.URL)
		}
	}
	if len(result.Matches) == 0 {
		fmt.Println("No candidates.")
	}
}
