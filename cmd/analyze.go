package cmd

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/spf13/cobra"

	"github.com/pable/go-rollcorr/internal/model"
	"github.com/pable/go-rollcorr/internal/report"
	"github.com/pable/go-rollcorr/internal/storage"
)

const analyzeSystemPrompt = `You are a baseball analytics assistant. You are given the correlation table
of a rolling-window study and a question from the analyst.

How the table was built:
- For every batter with enough plate appearances (PA), and for every window
  size N, the batter's AVG, OBP and SLG over the previous N PA were paired with
  the outcome of the next PA.
- avg_corr: Pearson r between rolling AVG and "next PA is a hit" (0/1).
- obp_corr: Pearson r between rolling OBP and "next PA reaches base" (0/1).
- slg_corr: Pearson r between rolling SLG and total bases of the next PA (0-4).
- Rolling rates here are per PA, not per at-bat. null means undefined (no variance).

Rules:
- Answer ONLY from the data provided. Never invent statistics.
- Always cite specific windows and coefficients when making a claim.
- Correlations with a single next PA are small by nature; judge them relative to each other.
- If the data is insufficient to answer confidently, say so explicitly.
- Be concise.`

var analyzeCmd = &cobra.Command{
	Use:   "analyze <run-prefix> <question>",
	Short: "AI-assisted reading of a recorded correlation table (requires ANTHROPIC_API_KEY)",
	Args:  cobra.ExactArgs(2),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("model", "claude-haiku-4-5-20251001", "Anthropic model to use")
	analyzeCmd.Flags().String("api-key", "", "Anthropic API key (falls back to $ANTHROPIC_API_KEY)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	db, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	run, err := db.GetRunByPrefix(args[0])
	if err != nil {
		return fmt.Errorf("find run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("no run found with id prefix %q", args[0])
	}
	rows, err := db.GetCorrelations(run.ID)
	if err != nil {
		return fmt.Errorf("query correlations: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("run %s has no correlation table", run.ID)
	}

	contextJSON, err := buildRunContext(*run, rows)
	if err != nil {
		return fmt.Errorf("build context: %w", err)
	}
	return callAnthropic(cmd.Context(), cfg.Analyze.APIKey, cfg.Analyze.Model, contextJSON, args[1])
}

// buildRunContext serialises a run and its correlation table into compact JSON.
func buildRunContext(run model.Run, rows []model.CorrelationRow) (string, error) {
	type rowEntry struct {
		Window int      `json:"window"`
		AVG    *float64 `json:"avg_corr"`
		OBP    *float64 `json:"obp_corr"`
		SLG    *float64 `json:"slg_corr"`
	}
	table := make([]rowEntry, 0, len(rows))
	for _, r := range rows {
		table = append(table, rowEntry{
			Window: r.Window,
			AVG:    round4(r.AvgCorr),
			OBP:    round4(r.OBPCorr),
			SLG:    round4(r.SLGCorr),
		})
	}

	peaks := make(map[string]any, 3)
	for _, p := range report.PeakWindows(rows) {
		if !p.Found {
			peaks[strings.ToLower(p.Metric)] = nil
			continue
		}
		peaks[strings.ToLower(p.Metric)] = map[string]any{
			"window": p.Window,
			"r":      math.Round(p.Corr*1e4) / 1e4,
		}
	}

	doc := map[string]any{
		"subject":             "rolling_window_correlation",
		"source":              run.Source,
		"min_timeline_length": run.MinLength,
		"max_window":          run.MaxWindow,
		"players_seen":        run.PlayersSeen,
		"players_qualified":   run.PlayersQualified,
		"observations":        run.Observations,
		"peaks":               peaks,
		"table":               table,
	}
	b, err := json.Marshal(doc)
	return string(b), err
}

func round4(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	r := math.Round(v.Float64*1e4) / 1e4
	return &r
}

// callAnthropic streams a response from the Anthropic API and prints it to stdout.
func callAnthropic(ctx context.Context, apiKey, modelID, dataJSON, question string) error {
	if apiKey == "" {
		return fmt.Errorf("no API key: set ANTHROPIC_API_KEY or use --api-key")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	userMsg := fmt.Sprintf("DATA:\n%s\n\nQUESTION: %s", dataJSON, question)

	fmt.Fprintln(os.Stdout, "\n─── AI Analysis ─────────────────────────────────────")

	stream := client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(modelID),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: analyzeSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userMsg)),
		},
	})

	for stream.Next() {
		evt := stream.Current()
		if evt.Type == "content_block_delta" {
			delta := evt.AsContentBlockDelta()
			if delta.Delta.Type == "text_delta" {
				fmt.Fprint(os.Stdout, delta.Delta.AsTextDelta().Text)
			}
		}
	}
	fmt.Fprintln(os.Stdout, "\n─────────────────────────────────────────────────────")

	if err := stream.Err(); err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "401") || strings.Contains(errStr, "authentication") {
			return fmt.Errorf("API authentication failed, check your API key")
		}
		return fmt.Errorf("streaming error: %w", err)
	}
	return nil
}
