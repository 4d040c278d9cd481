// internal/cli/cli.go
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"loan-underwriting/internal/audit"
	"loan-underwriting/internal/common/logger"
	"loan-underwriting/internal/common/validation"
	"loan-underwriting/internal/models"
	"loan-underwriting/internal/underwriting/engine"
	"loan-underwriting/internal/underwriting/executor"
	"loan-underwriting/internal/underwriting/scheduler"
	"loan-underwriting/internal/underwriting/taskgraph"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the underwrite command tree writing results to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "underwrite",
		Short:         "Build and run loan underwriting workflows locally",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the task graph for a loan type in execution order",
		RunE: func(cmd *cobra.Command, args []string) error {
			loanType, err := cmd.Flags().GetString("type")
			if err != nil {
				return err
			}
			return printGraph(cmd.OutOrStdout(), models.LoanType(loanType))
		},
	}
	graphCmd.Flags().String("type", "", "loan type ("+strings.Join(loanTypeNames(), ", ")+")")
	_ = graphCmd.MarkFlagRequired("type")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Underwrite a transaction read from a JSON file with simulated services",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			concurrency, _ := cmd.Flags().GetInt("concurrency")
			deadline, _ := cmd.Flags().GetDuration("deadline")
			level, _ := cmd.Flags().GetString("log-level")
			humanDone, _ := cmd.Flags().GetStringSlice("completed")

			raw, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			tx, err := validation.DecodeTransaction(raw)
			if err != nil {
				return err
			}

			log := logger.NewZapAdapter(logger.New(level, "console"))
			return runTransaction(cmd.Context(), cmd.OutOrStdout(), tx, concurrency, deadline, humanDone, log)
		},
	}
	runCmd.Flags().String("file", "", "transaction JSON file, - for stdin")
	runCmd.Flags().Int("concurrency", 4, "maximum tasks executed at once")
	runCmd.Flags().Duration("deadline", 0, "overall run deadline, 0 for none")
	runCmd.Flags().StringSlice("completed", nil, "human task ids already signed off")
	_ = runCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(graphCmd, runCmd)
	return rootCmd
}

func loanTypeNames() []string {
	out := make([]string, len(models.LoanTypes))
	for i, t := range models.LoanTypes {
		out[i] = string(t)
	}
	return out
}

func printGraph(out io.Writer, loanType models.LoanType) error {
	tasks, err := taskgraph.Build(models.TransactionProfile{Type: loanType})
	if err != nil {
		return err
	}
	order, err := taskgraph.Validate(tasks)
	if err != nil {
		return err
	}

	byID := make(map[string]models.UnderwritingTask, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	fmt.Fprintf(out, "Task graph for %s loans (%d tasks)\n", loanType, len(tasks))
	for i, id := range order {
		t := byID[id]
		mode := "automated"
		if !t.Automatable() {
			mode = "human"
		}
		line := fmt.Sprintf("%2d. %-28s %-13s %-9s", i+1, t.ID, t.Category, mode)
		if len(t.Dependencies) > 0 {
			line += " after " + strings.Join(t.Dependencies, ", ")
		}
		fmt.Fprintln(out, strings.TrimRight(line, " "))
	}
	return nil
}

func readInput(stdin io.Reader, file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(stdin)
	}
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read transaction file: %w", err)
	}
	return raw, nil
}

type runOutput struct {
	RunID      string                       `json:"runId"`
	Cancelled  bool                         `json:"cancelled"`
	Statuses   map[string]models.TaskStatus `json:"statuses"`
	HumanTasks []string                     `json:"humanTasks,omitempty"`
	Decision   *models.UnderwritingDecision `json:"decision,omitempty"`
	DurationMs int64                        `json:"durationMs"`
}

func runTransaction(ctx context.Context, out io.Writer, tx models.TransactionProfile, concurrency int, deadline time.Duration, humanDone []string, log logger.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := scheduler.DefaultConfig()
	cfg.ConcurrencyLimit = concurrency
	cfg.Deadline = deadline

	eng := engine.New(cfg, engine.Dependencies{
		Executor: executor.New(nil, executor.Ports{}, log),
		Emitter:  audit.NewEmitter(audit.NewLogSink(log), log),
	}, log)

	outcome, runErr := eng.UnderwriteTransaction(ctx, tx, engine.WithCompletedHumanTasks(humanDone...))
	if outcome == nil {
		return runErr
	}

	result := runOutput{
		RunID:      outcome.Report.RunID,
		Cancelled:  outcome.Report.Cancelled,
		Statuses:   outcome.Report.Statuses,
		Decision:   outcome.Decision,
		DurationMs: outcome.Report.Duration.Milliseconds(),
	}
	for id, r := range outcome.Report.Results {
		if r.Status == models.ResultStatusRequiresHuman {
			result.HumanTasks = append(result.HumanTasks, id)
		}
	}
	sort.Strings(result.HumanTasks)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	return runErr
}
