package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"FinanceCollector/internal/domain"
	"FinanceCollector/internal/ports"
	"FinanceCollector/internal/retry"
)

const defaultAnalysisRows = 30

// AnalysisError is the terminal failure of a generation request. Its message is
// safe to show to end users.
type AnalysisError struct {
	Err error
}

func (e *AnalysisError) Error() string {
	return retry.UserMessage(e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Analyst asks the text generator for a report over the collected dataset.
type Analyst struct {
	generator ports.TextGenerator
	policy    retry.Policy
	rows      int
	logger    *slog.Logger
}

// NewAnalyst builds an analyst; rows <= 0 uses the top 30 rows.
func NewAnalyst(generator ports.TextGenerator, policy retry.Policy, rows int, logger *slog.Logger) *Analyst {
	if rows <= 0 {
		rows = defaultAnalysisRows
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyst{generator: generator, policy: policy, rows: rows, logger: logger}
}

// Analyze renders the dataset into a prompt and returns the generated report.
func (a *Analyst) Analyze(ctx context.Context, dataset domain.Dataset) (string, error) {
	if a.generator == nil {
		return "", fmt.Errorf("analyst misconfigured: no text generator")
	}
	if len(dataset.Rows) == 0 {
		return "", fmt.Errorf("nothing to analyze: dataset %s is empty", dataset.RunID)
	}

	prompt := BuildPrompt(dataset, a.rows)
	attempt := 0
	report, err := retry.Do(ctx, a.policy, func(ctx context.Context) (string, error) {
		attempt++
		out, err := a.generator.Generate(ctx, prompt)
		if err != nil && retry.IsThrottle(err) {
			a.logger.Warn("text generation throttled", "attempt", attempt, "error", err)
		}
		return out, err
	})
	if err != nil {
		return "", &AnalysisError{Err: err}
	}
	return report, nil
}

// BuildPrompt renders the first rows of dataset as a compact table with instructions.
func BuildPrompt(dataset domain.Dataset, rows int) string {
	var b strings.Builder
	b.WriteString("You are a quantitative equity analyst. Below are financial figures for listed Korean companies")
	fmt.Fprintf(&b, " collected on %s.\n\n", dataset.Day)
	b.WriteString("Notes:\n")
	b.WriteString("- data_basis names the filing behind the figures. Q1, H1-cumulative and Q3-cumulative filings are\n")
	b.WriteString("  cumulative from the start of the fiscal year; compare them with the annualized columns, not with annual figures.\n")
	b.WriteString("- A value of 0 may mean the figure was not reported. Ignore such values and rows marked N/A.\n")
	b.WriteString("- Growth columns are year-over-year percentages.\n")
	b.WriteString("- ma5_gap and ma20_gap are the percent distance of the price from its 5 and 20 day moving averages.\n\n")
	b.WriteString("Write a report with: 1) a table of five picks with rank, name, sector, reason and investment point;\n")
	b.WriteString("2) sector trends, risks and opportunities; 3) a concluding strategy.\n\n[DATA]\n")

	columns := []string{
		"name", "code", "sector", "data_basis", "revenue", "operating_income", "net_income",
		"revenue_growth", "operating_income_growth", "net_income_growth",
		"annualized_revenue", "annualized_operating_income", "per", "pbr", "roe", "debt_ratio",
		"price_position_52w", "ma5_gap", "ma20_gap",
	}

	tw := tabwriter.NewWriter(&b, 0, 0, 1, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for i, row := range dataset.Rows {
		if i >= rows {
			break
		}
		record := map[string]string{}
		for _, f := range row.Record() {
			record[f.Name] = f.Value
		}
		values := make([]string, len(columns))
		for j, c := range columns {
			values[j] = record[c]
		}
		fmt.Fprintln(tw, strings.Join(values, "\t"))
	}
	tw.Flush()

	return b.String()
}
