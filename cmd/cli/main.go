package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"riskscore/adapters/excel"
	"riskscore/app"
	"riskscore/domain/credit"
	"riskscore/domain/report"
	"riskscore/internal/config"
	"riskscore/internal/container"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "riskscore-cli",
		Short: "Score, explain and export credit-risk analyses from the command line",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil {
				log.Println("No .env file found, using system environment variables")
			}
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newScoreCmd(),
		newExportCmd(),
		newBatchCmd(),
	)
	return rootCmd
}

// bindAttributeFlags registers one flag per client attribute, defaulting to
// the dashboard's opening profile.
func bindAttributeFlags(cmd *cobra.Command, a *credit.ClientAttributes) {
	*a = credit.DefaultAttributes()
	f := cmd.Flags()
	f.IntVar(&a.Age, "age", a.Age, "Client age in years (18-100)")
	f.Int64Var(&a.MonthlyIncome, "monthly-income", a.MonthlyIncome, "Monthly income in FCFA")
	f.IntVar(&a.Dependents, "dependents", a.Dependents, "Number of dependents (0-10)")
	f.IntVar(&a.OpenCreditLines, "open-credit-lines", a.OpenCreditLines, "Open credit lines and loans (0-30)")
	f.IntVar(&a.RealEstateLoans, "real-estate-loans", a.RealEstateLoans, "Real estate loans or lines (0-10)")
	f.Float64Var(&a.DebtRatio, "debt-ratio", a.DebtRatio, "Debt ratio (0-10)")
	f.Float64Var(&a.RevolvingUtilizationPct, "revolving", a.RevolvingUtilizationPct, "Revolving credit utilization in percent (0-100)")
	f.IntVar(&a.Late30to59, "late-30", a.Late30to59, "Payments 30-59 days late (0-10)")
	f.IntVar(&a.Late60to89, "late-60", a.Late60to89, "Payments 60-89 days late (0-10)")
	f.IntVar(&a.Late90Plus, "late-90", a.Late90Plus, "Payments 90+ days late (0-10)")
}

func newContainer() (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return container.New(cfg)
}

func newScoreCmd() *cobra.Command {
	var attrs credit.ClientAttributes
	var lang string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one client and print the automatic report",
		Long: `Score one client profile with the configured model and print the probability
of default, the ranked feature attributions and the localized report.

Example: riskscore-cli score --age 24 --revolving 95 --late-90 2 --lang en`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd.Context(), cmd.OutOrStdout(), attrs, report.ParseLanguage(lang), asJSON)
		},
	}

	bindAttributeFlags(cmd, &attrs)
	cmd.Flags().StringVar(&lang, "lang", "fr", "Report language (fr|en)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the analysis as JSON")
	return cmd
}

func runScore(ctx context.Context, out io.Writer, attrs credit.ClientAttributes, lang report.Language, asJSON bool) error {
	c, err := newContainer()
	if err != nil {
		return err
	}
	defer c.Shutdown(ctx)

	a, err := c.Analysis.Analyze(ctx, attrs, lang)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"id":              a.ID,
			"probability":     a.Result.Probability,
			"predicted_class": a.Result.PredictedClass,
			"expected_value":  a.ExpectedValue,
			"factors":         a.Ranked,
			"report":          a.Report,
		})
	}

	cat := report.CatalogFor(lang)
	fmt.Fprintln(out, a.Report)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s: %s (%s)\n", cat.UI.DefaultProb, report.FormatPercent(a.Result.Probability, 1), cat.Decision(a.Result.PredictedClass.IsHigh()))
	fmt.Fprintf(out, "%s: %+.4f\n", cat.UI.ExpectedValue, a.ExpectedValue)
	for _, e := range a.Ranked {
		fmt.Fprintf(out, "  %-45s %+.4f  (%s)\n", cat.DisplayName(e.Feature), e.Contribution, report.FormatDecimal(e.Value))
	}
	return nil
}

func newExportCmd() *cobra.Command {
	var attrs credit.ClientAttributes
	var lang, format, outDir string
	var withAdvisory bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the PDF report and/or the XLSX workbook for one client",
		Long: `Export one client analysis to disk using the dashboard's file names.

With --advisory the configured language model writes the PDF body; when it is
unavailable the automatic report is used instead.

Example: riskscore-cli export --age 40 --format both --out ./exports`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), cmd.OutOrStdout(), attrs, report.ParseLanguage(lang), format, outDir, withAdvisory)
		},
	}

	bindAttributeFlags(cmd, &attrs)
	cmd.Flags().StringVar(&lang, "lang", "fr", "Report language (fr|en)")
	cmd.Flags().StringVar(&format, "format", "both", "Export format (pdf|xlsx|both)")
	cmd.Flags().StringVar(&outDir, "out", ".", "Output directory")
	cmd.Flags().BoolVar(&withAdvisory, "advisory", false, "Use the language model recommendation as PDF body")
	return cmd
}

func runExport(ctx context.Context, out io.Writer, attrs credit.ClientAttributes, lang report.Language, format, outDir string, withAdvisory bool) error {
	format = strings.ToLower(format)
	if format != app.FormatPDF && format != app.FormatXLSX && format != "both" {
		return fmt.Errorf("unknown format %q", format)
	}

	c, err := newContainer()
	if err != nil {
		return err
	}
	defer c.Shutdown(ctx)

	a, err := c.Analysis.Analyze(ctx, attrs, lang)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	var failed []string
	if format != app.FormatXLSX {
		advisory := ""
		if withAdvisory {
			advisory, err = c.Advisory.Generate(ctx, attrs, a.Result, lang)
			if err != nil {
				log.Printf("[Export] advisory unavailable, using automatic report: %v", err)
			}
		}
		if err := writeArtifact(out, outDir, func() (*app.Artifact, error) { return c.Exports.PDF(a, advisory) }); err != nil {
			failed = append(failed, err.Error())
		}
	}
	if format != app.FormatPDF {
		if err := writeArtifact(out, outDir, func() (*app.Artifact, error) { return c.Exports.XLSX(a) }); err != nil {
			failed = append(failed, err.Error())
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("export failed: %s", strings.Join(failed, "; "))
	}
	return nil
}

func writeArtifact(out io.Writer, dir string, render func() (*app.Artifact, error)) error {
	art, err := render()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, art.Filename)
	if err := os.WriteFile(path, art.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintln(out, path)
	return nil
}

func newBatchCmd() *cobra.Command {
	var lang, out string

	cmd := &cobra.Command{
		Use:   "batch [clients.xlsx|clients.csv]",
		Short: "Score a sheet of clients and write a scored workbook",
		Long: `Score every row of a client sheet. The header row must name the ten attribute
columns: ` + strings.Join(excel.ClientColumns, ", ") + `.

Invalid rows are reported in the output sheet and do not stop the batch.

Example: riskscore-cli batch clients.xlsx --out scored.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), cmd.OutOrStdout(), args[0], out, report.ParseLanguage(lang))
		},
	}

	cmd.Flags().StringVar(&lang, "lang", "fr", "Decision language (fr|en)")
	cmd.Flags().StringVar(&out, "out", "scored_clients.xlsx", "Output workbook")
	return cmd
}

func runBatch(ctx context.Context, stdout io.Writer, input, out string, lang report.Language) error {
	data, err := excel.NewDataReader(input).ReadData()
	if err != nil {
		return err
	}
	rows, err := excel.ParseClients(data)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}

	c, err := newContainer()
	if err != nil {
		return err
	}
	defer c.Shutdown(ctx)

	items := make([]app.BatchItem, len(rows))
	for i, r := range rows {
		items[i] = app.BatchItem{Line: r.Line, Attrs: r.Attrs, Err: r.Err}
	}
	results, summary, err := c.Batch.Score(ctx, items)
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	defer f.Close()

	headers := append(append([]string(nil), excel.ClientColumns...), app.BatchColumns...)
	dist := summary.Probabilities
	err = excel.WriteTables(f,
		excel.Table{Sheet: "Scores", Headers: headers, Rows: app.BatchRows(results, lang)},
		excel.Table{
			Sheet:   "Portfolio",
			Headers: []string{"scored", "failed", "high_risk", "mean", "median", "p90", "max", "outliers"},
			Rows:    [][]any{{summary.Scored, summary.Failed, summary.HighRisk, dist.Mean, dist.Median, dist.P90, dist.Max, dist.Outliers}},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
