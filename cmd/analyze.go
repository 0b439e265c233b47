package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/mailcheck/internal/analyzer"
	"github.com/sells-group/mailcheck/internal/outcome"
	"github.com/sells-group/mailcheck/internal/tui"
	"github.com/sells-group/mailcheck/pkg/riskscore"
)

var (
	analyzeFile   string
	analyzeFormat string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [text...]",
	Short: "Score an email for phishing risk",
	Long:  "Sends email text to the analysis service and prints the verdict. Text comes from the arguments, --file, or stdin.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(analyzeFormat); err != nil {
			return err
		}
		text, err := readEmailText(cmd.InOrStdin(), args, analyzeFile)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env := newAppEnv(cfg)
		st, err := runAnalysis(ctx, env, text, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		if err := writeReport(cmd.OutOrStdout(), analyzeFormat, st); err != nil {
			return err
		}
		if cerr := st.Outcome.Err(); cerr != nil {
			return cerr
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFile, "file", "f", "", "read email text from file")
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "o", "text", "output format: text, json or yaml")
	rootCmd.AddCommand(analyzeCmd)
}

func validateFormat(format string) error {
	switch format {
	case "text", "json", "yaml":
		return nil
	default:
		return eris.Errorf("analyze: unknown format %q", format)
	}
}

// readEmailText takes the arguments, else the file, else stdin.
func readEmailText(stdin io.Reader, args []string, file string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", eris.Wrapf(err, "analyze: read %s", file)
		}
		return string(b), nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", eris.Wrap(err, "analyze: read stdin")
	}
	return string(b), nil
}

// runAnalysis submits text once and waits for a terminal outcome. A spinner
// is drawn on progress while the request is pending, when it is a terminal.
func runAnalysis(ctx context.Context, env *appEnv, text string, progress io.Writer) (analyzer.State, error) {
	done := make(chan analyzer.State, 1)
	a := analyzer.New(env.Loop, env.Risk,
		analyzer.WithMetrics(env.Metrics),
		analyzer.WithListener(func(s analyzer.State) {
			if s.Pending() {
				return
			}
			select {
			case done <- s:
			default:
			}
		}),
	)

	stopLoop := startLoop(env.Loop)
	defer stopLoop()

	spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(progress))
	spin.Suffix = " analyzing..."
	spin.Start()
	defer spin.Stop()

	a.Submit(text)

	select {
	case st := <-done:
		return st, nil
	case <-ctx.Done():
		a.Close()
		return analyzer.State{}, eris.Wrap(ctx.Err(), "analyze: interrupted")
	}
}

// analysisReport is the json and yaml form of a finished analysis.
type analysisReport struct {
	RequestID string                   `json:"requestId,omitempty" yaml:"requestId,omitempty"`
	Result    *riskscore.Result        `json:"result,omitempty" yaml:"result,omitempty"`
	Severity  string                   `json:"severity,omitempty" yaml:"severity,omitempty"`
	Error     *outcome.ClassifiedError `json:"error,omitempty" yaml:"error,omitempty"`
}

func newAnalysisReport(st analyzer.State) analysisReport {
	r := analysisReport{RequestID: st.RequestID, Error: st.Outcome.Err()}
	if res, ok := st.Outcome.Value(); ok {
		r.Result = &res
		r.Severity = analyzer.SeverityOf(res.RiskScore).Key()
	}
	return r
}

func writeReport(w io.Writer, format string, st analyzer.State) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(newAnalysisReport(st)), "analyze: encode json")
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(newAnalysisReport(st)); err != nil {
			return eris.Wrap(err, "analyze: encode yaml")
		}
		return eris.Wrap(enc.Close(), "analyze: encode yaml")
	}

	if cerr := st.Outcome.Err(); cerr != nil {
		_, err := fmt.Fprintf(w, "Analysis failed (%s): %s\n", cerr.Kind, cerr.Message)
		return err
	}
	res, ok := st.Outcome.Value()
	if !ok {
		return eris.New("analyze: no result")
	}
	sev := analyzer.SeverityOf(res.RiskScore)
	_, err := fmt.Fprintf(w, "Verdict:  %s\nScore:    %g/100 %s\nAnalysis: %s\n",
		res.Verdict,
		res.RiskScore,
		tui.SeverityStyle(sev).Render("("+sev.String()+")"),
		res.Analysis,
	)
	return err
}
