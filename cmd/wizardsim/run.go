package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gopkg.in/yaml.v3"

	"github.com/davidroman0O/gowizard"
	"github.com/davidroman0O/gowizard/metrics"
	"github.com/davidroman0O/gowizard/store"
	"github.com/davidroman0O/gowizard/telemetry"
)

type runOptions struct {
	dataPath    string
	script      string
	trace       bool
	showMetrics bool
	keepGoing   bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Replay a navigation script against a sequence definition",
		Long: `Builds an engine from FILE and applies every command of --script in order.
Commands: next, skip, prev, goto:<id>, goto:#<index>, set:<key>=<value>,
unset:<key>, reset, destroy.

goto always names a step id, even a numeric one; prefix a number with '#'
to target a step by index. set parses its value as YAML.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.dataPath, "data", "", "YAML file with form data loaded into the store")
	cmd.Flags().StringVar(&opts.script, "script", "next", "Comma separated navigation commands")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "Print one line per validator span")
	cmd.Flags().BoolVar(&opts.showMetrics, "metrics", false, "Print navigation counters at the end")
	cmd.Flags().BoolVar(&opts.keepGoing, "keep-going", false, "Continue after a command fails")

	return cmd
}

func runScript(ctx context.Context, out io.Writer, path string, opts runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cmds, err := parseScript(opts.script)
	if err != nil {
		return err
	}
	def, err := gowizard.LoadSequenceDef(path)
	if err != nil {
		return err
	}

	data := store.NewKVStore()
	if opts.dataPath != "" {
		if err := loadData(opts.dataPath, data); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg, "wizardsim")

	logger := gowizard.NewSlogLogger(slog.Default()).With("wizard", def.ID)
	engineOpts := []gowizard.Option{
		gowizard.WithLogger(logger),
		gowizard.WithListener(printEvents(out), collector.Listener()),
		gowizard.WithValidatorMiddleware(collector.Middleware()),
	}

	if opts.trace {
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(newSpanPrinter(out)))
		defer func() { _ = tp.Shutdown(context.Background()) }()
		engineOpts = append(engineOpts, gowizard.WithValidatorMiddleware(telemetry.TracingMiddleware(tp)))
	}

	engine, err := gowizard.NewEngineFromDef(def, data, engineOpts...)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, infoMsg("session %s, %d steps, starting on %s",
		engine.SessionID(), engine.Sequence().Len(), engine.CurrentStep().ID))

	// Validation failures are reported and the script goes on. The first
	// usage error is what the command returns.
	var usageErr error
	for _, c := range cmds {
		fmt.Fprintln(out, muted("> "+c.String()))
		err := c.apply(ctx, engine)
		if err == nil {
			continue
		}
		fmt.Fprintln(out, errorMsg("%s: %v", c, err))
		if isValidationError(err) {
			continue
		}
		if usageErr == nil {
			usageErr = fmt.Errorf("%s: %w", c, err)
		}
		if !opts.keepGoing {
			break
		}
	}

	fmt.Fprintln(out, renderBoard(engine))
	if opts.showMetrics {
		summary, err := metricsSummary(reg)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, summary)
	}

	return usageErr
}

// isValidationError reports whether err is an expected validation outcome
// rather than a usage error.
func isValidationError(err error) bool {
	var verr *gowizard.ValidationError
	return errors.As(err, &verr)
}

// loadData reads a flat YAML mapping into data.
func loadData(path string, data *store.KVStore) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read data file: %w", err)
	}

	values := map[string]interface{}{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return fmt.Errorf("decode data file: %w", err)
	}
	for key, value := range values {
		if err := data.Put(key, value); err != nil {
			return fmt.Errorf("store %q: %w", key, err)
		}
	}
	return nil
}

func printEvents(out io.Writer) gowizard.Listener {
	return func(ev gowizard.Event) {
		fmt.Fprintln(out, formatEvent(ev))
	}
}

func formatEvent(ev gowizard.Event) string {
	switch ev.Type {
	case gowizard.EventStepChanged:
		if ev.Skipped {
			return warnMsg("skipped %d -> %d (%s)", ev.From, ev.To, ev.StepID)
		}
		return successMsg("step %d -> %d (%s)", ev.From, ev.To, ev.StepID)
	case gowizard.EventStepValidationFailed:
		return warnMsg("step %s (index %d) is not valid", ev.StepID, ev.Index)
	case gowizard.EventValidationFailure:
		return errorMsg("validator of %s (index %d) failed: %v", ev.StepID, ev.Index, ev.Err)
	case gowizard.EventCompleted:
		if ev.Skipped {
			return successMsg("completed, last step %s skipped", ev.StepID)
		}
		return successMsg("completed on %s", ev.StepID)
	case gowizard.EventBusy:
		return warnMsg("busy, command rejected")
	default:
		return infoMsg("%s", ev.Type)
	}
}

func renderBoard(engine *gowizard.Engine) string {
	board := engine.Store()
	rows := [][]string{}
	for i, id := range engine.Sequence().IDs() {
		status, err := engine.StepStatus(id)
		if err != nil {
			status = "unknown"
		}
		marker := ""
		if current, _ := board.HasTag(engine.StepKey(id), gowizard.TagCurrent); current {
			marker = ">"
		}
		rows = append(rows, []string{marker, fmt.Sprint(i), id, statusStyle(status)})
	}

	wizardStatus := gowizard.StatusActive
	if v, err := board.GetProperty(engine.WizardKey(), gowizard.PropStatus); err == nil {
		wizardStatus, _ = v.(string)
	}

	var summary []string
	for _, status := range []string{
		gowizard.StatusValidated, gowizard.StatusSkipped,
		gowizard.StatusInvalid, gowizard.StatusFailed, gowizard.StatusPending,
	} {
		if ids := engine.StepsWithStatus(status); len(ids) > 0 {
			summary = append(summary, fmt.Sprintf("%s: %s", status, strings.Join(ids, " ")))
		}
	}

	return renderTable([]string{"", "#", "STEP", "STATUS"}, rows) + "\n" +
		muted("wizard ") + statusStyle(wizardStatus) + "\n" +
		muted(strings.Join(summary, " | "))
}

// metricsSummary renders the counters gathered from reg, one row per series.
func metricsSummary(reg prometheus.Gatherer) (string, error) {
	families, err := reg.Gather()
	if err != nil {
		return "", err
	}

	rows := [][]string{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			sort.Strings(labels)

			var value string
			switch {
			case m.GetCounter() != nil:
				value = fmt.Sprintf("%g", m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				value = fmt.Sprintf("%d samples", m.GetHistogram().GetSampleCount())
			default:
				continue
			}
			rows = append(rows, []string{f.GetName(), strings.Join(labels, " "), value})
		}
	}
	return renderTable([]string{"METRIC", "LABELS", "VALUE"}, rows), nil
}
