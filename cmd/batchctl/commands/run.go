package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jdziat/simple-batch-jobs/pkg/batch"
	"github.com/jdziat/simple-batch-jobs/pkg/core"
	"github.com/jdziat/simple-batch-jobs/pkg/queue"
	"github.com/jdziat/simple-batch-jobs/pkg/retry"
	"github.com/jdziat/simple-batch-jobs/pkg/schedule"
)

// Run modes
const (
	modeBatch = "batch"
	modeQueue = "queue"
)

type runFlags struct {
	input    string
	endpoint string
	mode     string
	schedule string
	every    time.Duration
	at       string
}

// lineItem is one input line queued together with its position.
type lineItem struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// runSummary is the outcome of one pass over the input.
type runSummary struct {
	Total     int
	Completed int
	Failed    []core.Failure
	Elapsed   time.Duration
}

func newRunCommand(a *app) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Args:  cobra.NoArgs,
		Short: "Post every input line to an endpoint",
		Long: `Read one item per line from --input and post each one as
{"input": <item>, "index": <n>} to --endpoint. Non-2xx responses count as failures.
With --schedule, --every or --at the run repeats until interrupted.
--at takes "HH:MM" for a daily run or "mon,wed HH:MM" for chosen weekdays, in local time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.input, "input", "i", "", "file with one item per line (- for stdin)")
	flags.StringVarP(&f.endpoint, "endpoint", "e", "", "URL that processes one item")
	flags.StringVar(&f.mode, "mode", modeBatch, "execution mode: batch or queue")
	flags.StringVar(&f.schedule, "schedule", "", "cron expression to repeat the run")
	flags.DurationVar(&f.every, "every", 0, "repeat the run on this interval")
	flags.StringVar(&f.at, "at", "", `repeat the run at a time of day ("HH:MM" or "mon,fri HH:MM")`)
	flags.Int("concurrency", 3, "maximum items in flight")
	flags.Int("retries", 1, "additional attempts per failing item")
	flags.Duration("retry-delay", time.Second, "base delay between attempts")
	flags.Duration("timeout", 0, "per-attempt timeout (0 for none)")
	flags.String("name", "default", "name recorded with persisted jobs and runs")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("endpoint")
	bindFlags(a.v, flags, map[string]string{
		"batch.concurrency": "concurrency",
		"batch.retries":     "retries",
		"batch.retry_delay": "retry-delay",
		"batch.timeout":     "timeout",
		"batch.name":        "name",
	})

	return cmd
}

func (a *app) run(cmd *cobra.Command, f runFlags) error {
	if f.mode != modeBatch && f.mode != modeQueue {
		return fmt.Errorf("--mode must be %s or %s, got %q", modeBatch, modeQueue, f.mode)
	}

	sched, err := f.repeatSchedule()
	if err != nil {
		return err
	}

	items, err := readItems(cmd.InOrStdin(), f.input)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var store core.Store
	if a.cfg.Store.Driver != "" {
		s, err := a.cfg.OpenStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	}

	client := newEndpointClient(f.endpoint, nil)
	runOnce := func(ctx context.Context) error {
		var (
			summary *runSummary
			err     error
		)
		if f.mode == modeQueue {
			summary, err = a.runQueue(ctx, client, items, store)
		} else {
			summary, err = a.runBatch(ctx, client, items, store)
		}
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), summary)
		return nil
	}

	if sched == nil {
		return runOnce(ctx)
	}

	a.logger.Info("waiting for schedule", "next", sched.Next(time.Now()))
	err = schedule.Run(ctx, sched, func(ctx context.Context, at time.Time) {
		if err := runOnce(ctx); err != nil {
			a.logger.Error("scheduled run failed", "error", err)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) runBatch(ctx context.Context, client *endpointClient, items []string, store core.Store) (*runSummary, error) {
	cfg := a.cfg.Batch
	opts := []batch.Option{
		batch.Name(cfg.Name),
		batch.Concurrency(cfg.Concurrency),
		batch.Retries(cfg.Retries),
		batch.RetryDelay(cfg.RetryDelay),
		batch.JobTimeout(cfg.Timeout),
		batch.WithLogger(a.logger),
		batch.OnProgress(func(completed, total int, jobID string) {
			a.logger.Info("progress", "completed", completed, "total", total, "job_id", jobID)
		}),
	}
	if store != nil {
		opts = append(opts, batch.WithStore(store))
	}

	p := batch.NewProcessor(client.Process, opts...)
	p.AddItems(items...)
	result, err := p.Start(ctx)
	if err != nil {
		return nil, err
	}

	return &runSummary{
		Total:     len(items),
		Completed: len(result.Successful),
		Failed:    result.Failed,
		Elapsed:   result.TotalTime,
	}, nil
}

func (a *app) runQueue(ctx context.Context, client *endpointClient, items []string, store core.Store) (*runSummary, error) {
	cfg := a.cfg.Batch
	opts := []queue.Option{
		queue.Name(cfg.Name),
		queue.Concurrency(cfg.Concurrency),
		queue.WithRetryPolicy(retry.Linear(cfg.Retries, cfg.RetryDelay)),
		queue.JobTimeout(cfg.Timeout),
		queue.WithLogger(a.logger),
	}
	if store != nil {
		opts = append(opts, queue.WithStore(store))
	}

	q := queue.New(func(ctx context.Context, item lineItem) (string, error) {
		return client.Process(ctx, item.Text, item.Index)
	}, opts...)

	lines := make([]lineItem, len(items))
	for i, item := range items {
		lines[i] = lineItem{Index: i, Text: item}
	}

	start := time.Now()
	q.Add(lines...)
	if err := q.Wait(ctx); err != nil {
		q.Clear()
		return nil, err
	}

	summary := &runSummary{Total: len(items), Elapsed: time.Since(start)}
	for _, job := range q.All() {
		switch job.Status {
		case core.StatusCompleted:
			summary.Completed++
		case core.StatusFailed:
			summary.Failed = append(summary.Failed, core.Failure{JobID: job.ID, Error: job.Error})
		}
	}
	return summary, nil
}

// repeatSchedule returns the schedule named by --schedule, --every or --at,
// or nil when the run happens once.
func (f runFlags) repeatSchedule() (schedule.Schedule, error) {
	set := 0
	for _, given := range []bool{f.schedule != "", f.every != 0, f.at != ""} {
		if given {
			set++
		}
	}
	switch {
	case set > 1:
		return nil, errors.New("use only one of --schedule, --every and --at")
	case f.schedule != "":
		return schedule.Cron(f.schedule)
	case f.every < 0:
		return nil, fmt.Errorf("--every must be positive, got %s", f.every)
	case f.every > 0:
		return schedule.Every(f.every), nil
	case f.at != "":
		return parseAt(f.at, time.Local)
	}
	return nil, nil
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// parseAt reads "HH:MM" or "mon,fri HH:MM".
func parseAt(s string, loc *time.Location) (schedule.Schedule, error) {
	fields := strings.Fields(s)
	var days []time.Weekday
	switch len(fields) {
	case 1:
	case 2:
		for _, name := range strings.Split(fields[0], ",") {
			day, ok := weekdays[strings.ToLower(name)]
			if !ok {
				return nil, fmt.Errorf("--at: unknown weekday %q", name)
			}
			days = append(days, day)
		}
		fields = fields[1:]
	default:
		return nil, fmt.Errorf(`--at: want "HH:MM" or "mon,fri HH:MM", got %q`, s)
	}

	tod, err := time.Parse("15:04", fields[0])
	if err != nil {
		return nil, fmt.Errorf("--at: invalid time %q", fields[0])
	}
	return schedule.At(loc, tod.Hour(), tod.Minute(), days...), nil
}

func readItems(stdin io.Reader, path string) ([]string, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var items []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxResponseSize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		items = append(items, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return items, nil
}

func printSummary(w io.Writer, s *runSummary) {
	fmt.Fprintf(w, "completed %d/%d, failed %d in %s\n",
		s.Completed, s.Total, len(s.Failed), s.Elapsed.Round(time.Millisecond))
	for _, f := range s.Failed {
		fmt.Fprintf(w, "  %s: %s\n", f.JobID, f.Error)
	}
}
