// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/axpilot/api/schemas"
	"github.com/xkilldash9x/axpilot/internal/agent"
	"github.com/xkilldash9x/axpilot/internal/browser"
	"github.com/xkilldash9x/axpilot/internal/browser/cdp"
	"github.com/xkilldash9x/axpilot/internal/browser/interactor"
	"github.com/xkilldash9x/axpilot/internal/browser/snapshot"
	"github.com/xkilldash9x/axpilot/internal/browser/stabilizer"
	"github.com/xkilldash9x/axpilot/internal/config"
	"github.com/xkilldash9x/axpilot/internal/llmclient"
	"github.com/xkilldash9x/axpilot/internal/observability"
	"github.com/xkilldash9x/axpilot/internal/store"
)

// Component constructors, replaced in tests.
var (
	newTargetResolver = func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.TargetResolver, func(), error) {
		m, err := cdp.NewManager(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil
	}
	newLLMClient = llmclient.NewClient
	newNoteStore = store.New
)

type runOptions struct {
	goal     string
	url      string
	maxSteps int
	headless bool
	output   string
	follow   bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent until the goal is reached or a limit stops it",
		Long: `Opens (or attaches to) a browser, then plans and executes actions toward the
goal one step at a time. The first interrupt asks the run to stop after the
current action; a second interrupt aborts it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, cfg); err != nil {
				return err
			}
			return runAgent(cmd, cfg, opts)
		},
	}

	runCmd.Flags().StringVarP(&opts.goal, "goal", "g", "", "natural language goal for the agent (required)")
	runCmd.Flags().StringVarP(&opts.url, "url", "u", "", "page to open before the first step (overrides browser.start_url)")
	runCmd.Flags().IntVar(&opts.maxSteps, "max-steps", 0, "step limit (overrides agent.max_steps)")
	runCmd.Flags().BoolVar(&opts.headless, "headless", true, "run the browser without a window (overrides browser.headless)")
	runCmd.Flags().StringVarP(&opts.output, "output", "o", "text", "result format: text or json")
	runCmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "stream status updates to stderr while running")
	_ = runCmd.MarkFlagRequired("goal")
	return runCmd
}

// apply folds explicitly set flags into the loaded configuration.
func (o *runOptions) apply(cmd *cobra.Command, cfg config.Interface) error {
	if strings.TrimSpace(o.goal) == "" {
		return fmt.Errorf("--goal must not be empty")
	}
	switch o.output {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported output format %q (want text or json)", o.output)
	}
	if o.url != "" {
		cfg.SetBrowserStartURL(o.url)
	}
	if cmd.Flags().Changed("max-steps") {
		if o.maxSteps <= 0 {
			return fmt.Errorf("--max-steps must be positive")
		}
		cfg.SetAgentMaxSteps(o.maxSteps)
	}
	if cmd.Flags().Changed("headless") {
		cfg.SetBrowserHeadless(o.headless)
	}
	return nil
}

// runtime holds the wired components of one run.
type runtime struct {
	orchestrator *agent.Orchestrator
	status       *observability.ChannelSink
	closers      []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// buildRuntime wires the browser, the notes store, the oracle and the loop.
// On error every component created so far is released.
func buildRuntime(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*runtime, error) {
	rt := &runtime{}
	ready := false
	defer func() {
		if !ready {
			rt.Close()
		}
	}()

	resolver, closeBrowser, err := newTargetResolver(ctx, cfg.Browser(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	rt.closers = append(rt.closers, closeBrowser)

	notes, err := newNoteStore(ctx, cfg.Memory(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open notes store: %w", err)
	}
	rt.closers = append(rt.closers, func() {
		if cerr := notes.Close(); cerr != nil {
			logger.Warn("Failed to close notes store.", zap.Error(cerr))
		}
	})

	oracle, err := newLLMClient(ctx, cfg.LLM(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	rt.closers = append(rt.closers, func() {
		if cerr := oracle.Close(); cerr != nil {
			logger.Warn("Failed to close LLM client.", zap.Error(cerr))
		}
	})

	agentCfg := cfg.Agent()
	engine := interactor.New(resolver, notes, interactor.Options{
		ActionTimeout:      agentCfg.ActionTimeout,
		HistoryBackTimeout: agentCfg.HistoryBackTimeout,
		TrustedInput:       agentCfg.TrustedInput,
	}, logger)
	settle := stabilizer.New(resolver, stabilizer.Options{
		Timeout: agentCfg.Settle.Timeout,
		Quiet:   agentCfg.Settle.Quiet,
		Poll:    agentCfg.Settle.Poll,
		Grace:   agentCfg.Settle.Grace,
	}, logger)

	rt.status = observability.NewChannelSink(128)
	rt.closers = append(rt.closers, rt.status.Close)

	rt.orchestrator = agent.New(agent.Deps{
		Resolver:   resolver,
		Snapshots:  snapshot.NewProvider(logger, agentCfg.SnapshotCap),
		Oracle:     oracle,
		Engine:     engine,
		Stabilizer: settle,
		Notes:      notes,
		Status:     observability.MultiSink{observability.NewZapSink(logger), rt.status},
	}, agent.OptionsFromConfig(agentCfg, cfg.LLM()), logger)
	ready = true
	return rt, nil
}

func runAgent(cmd *cobra.Command, cfg config.Interface, opts *runOptions) error {
	logger := observability.GetLogger()
	ctx, abort := context.WithCancel(cmd.Context())
	defer abort()

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	var wg sync.WaitGroup
	if opts.follow {
		records, unsubscribe := rt.status.Subscribe()
		defer func() {
			unsubscribe()
			wg.Wait()
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range records {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", rec.Level, rec.Message)
			}
		}()
	}

	stopWatching := watchInterrupts(ctx, rt.orchestrator, abort, logger)
	res := rt.orchestrator.Run(ctx, opts.goal)
	stopWatching()

	if err := writeResult(cmd.OutOrStdout(), res, opts.output); err != nil {
		return err
	}
	if res.Reason == schemas.ReasonError {
		return fmt.Errorf("run %s failed: %w", res.TraceID, res.Err)
	}
	return nil
}

// canceller is the part of the orchestrator the interrupt watcher needs.
type canceller interface {
	Cancel() bool
}

var notifySignals = func(c chan<- os.Signal) { signal.Notify(c, os.Interrupt, syscall.SIGTERM) }

// watchInterrupts turns the first interrupt into a cooperative cancel and the
// second into a hard abort. The returned func stops watching.
func watchInterrupts(ctx context.Context, run canceller, abort context.CancelFunc, logger *zap.Logger) func() {
	sigCh := make(chan os.Signal, 2)
	notifySignals(sigCh)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		requested := false
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-sigCh:
				if !requested {
					requested = true
					logger.Warn("Interrupt received; stopping after the current action. Interrupt again to abort.")
					run.Cancel()
					continue
				}
				logger.Warn("Second interrupt received; aborting.")
				abort()
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(stop)
			<-done
		})
	}
}

func writeResult(w io.Writer, res schemas.RunResult, format string) error {
	if format == "json" {
		out := struct {
			schemas.RunResult
			Error string `json:"error,omitempty"`
		}{RunResult: res}
		if res.Err != nil {
			out.Error = res.Err.Error()
		}
		b, err := json.ConfigCompatibleWithStandardLibrary.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}

	fmt.Fprintf(w, "Run %s finished: %s (steps=%d, oracle_calls=%d)\n", res.TraceID, res.Reason, res.Steps, res.OracleCalls)
	if res.Err != nil {
		fmt.Fprintf(w, "Error: %v\n", res.Err)
	}
	for _, h := range res.History {
		status := "ok"
		if !h.Outcome.Succeeded() {
			status = string(h.Outcome.Error)
		}
		line := fmt.Sprintf("  [%d] %s -> %s", h.StepIndex, h.Action, status)
		if h.Outcome.Message != "" {
			line += ": " + h.Outcome.Message
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
