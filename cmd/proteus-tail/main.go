// Command proteus-tail renders a recorded or live agent event stream as
// a terminal transcript.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alishangtian/proteus-stream/render"
	"github.com/alishangtian/proteus-stream/stream"
	"github.com/alishangtian/proteus-stream/transport"
)

// Global flags (persistent across all commands)
var (
	verbose    bool
	noColor    bool
	debug      bool
	configPath string
)

// Command-specific flags
var (
	paceMs int
	follow bool
)

// fileConfig is the optional YAML config for render behavior.
type fileConfig struct {
	Verbose            bool   `yaml:"verbose"`
	NoColor            bool   `yaml:"no_color"`
	ThinkingSentinel   string `yaml:"thinking_sentinel"`
	CompletionSentinel string `yaml:"completion_sentinel"`
	CharDelayMs        int    `yaml:"char_delay_ms"`
}

var rootCmd = &cobra.Command{
	Use:   "proteus-tail",
	Short: "Render proteus agent event streams",
	Long: `Replays recorded event logs or attaches to a live event stream and
folds the events into a rendered conversation transcript.`,
}

var replayCmd = &cobra.Command{
	Use:   "replay <events.jsonl>",
	Short: "Replay a recorded event log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := []transport.ReplayOption{}
		if paceMs > 0 {
			opts = append(opts, transport.WithPace(time.Duration(paceMs)*time.Millisecond))
		}
		if follow {
			opts = append(opts, transport.WithFollow())
		}
		t := transport.NewReplay(args[0], opts...)
		return runTranscript(ctx, t)
	},
}

var streamCmd = &cobra.Command{
	Use:   "stream <url>",
	Short: "Attach to a live SSE event stream",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, args[0], nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "text/event-stream")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("unexpected status: %s", resp.Status)
		}
		return runTranscript(ctx, transport.NewSSE(resp.Body))
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema [tag]",
	Short: "Print JSON Schemas of event payloads",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reflector := new(jsonschema.Reflector)
		out := make(map[string]*jsonschema.Schema)
		for tag, payload := range payloadTypes {
			if len(args) == 1 && args[0] != tag {
				continue
			}
			out[tag] = reflector.Reflect(payload)
		}
		if len(out) == 0 {
			return fmt.Errorf("unknown tag: %s", args[0])
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

// payloadTypes maps event tags to representative payload values for
// schema generation. Tags without payloads are omitted.
var payloadTypes = map[string]any{
	string(stream.TagAgentStart):        &stream.AgentStartPayload{},
	string(stream.TagAgentSelection):    &stream.AgentSelectionPayload{},
	string(stream.TagAgentExecution):    &stream.AgentExecutionPayload{},
	string(stream.TagStatus):            &stream.StatusPayload{},
	string(stream.TagWorkflow):          &stream.WorkflowPayload{},
	string(stream.TagNodeResult):        &stream.NodeResultPayload{},
	string(stream.TagExplanation):       &stream.ExplanationPayload{},
	string(stream.TagAnswer):            &stream.AnswerPayload{},
	string(stream.TagToolProgress):      &stream.ToolProgressPayload{},
	string(stream.TagToolRetry):         &stream.ToolRetryPayload{},
	string(stream.TagActionStart):       &stream.ActionStartPayload{},
	string(stream.TagActionComplete):    &stream.ActionCompletePayload{},
	string(stream.TagAgentThinking):     &stream.AgentThinkingPayload{},
	string(stream.TagStreamThinking):    &stream.StreamThinkingPayload{},
	string(stream.TagAgentError):        &stream.AgentErrorPayload{},
	string(stream.TagAgentEvaluation):   &stream.AgentEvaluationPayload{},
	string(stream.TagAgentComplete):     &stream.AgentCompletePayload{},
	string(stream.TagPlaybookUpdate):    &stream.PlaybookUpdatePayload{},
	string(stream.TagUserInputRequired): &stream.UserInputRequiredPayload{},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show action lifecycle lines")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable ANSI colors")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Optional YAML render config")

	replayCmd.Flags().IntVar(&paceMs, "pace", 0, "Delay between events in milliseconds")
	replayCmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep reading as the log grows")

	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(schemaCmd)
}

type runner interface {
	stream.Transport
	Run(ctx context.Context, c *stream.Controller) error
}

func runTranscript(ctx context.Context, t runner) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	term := render.NewTerminal(os.Stdout, cfg.Verbose, cfg.NoColor)

	done := make(chan struct{})
	controller := stream.NewController(stream.Callbacks{
		OnUpdate: term.Update,
		OnComplete: func(res stream.FinalResult) {
			term.Complete(res)
			close(done)
		},
		OnError: func(err error) {
			term.Error(err)
			close(done)
		},
	}, controllerOptions(cfg, logger)...)

	controller.Begin(t)

	runErr := make(chan error, 1)
	go func() {
		runErr <- t.Run(ctx, controller)
	}()

	select {
	case <-done:
		return nil
	case err := <-runErr:
		return err
	case <-ctx.Done():
		controller.Cancel()
		return nil
	}
}

func controllerOptions(cfg fileConfig, logger *slog.Logger) []stream.Option {
	opts := []stream.Option{
		stream.WithLogger(logger),
		stream.WithFinalRenderer(render.Final),
		stream.WithFileSink(dirSink{dir: "."}),
	}
	if cfg.ThinkingSentinel != "" {
		opts = append(opts, stream.WithThinkingSentinel(cfg.ThinkingSentinel))
	}
	if cfg.CompletionSentinel != "" {
		opts = append(opts, stream.WithCompletionSentinel(cfg.CompletionSentinel))
	}
	if cfg.CharDelayMs > 0 {
		opts = append(opts, stream.WithGraceCharDelay(time.Duration(cfg.CharDelayMs)*time.Millisecond))
	}
	return opts
}

// dirSink writes emitted files into a directory.
type dirSink struct {
	dir string
}

func (s dirSink) Emit(filename string, content []byte, mimeType string) error {
	return os.WriteFile(s.dir+string(os.PathSeparator)+filename, content, 0644)
}

func loadConfig() (fileConfig, error) {
	cfg := fileConfig{Verbose: verbose, NoColor: noColor}
	if configPath == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Flags win over file settings when explicitly set.
	if verbose {
		cfg.Verbose = true
	}
	if noColor {
		cfg.NoColor = true
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
