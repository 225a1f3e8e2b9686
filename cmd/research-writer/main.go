package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mikeboe/research-writer/pkg/app"
	"github.com/mikeboe/research-writer/pkg/config"
	"github.com/mikeboe/research-writer/pkg/research"
	"github.com/mikeboe/research-writer/pkg/research/tools"
	"github.com/mikeboe/research-writer/pkg/stream"
)

var (
	region string
	chatID string
	jobID  string
	format string
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "research-writer",
		Short:        "Research a topic on the web and write about it",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&region, "region", "r", tools.RegionAll, "Search region (ISO country code)")
	rootCmd.PersistentFlags().StringVar(&jobID, "job", "", "Resume or replay an existing job instead of creating one")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", "text", "Output format: text or sse")

	articleCmd := &cobra.Command{
		Use:   "article [topic]",
		Short: "Research a topic with reflection and write a cited article",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), research.KindArticle, args)
		},
	}

	answerCmd := &cobra.Command{
		Use:   "answer [query]",
		Short: "Search the web and stream a cited answer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), research.KindAnswer, args)
		},
	}
	answerCmd.Flags().StringVar(&chatID, "chat", "", "Chat session to continue")

	rootCmd.AddCommand(articleCmd, answerCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, kind research.JobKind, args []string) error {
	cfg := config.Load()
	logger, closeLog := config.SetupLogger(cfg.LogFile, config.ParseLevel(cfg.LogLevel))
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return err
	}
	if format != "text" && format != "sse" {
		return fmt.Errorf("unknown format %q", format)
	}

	topic := strings.TrimSpace(strings.Join(args, " "))
	if topic == "" && jobID == "" {
		// Interactive Mode
		fmt.Fprint(os.Stderr, "Enter topic: ")
		input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		topic = strings.TrimSpace(input)
		if topic == "" {
			return errors.New("topic cannot be empty")
		}
	}

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	events, err := a.Pipeline.Start(ctx, research.StartRequest{
		TopicOrQuery: topic,
		JobID:        jobID,
		Kind:         kind,
		Region:       tools.NormalizeRegion(region),
		ChatID:       chatID,
	})
	if err != nil {
		return err
	}

	if format == "sse" {
		_, err := stream.NewEncoder(os.Stdout).Copy(events)
		return err
	}
	return printText(os.Stdout, os.Stderr, events)
}

// printText writes content fragments to out and progress to status. It
// returns an error when the job ends with an error event.
func printText(out, status io.Writer, events iter.Seq[research.Event]) error {
	var failed error
	for ev := range events {
		switch p := ev.Payload.(type) {
		case research.ContentPayload:
			fmt.Fprint(out, p.Content)
		case research.MessagePayload:
			fmt.Fprintf(status, "[%s] %s\n", ev.Name, p.Message)
		case []research.MessagePayload:
			for _, m := range p {
				fmt.Fprintf(status, "[%s] %s\n", ev.Name, m.Message)
			}
		case []string:
			fmt.Fprintf(status, "[%s] %s\n", ev.Name, strings.Join(p, ", "))
		case research.ThoughtPayload:
			fmt.Fprintf(status, "[thinking] %s\n", p.Thought)
		case research.ProgressPayload:
			fmt.Fprintf(status, "[%s] %d/%d\n", ev.Name, p.Iteration, p.MaxIterations)
		case []research.SearchResult:
			fmt.Fprintf(status, "[%s] %d results\n", ev.Name, len(p))
		case research.CountPayload:
			fmt.Fprintf(status, "[%s] %d new results\n", ev.Name, p.Count)
		case *research.Artifact:
			fmt.Fprintln(out)
			fmt.Fprintf(status, "[%s] %s, %d sources\n", ev.Name, p.Status, len(p.Sources))
			for _, s := range p.Suggestions {
				fmt.Fprintf(status, "  next: %s\n", s)
			}
		case research.InProgressPayload:
			fmt.Fprintf(status, "[%s] job is %s at stage %s (active=%t)\n", ev.Name, p.Status, p.Stage, p.Active)
			if p.PartialContent != "" {
				fmt.Fprintln(out, p.PartialContent)
			}
		case research.ErrorPayload:
			failed = errors.New(p.Error)
		default:
			fmt.Fprintf(status, "[%s]\n", ev.Name)
		}
	}
	return failed
}
