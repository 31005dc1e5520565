// Command virtualab is the CLI front end for the research agent.
//
//	virtualab -q "How many human chromosomes are there?"
//	virtualab -i                     # interactive session
//	virtualab -critic -q "..."       # answer, critique, refined answer
//	virtualab -team -q "..."         # multi-specialist deliberation
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/virtualab/virtualab/agent"
	"github.com/virtualab/virtualab/config"
	"github.com/virtualab/virtualab/internal/metrics"
	"github.com/virtualab/virtualab/llm"
	"github.com/virtualab/virtualab/llm/tokenizer"
	"github.com/virtualab/virtualab/providers"
	"github.com/virtualab/virtualab/providers/anthropic"
	"github.com/virtualab/virtualab/providers/openrouter"
	"github.com/virtualab/virtualab/sandbox"
	"github.com/virtualab/virtualab/team"
	"github.com/virtualab/virtualab/tools"
)

func main() {
	var (
		question    = flag.String("q", "", "one-shot question to answer")
		interactive = flag.Bool("i", false, "interactive session on stdin")
		model       = flag.String("model", "", "model override")
		withCritic  = flag.Bool("critic", false, "run the critic-refine pass and print all three stages")
		withTeam    = flag.Bool("team", false, "answer via a multi-specialist deliberation meeting")
		rounds      = flag.Int("rounds", 0, "deliberation rounds (with -team)")
		verbose     = flag.Bool("verbose", false, "debug logging")
		configPath  = flag.String("config", "", "path to YAML config")
	)
	flag.Parse()

	if *question == "" && !*interactive {
		fmt.Fprintln(os.Stderr, "nothing to do: pass -q \"...\" or -i")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *model != "" {
		cfg.Model = *model
	}
	if *rounds > 0 {
		cfg.Team.Rounds = *rounds
	}

	logger := buildLogger(cfg.Log, *verbose)
	defer logger.Sync()

	pcfg, err := providers.FromEnv(providers.Kind(cfg.Provider))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	pcfg.Timeout = cfg.Timeout
	if pcfg.Model == "" {
		pcfg.Model = cfg.Model
	}

	var provider llm.Provider
	switch pcfg.Kind {
	case providers.KindAnthropic:
		provider = anthropic.New(pcfg, logger)
	default:
		provider = openrouter.New(pcfg, logger)
	}

	registry := tools.NewRegistry(logger)
	if err := registry.Register(sandbox.ExecuteCodeTool(sandbox.Default())); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	collector := metrics.NewCollector("virtualab", prometheus.DefaultRegisterer)

	sched := agent.NewScheduler(provider, registry, agent.Options{
		Model:          cfg.Model,
		MaxIterations:  cfg.Agent.MaxIterations,
		Temperature:    cfg.Agent.Temperature,
		MaxTokens:      cfg.Agent.MaxTokens,
		ResultLimit:    cfg.Agent.ResultLimit,
		RequestTimeout: cfg.Timeout,
	}, logger).WithTokenizer(tokenizer.ForModel(cfg.Model)).WithMetrics(collector)

	ctx := context.Background()

	run := func(q string) error {
		switch {
		case *withTeam:
			meeting := team.NewMeeting(provider, team.Options{
				Model:          cfg.Model,
				Rounds:         cfg.Team.Rounds,
				MaxSize:        cfg.Team.MaxSize,
				Temperature:    cfg.Agent.Temperature,
				MaxTokens:      cfg.Agent.MaxTokens,
				RequestTimeout: cfg.Timeout,
			}, logger).WithMetrics(collector)
			tr, err := meeting.Run(ctx, q)
			if err != nil {
				return err
			}
			printTranscript(tr)
		case *withCritic:
			critic := agent.NewCritic(provider, agent.CriticOptions{
				Model:          criticModel(cfg),
				Temperature:    cfg.Critic.Temperature,
				RequestTimeout: cfg.Timeout,
			}, logger)
			review, err := sched.RunWithCritic(ctx, q, critic)
			if err != nil {
				return err
			}
			printReview(review)
		default:
			answer, err := sched.Run(ctx, q)
			if err != nil {
				return err
			}
			fmt.Println(answer)
		}
		return nil
	}

	if *question != "" {
		if err := run(*question); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	if *interactive {
		// one scheduler for the whole session, so sandbox state
		// carries across questions
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "exit" || line == "quit" {
				break
			}
			if err := run(line); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		}
	}
}

func criticModel(cfg config.Config) string {
	if cfg.Critic.Model != "" {
		return cfg.Critic.Model
	}
	return cfg.Model
}

func buildLogger(lc config.LogConfig, verbose bool) *zap.Logger {
	var zc zap.Config
	if lc.Development || verbose {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else if level, err := zapcore.ParseLevel(lc.Level); err == nil {
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	logger, err := zc.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func printReview(r agent.Review) {
	fmt.Println("=== Initial answer ===")
	fmt.Println(r.Initial)
	fmt.Println()
	fmt.Println("=== Critique ===")
	fmt.Println(r.Critique)
	fmt.Println()
	if r.Refined {
		fmt.Println("=== Refined answer ===")
	} else {
		fmt.Println("=== Final answer (no refinement needed) ===")
	}
	fmt.Println(r.Final)
}

func printTranscript(tr *team.Transcript) {
	fmt.Println("=== Roster ===")
	for _, sp := range tr.Roster {
		fmt.Printf("- %s (%s)\n", sp.Title, sp.Expertise)
	}
	for n, round := range tr.Rounds {
		fmt.Printf("\n=== Round %d ===\n", n+1)
		for _, c := range round {
			fmt.Printf("[%s]\n%s\n\n", c.Specialist, c.Text)
		}
	}
	fmt.Println("=== Synthesis ===")
	fmt.Println(tr.Synthesis)
}
