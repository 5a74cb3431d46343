// Command palagent runs an interactive tool-augmented chat session against a
// local or remote language model, with tools provided by MCP stdio servers.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/effective-security/xlog"
	"github.com/palagent/palagent/agent"
	"github.com/palagent/palagent/agentio"
	"github.com/palagent/palagent/callbacks"
	"github.com/palagent/palagent/chatmodel"
	"github.com/palagent/palagent/llmfactory"
	"github.com/palagent/palagent/mcp"
	"github.com/palagent/palagent/pkg/llms"
	"github.com/spf13/cobra"
)

var logger = xlog.NewPackageLogger("github.com/palagent/palagent/cmd", "palagent")

var (
	cfgFile string
	servers []string
	verbose bool
	speak   bool
)

var rootCmd = &cobra.Command{
	Use:   "palagent [question]",
	Short: "Tool-augmented LLM agent over MCP servers",
	Long: `palagent answers questions with a language model that can call tools
exposed by MCP stdio servers. With a question argument it answers once and
exits; without one it starts an interactive prompt.`,
	Args: cobra.MaximumNArgs(1),
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.Flags().StringArrayVarP(&servers, "server", "s", nil, "tool server executable, may repeat")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.Flags().BoolVar(&speak, "speak", false, "speak answers with Piper TTS")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	if verbose {
		xlog.SetGlobalLogLevel(xlog.DEBUG)
	} else {
		xlog.SetGlobalLogLevel(xlog.WARNING)
	}

	cfg, err := llmfactory.LoadConfig(cfgFile)
	if err != nil {
		return err
	}

	model, err := llmfactory.New(cfg)
	if err != nil {
		return err
	}
	if closer, ok := model.(interface{ Close() }); ok {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := mcp.NewManager()
	for _, path := range append(cfg.Servers, servers...) {
		manager.Register(path)
	}
	if err := manager.ConnectAll(ctx); err != nil {
		_ = manager.CloseAll()
		return err
	}

	speaker, err := newSpeaker(cfg)
	if err != nil {
		return err
	}
	defer speaker.Close()

	agentName := cfg.Agent.Name
	if agentName == "" {
		agentName = "palagent"
	}

	opts := []agent.Option{
		agent.WithGenerateOptions(cfg.DefaultCallOptions()...),
		agent.WithGenerateOptions(llms.WithStopWords(chatmodel.LlamaStopWords)),
	}
	if cfg.Agent.SystemPrompt != "" {
		opts = append(opts, agent.WithSystemPrompt(cfg.Agent.SystemPrompt))
	}
	if cfg.Agent.HistoryWindow > 0 {
		opts = append(opts, agent.WithHistoryWindow(cfg.Agent.HistoryWindow))
	}
	if verbose {
		opts = append(opts, agent.WithCallback(callbacks.NewPrinter(os.Stderr)))
	}

	pal := agent.New(agentName, model, chatmodel.NewLlamaHistory(""), manager, opts...)
	defer func() {
		if err := pal.Close(); err != nil {
			logger.KV(xlog.WARNING, "reason", "close_failed", "err", err.Error())
		}
	}()

	if err := pal.Init(ctx); err != nil {
		return err
	}

	if len(args) == 1 {
		return ask(ctx, pal, speaker, args[0])
	}
	return repl(ctx, pal, speaker)
}

func newSpeaker(cfg *llmfactory.Config) (agentio.Speaker, error) {
	if !speak && !cfg.TTS.Enabled {
		return agentio.NoopSpeaker{}, nil
	}
	return agentio.NewPiperTTS(cfg.TTS.Piper)
}

func ask(ctx context.Context, pal *agent.Agent, speaker agentio.Speaker, question string) error {
	responses, err := pal.Chat(ctx, question)
	if err != nil {
		return err
	}

	for _, resp := range responses {
		switch resp.Type {
		case agent.ResponseTypeToolCalling:
			fmt.Printf("-> calling tools: %s\n", resp.Data)
		case agent.ResponseTypeToolResult:
			fmt.Printf("-> tool results: %s\n", resp.Data)
		case agent.ResponseTypeText:
			fmt.Println(resp.Data)
			if err := speaker.Speak(ctx, resp.Data); err != nil {
				logger.KV(xlog.WARNING, "reason", "tts_failed", "err", err.Error())
			}
		}
	}
	return nil
}

func repl(ctx context.Context, pal *agent.Agent, speaker agentio.Speaker) error {
	fmt.Printf("%s ready, model %s. Type your question, or \"exit\".\n", pal.Name(), pal.ModelName())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			break
		}

		if err := ask(ctx, pal, speaker, question); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return scanner.Err()
}
