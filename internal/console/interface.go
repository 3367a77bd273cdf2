package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"browser-agent/internal/action"
	"browser-agent/internal/config"
	"browser-agent/internal/entity"
	"browser-agent/internal/extract"
	"browser-agent/internal/output"
	"browser-agent/internal/usecase"
	"browser-agent/pkg/apperr"
	"browser-agent/pkg/logg"
)

const consoleName = "Console"

var errExit = errors.New("exit")

type Interface struct {
	config  *config.Config
	logger  *zap.Logger
	usecase *usecase.Service
	in      *bufio.Reader
	out     io.Writer
	ctx     context.Context
	cancel  context.CancelFunc
	sigChan chan os.Signal
	done    chan struct{}
	once    sync.Once
	running atomic.Bool
}

type Params struct {
	fx.In

	Config  *config.Config
	Logger  *zap.Logger
	Usecase *usecase.Service
	Input   *bufio.Reader `optional:"true"`
}

func NewInterface(params Params) *Interface {
	ctx, cancel := context.WithCancel(context.Background())

	in := params.Input
	if in == nil {
		in = bufio.NewReader(os.Stdin)
	}

	return &Interface{
		config:  params.Config,
		logger:  params.Logger.With(zap.String(logg.Layer, consoleName)),
		usecase: params.Usecase,
		in:      in,
		out:     os.Stdout,
		ctx:     ctx,
		cancel:  cancel,
		sigChan: make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}
}

// Done is closed once the console has finished reading commands.
func (i *Interface) Done() <-chan struct{} {
	return i.done
}

// Start reads commands until exit, end of input or an interrupt while idle.
// An interrupt during a task stops only the task.
func (i *Interface) Start() error {
	i.printBanner()
	i.printHelp()

	signal.Notify(i.sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(i.sigChan)

	go i.watchSignals()

	return i.loop()
}

func (i *Interface) watchSignals() {
	for {
		select {
		case <-i.done:
			return
		case <-i.sigChan:
			if i.running.Load() {
				fmt.Fprintln(i.out, "\n\n⚠️  Interrupt received, stopping task...")
				i.usecase.Agent.Stop()

				continue
			}

			fmt.Fprintln(i.out, "\n⚠️  Interrupt received")
			i.finish()

			return
		}
	}
}

func (i *Interface) loop() error {
	defer i.finish()

	for {
		select {
		case <-i.done:
			return nil
		default:
		}

		fmt.Fprint(i.out, "\n> ")

		line, err := i.in.ReadString('\n')
		input := strings.TrimSpace(line)

		if input != "" {
			if cmdErr := i.handleCommand(input); cmdErr != nil {
				if errors.Is(cmdErr, errExit) {
					return nil
				}

				i.logger.Error("Command error", zap.Error(cmdErr))
				fmt.Fprintf(i.out, "Error: %v\n", cmdErr)
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("read command: %w", err)
		}
	}
}

func (i *Interface) finish() {
	i.once.Do(func() {
		close(i.done)
	})
}

func (i *Interface) Stop() error {
	i.logger.Info("Stopping console interface...")

	i.cancel()
	i.usecase.Agent.Stop()
	i.finish()

	fmt.Fprintln(i.out, "👋 Goodbye!")

	return nil
}

func (i *Interface) handleCommand(input string) error {
	name, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "help", "h":
		i.printHelp()

		return nil
	case "exit", "quit", "q":
		fmt.Fprintln(i.out, "Shutting down...")

		return errExit
	case "observe":
		return i.observe(rest)
	case "extract":
		return i.extract(rest)
	case "data":
		return i.structuredData()
	case "clear":
		return i.usecase.Session.ClearHighlights(i.ctx)
	case "go":
		return i.navigate(rest)
	default:
		return i.executeTask(input)
	}
}

func (i *Interface) observe(arg string) error {
	req := i.usecase.Session.DefaultObserveRequest()

	if arg != "" {
		focus, err := strconv.Atoi(arg)
		if err != nil || focus < 0 {
			return apperr.InvalidReqError("observe", "index", errors.New("focus index must be a non-negative integer"))
		}

		req.Highlight = true
		req.Screenshot = true
		req.FocusIndex = focus
	}

	state, err := i.usecase.Session.Observe(i.ctx, req)
	if err != nil {
		return err
	}

	if err := output.PrintText(i.out, output.NewObservation(state)); err != nil {
		return err
	}

	if state.Structured != "" {
		fmt.Fprintf(i.out, "\nPage data:\n%s\n", state.Structured)
	}

	return nil
}

// extract parses "<strategy>[@attribute] <query>".
func (i *Interface) extract(arg string) error {
	spec, query, _ := strings.Cut(arg, " ")
	strategy, attribute, _ := strings.Cut(spec, "@")

	cfg := extract.Config{
		Strategy:  extract.Strategy(strings.ToLower(strategy)),
		Query:     strings.TrimSpace(query),
		Attribute: attribute,
		Multiple:  true,
	}

	if cfg.Strategy == "" {
		return apperr.InvalidReqError("extract", "strategy", errors.New("usage: extract <strategy>[@attribute] <query>"))
	}

	values, err := i.usecase.Session.Extract(i.ctx, cfg)
	if err != nil {
		return err
	}

	if len(values) == 0 {
		fmt.Fprintln(i.out, "No matches")

		return nil
	}

	return output.PrintText(i.out, values)
}

func (i *Interface) structuredData() error {
	data, err := i.usecase.Session.StructuredData(i.ctx)
	if err != nil {
		return err
	}

	return output.PrintYAML(i.out, data)
}

func (i *Interface) navigate(url string) error {
	if url == "" {
		return apperr.InvalidReqError("go", "url", errors.New("usage: go <url>"))
	}

	if err := i.usecase.Session.Dispatch(i.ctx, action.GoToURL{URL: url}); err != nil {
		return err
	}

	fmt.Fprintf(i.out, "🌐 Opened %s\n", url)

	return nil
}

func (i *Interface) executeTask(taskDescription string) error {
	fmt.Fprintf(i.out, "\n🤖 Starting task: %s\n", taskDescription)
	fmt.Fprintln(i.out, strings.Repeat("─", 53))

	i.running.Store(true)
	task, err := i.usecase.Agent.Execute(i.ctx, taskDescription)
	i.running.Store(false)

	fmt.Fprintln(i.out, "\n"+strings.Repeat("─", 53))

	if err != nil {
		fmt.Fprintf(i.out, "❌ Task failed: %v\n", err)
		if task != nil {
			fmt.Fprintf(i.out, "Steps taken: %d\n", len(task.Steps))
		}

		return nil
	}

	if task.Status == entity.TaskStatusCompleted {
		fmt.Fprintf(i.out, "✅ Task completed successfully!\n\n")
		fmt.Fprintf(i.out, "Result: %s\n", task.Result)
		fmt.Fprintf(i.out, "Steps taken: %d\n", len(task.Steps))
	} else {
		fmt.Fprintf(i.out, "❌ Task failed: %s\n", task.Error)
	}

	return nil
}

func (i *Interface) printBanner() {
	banner := `
╔═══════════════════════════════════════════════════════════╗
║                                                           ║
║              🤖  Browser Agent  🌐                        ║
║                                                           ║
║     Indexed DOM observation and LLM-driven actions        ║
║                                                           ║
╚═══════════════════════════════════════════════════════════╝
`
	fmt.Fprintln(i.out, banner)
}

func (i *Interface) printHelp() {
	help := fmt.Sprintf(`
Available commands:
  help, h                             - Show this help message
  observe [index]                     - Index the page; highlight index in focus
  extract <strategy>[@attr] <query>   - Extract data (%s)
  data                                - Show structured page data
  go <url>                            - Open a URL
  clear                               - Remove highlight boxes
  exit, quit, q                       - Exit the application

To start a task, simply type your request in natural language:
  Examples:
    - Find the cheapest flight from Berlin to Rome next Friday
    - Open the docs and copy the installation command
    - Log in and download the last invoice

The agent will autonomously execute the task (provider: %s).
`, strategyNames(), i.usecase.AI.Provider())
	fmt.Fprintln(i.out, help)
}

func strategyNames() string {
	names := make([]string, len(extract.Strategies))
	for n, s := range extract.Strategies {
		names[n] = string(s)
	}

	return strings.Join(names, ", ")
}
