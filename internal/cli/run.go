package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"browser-agent/internal/action"
	"browser-agent/internal/entity"
	"browser-agent/internal/output"
	"browser-agent/internal/usecase"
)

type runOptions struct {
	startURL string
	format   string
}

// taskReport is the printable outcome of one task.
type taskReport struct {
	ID     string       `json:"id" yaml:"id"`
	Task   string       `json:"task" yaml:"task"`
	Status string       `json:"status" yaml:"status"`
	Result string       `json:"result,omitempty" yaml:"result,omitempty"`
	Error  string       `json:"error,omitempty" yaml:"error,omitempty"`
	Steps  []stepReport `json:"steps" yaml:"steps"`
}

type stepReport struct {
	Action  string `json:"action" yaml:"action"`
	Success bool   `json:"success" yaml:"success"`
	Kind    string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

func newTaskReport(task *entity.Task) *taskReport {
	report := &taskReport{
		ID:     task.ID.String(),
		Task:   task.Description,
		Status: string(task.Status),
		Result: task.Result,
		Error:  task.Error,
		Steps:  make([]stepReport, 0, len(task.Steps)),
	}

	for _, s := range task.Steps {
		report.Steps = append(report.Steps, stepReport{
			Action:  s.Description,
			Success: s.Result.Success,
			Kind:    s.Result.Kind,
			Message: s.Result.Message,
		})
	}

	return report
}

func (r *taskReport) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Task: %s\nStatus: %s\n", r.Task, r.Status)

	if r.Result != "" {
		fmt.Fprintf(&b, "Result: %s\n", r.Result)
	}

	if r.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", r.Error)
	}

	fmt.Fprintf(&b, "Steps taken: %d\n", len(r.Steps))

	for n, s := range r.Steps {
		mark := "✓"
		if !s.Success {
			mark = "✗"
		}
		fmt.Fprintf(&b, "  %d. %s %s\n", n+1, mark, s.Action)
	}

	return b.String()
}

func (a *App) newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <task>",
		Short: "Run one task and print its outcome",
		Long: `Run a single natural language task to completion and print a report.

Examples:
  browser-agent run "find the contact email"
  browser-agent run --url https://news.ycombinator.com "open the top story" -f json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(opts.format)
			if err != nil {
				return err
			}

			description := strings.TrimSpace(strings.Join(args, " "))
			if description == "" {
				return errors.New("task must not be empty")
			}

			if opts.startURL != "" {
				if err := usecase.ValidateURL(opts.startURL); err != nil {
					return err
				}
			}

			var svc *usecase.Service

			return a.withApp(cmd.Context(), func(ctx context.Context) error {
				if opts.startURL != "" {
					if err := svc.Session.Dispatch(ctx, action.GoToURL{URL: opts.startURL}); err != nil {
						return err
					}
				}

				task, execErr := svc.Agent.Execute(ctx, description)
				if task != nil {
					if err := output.Print(a.stdout, format, newTaskReport(task)); err != nil {
						return err
					}
				}

				return execErr
			}, fx.Populate(&svc))
		},
	}

	cmd.Flags().StringVar(&opts.startURL, "url", "", "Open this URL before the first observation")
	cmd.Flags().StringVarP(&opts.format, "format", "f", string(output.FormatText), "Output format: text, json or yaml")

	return cmd
}
