package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"browser-agent/internal/action"
	"browser-agent/internal/dom"
	"browser-agent/internal/entity"
	"browser-agent/internal/extract"
	"browser-agent/internal/output"
	"browser-agent/internal/usecase"
)

type observeOptions struct {
	format     string
	highlight  bool
	focus      int
	screenshot bool
	structured bool
	strategy   string
	query      string
	attribute  string
}

func (o *observeOptions) request() entity.ObserveRequest {
	return entity.ObserveRequest{
		Highlight:  o.highlight || o.focus >= 0,
		FocusIndex: o.focus,
		Screenshot: o.screenshot || o.highlight || o.focus >= 0,
	}
}

func (o *observeOptions) extraction() (*extract.Config, error) {
	if o.strategy == "" {
		if o.query != "" || o.attribute != "" {
			return nil, fmt.Errorf("--query and --attr need --extract")
		}

		return nil, nil
	}

	strategy := extract.Strategy(o.strategy)
	if !slices.Contains(extract.Strategies, strategy) {
		return nil, fmt.Errorf("unknown extraction strategy %q", o.strategy)
	}

	return &extract.Config{
		Strategy:  strategy,
		Query:     o.query,
		Attribute: o.attribute,
		Multiple:  true,
	}, nil
}

func (a *App) newObserveCmd() *cobra.Command {
	opts := &observeOptions{}

	cmd := &cobra.Command{
		Use:   "observe <url>",
		Short: "Open a page and print its indexed element tree",
		Long: `Open a page, build the element tree and print it together with the
interactive elements by index.

Examples:
  browser-agent observe https://example.com
  browser-agent observe https://example.com -f json --structured
  browser-agent observe https://example.com --focus 3       # highlight index 3 and screenshot
  browser-agent observe https://example.com --extract xpath --query "//a" --attr href`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(opts.format)
			if err != nil {
				return err
			}

			url := args[0]
			if err := usecase.ValidateURL(url); err != nil {
				return err
			}

			if opts.focus < dom.NoFocus {
				return fmt.Errorf("--focus must be a non-negative index")
			}

			extraction, err := opts.extraction()
			if err != nil {
				return err
			}

			var svc *usecase.Service

			return a.withApp(cmd.Context(), func(ctx context.Context) error {
				obs, err := observePage(ctx, svc, url, opts, extraction)
				if err != nil {
					return err
				}

				return output.Print(a.stdout, format, obs)
			}, fx.Populate(&svc))
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.format, "format", "f", string(output.FormatText), "Output format: text, json or yaml")
	flags.BoolVar(&opts.highlight, "highlight", false, "Draw index boxes for the screenshot")
	flags.IntVar(&opts.focus, "focus", dom.NoFocus, "Highlight this index with the focus color")
	flags.BoolVar(&opts.screenshot, "screenshot", false, "Save a screenshot under OUTPUT_DIR")
	flags.BoolVar(&opts.structured, "structured", false, "Include structured page data")
	flags.StringVar(&opts.strategy, "extract", "", "Extraction strategy: css, xpath, regex, json_ld or microdata")
	flags.StringVar(&opts.query, "query", "", "Extraction query")
	flags.StringVar(&opts.attribute, "attr", "", "Attribute to extract instead of text")

	return cmd
}

func observePage(ctx context.Context, svc *usecase.Service, url string, opts *observeOptions, extraction *extract.Config) (*output.Observation, error) {
	if err := svc.Session.Dispatch(ctx, action.GoToURL{URL: url}); err != nil {
		return nil, err
	}

	state, err := svc.Session.Observe(ctx, opts.request())
	if err != nil {
		return nil, err
	}

	obs := output.NewObservation(state)

	if opts.structured {
		if obs.Structured, err = svc.Session.StructuredData(ctx); err != nil {
			return nil, err
		}
	}

	if extraction != nil {
		if obs.Extracted, err = svc.Session.Extract(ctx, *extraction); err != nil {
			return nil, err
		}
	}

	return obs, nil
}
