package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/securebot-ai/securebot/pkg/presenter"
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Route a single query and print the response",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		text := strings.Join(args, " ")

		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.close()

		a.classifier.Warmup(ctx)
		if err := a.ollama.Ping(ctx); err != nil {
			return errors.Wrap(err, "ollama is unreachable")
		}

		decision := a.router.Route(ctx, text, nil)

		p := presenter.New()
		quiet, _ := cmd.Flags().GetBool("quiet")
		p.SetQuiet(quiet)

		fmt.Println(decision.Response)
		p.Stats(&presenter.RouteStats{
			Method: decision.Method,
			Engine: decision.Engine,
			Intent: string(decision.Intent),
			Cost:   decision.Cost,
		})
		return nil
	},
}

func init() {
	queryCmd.Flags().Bool("quiet", false, "Print only the response, no routing stats")
}
