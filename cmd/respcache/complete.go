package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pario-ai/respcache/pkg/llm"
	"github.com/pario-ai/respcache/pkg/llm/openai"
	"github.com/pario-ai/respcache/pkg/models"
)

func newCompleteCmd(configPath *string) *cobra.Command {
	var (
		model        string
		prompt       string
		systemPrompt string
		params       []string
	)
	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Run an OpenAI chat completion through the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := models.ParseParams(params)
			if err != nil {
				return err
			}
			if prompt == "" && len(args) > 0 {
				prompt = strings.Join(args, " ")
			}
			if prompt == "" {
				return fmt.Errorf("a prompt is required (--prompt or arguments)")
			}

			ctx := cmd.Context()
			e, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			m, err := openai.New(model, openai.Config{
				APIKey:     e.cfg.OpenAI.APIKey,
				BaseURL:    e.cfg.OpenAI.BaseURL,
				MaxRetries: e.cfg.OpenAI.MaxRetries,
			})
			if err != nil {
				return err
			}

			responses, err := llm.NewCached(m, e.cache, e.log).Complete(ctx, llm.Request{
				Prompt:       prompt,
				SystemPrompt: systemPrompt,
				Params:       p,
			})
			if err != nil {
				return err
			}
			for i, r := range responses {
				if len(responses) > 1 {
					fmt.Fprintf(cmd.OutOrStdout(), "--- %d ---\n", i+1)
				}
				fmt.Fprintln(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "gpt-4o-mini", "OpenAI model name")
	cmd.Flags().StringVar(&prompt, "prompt", "", "user prompt")
	cmd.Flags().StringVar(&systemPrompt, "system", "", "system prompt")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "model parameter as name=value (repeatable)")
	return cmd
}
