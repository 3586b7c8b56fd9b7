package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/genesis/internal/config"
	"github.com/josephgoksu/genesis/internal/llm"
	"github.com/josephgoksu/genesis/internal/ui"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the selector can choose from",
	Long: `Models prints the model catalogue used for model selection, pricing
and context windows. With --remote it asks the Gemini API which models
your key can use.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if err := validateOutput(output); err != nil {
			return err
		}
		provider, _ := cmd.Flags().GetString("provider")
		if provider != "" {
			p, err := llm.ValidateProvider(provider)
			if err != nil {
				return err
			}
			provider = string(p)
		}

		if remote, _ := cmd.Flags().GetBool("remote"); remote {
			key := config.ResolveAPIKey(llm.ProviderGemini)
			if key == "" {
				return fmt.Errorf("--remote needs a Gemini API key (GEMINI_API_KEY or llm.apiKeys.gemini)")
			}
			models, err := llm.ListRemoteModels(cmd.Context(), key)
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), output, models, func() string {
				t := &ui.Table{Headers: []string{"MODEL", "NAME", "INPUT", "OUTPUT"}, MaxWidth: 48}
				for _, m := range models {
					t.Rows = append(t.Rows, []string{m.Name, m.DisplayName, strconv.Itoa(m.InputTokenLimit), strconv.Itoa(m.OutputTokenLimit)})
				}
				return t.Render()
			})
		}

		options := llm.ModelsForProvider(provider)
		return printOutput(cmd.OutOrStdout(), output, options, func() string {
			t := &ui.Table{Headers: []string{"PROVIDER", "MODEL", "CONTEXT", "PRICE", ""}}
			for _, o := range options {
				def := ""
				if o.IsDefault {
					def = ui.StyleSuccess.Render("default")
				}
				t.Rows = append(t.Rows, []string{o.Provider, o.ID, strconv.Itoa(o.ContextWindow), o.PriceInfo, def})
			}
			return t.Render()
		})
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().String("provider", "", "only show models for this provider")
	modelsCmd.Flags().Bool("remote", false, "list models from the Gemini API")
	modelsCmd.Flags().StringP("output", "o", outputText, "output format: text, json or yaml")
}
