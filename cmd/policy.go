/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/josephgoksu/genesis/internal/admission"
	"github.com/josephgoksu/genesis/internal/config"
	"github.com/josephgoksu/genesis/internal/qa"
	"github.com/josephgoksu/genesis/internal/registry"
	"github.com/josephgoksu/genesis/internal/ui"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage the admission policies checked before registration",
	Long: `Admission policies are Rego files in the policy directory
(policy.dir, default ~/.genesis/policies). Every message in their deny set
blocks a registration; warn messages are recorded on the decision.

Examples:
  genesis policy init            # write the starter policy and its tests
  genesis policy list            # list loaded policy files
  genesis policy validate        # compile every policy
  genesis policy test            # run *_test.rego unit tests
  genesis policy check <agent>   # re-evaluate a registered agent`,
}

var policyInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the starter policy and its tests",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		dir := config.PoliciesDir()
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create policies directory: %w", err)
		}

		files := map[string]string{
			"starter.rego":      admission.StarterPolicy,
			"starter_test.rego": admission.StarterPolicyTest,
		}
		for _, name := range []string{"starter.rego", "starter_test.rego"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil && !force {
				cmd.Printf("Policy file already exists: %s (use --force to overwrite)\n", path)
				continue
			}
			if err := os.WriteFile(path, []byte(files[name]), 0644); err != nil {
				return fmt.Errorf("write %s: %w", name, err)
			}
			cmd.Printf("✓ Created %s\n", path)
		}

		cmd.Println("\nThe starter policy:")
		cmd.Println("  • denies models missing from the catalogue")
		cmd.Println("  • denies agents with more than 20 capabilities")
		cmd.Println("  • warns when QA needed two or more adjustments")
		cmd.Println("  • warns on models above $5 per 1M input tokens")
		return nil
	},
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded policy files",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := config.PoliciesDir()
		policies, err := admission.NewLoader(afero.NewOsFs(), dir).LoadAll()
		if err != nil {
			return fmt.Errorf("load policies: %w", err)
		}
		if len(policies) == 0 {
			cmd.Println("No policies loaded.")
			cmd.Println("Run 'genesis policy init' to create the starter policy.")
			return nil
		}
		cmd.Printf("Policies directory: %s\n", dir)
		cmd.Printf("Loaded %d policy file(s):\n\n", len(policies))
		for _, p := range policies {
			rel, err := filepath.Rel(dir, p.Path)
			if err != nil {
				rel = p.Path
			}
			cmd.Printf("  • %s (%s)\n", p.Name, rel)
		}
		return nil
	},
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Compile policies and report syntax errors",
	Long: `Validate compiles the given .rego files, or every policy in the policy
directory when none are given, together with the genesis builtins.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fs := afero.NewOsFs()
		loader := admission.NewLoader(fs, config.PoliciesDir())

		var policies []*admission.PolicyFile
		if len(args) == 0 {
			all, err := loader.LoadAll()
			if err != nil {
				return fmt.Errorf("load policies: %w", err)
			}
			policies = all
		}
		for _, path := range args {
			p, err := loader.LoadFile(path)
			if err != nil {
				return err
			}
			policies = append(policies, p)
		}
		if len(policies) == 0 {
			cmd.Println("No policies to validate.")
			return nil
		}

		failed := 0
		for _, p := range policies {
			if err := admission.ValidatePolicy(cmd.Context(), p.Name, p.Content); err != nil {
				failed++
				cmd.Printf("%s %s: %v\n", ui.StyleError.Render("✗"), p.Path, err)
				continue
			}
			cmd.Printf("%s %s\n", ui.StyleSuccess.Render("✓"), p.Path)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d policies failed to compile", failed, len(policies))
		}
		return nil
	},
}

var policyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Run *_test.rego policy unit tests",
	Long: `Test runs the OPA unit tests next to the policies. Test rules start
with test_ and live in files ending in _test.rego:

  package genesis.admission

  import rego.v1

  test_unknown_model_denied if {
      count(deny) == 1 with input as {"agent": {"selected_model": "nope", "capabilities": []}, "retry_count": 0}
  }`,
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := admission.NewTestRunner(afero.NewOsFs(), config.PoliciesDir()).Run(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Print(summary.FormatSummary())
		if !summary.AllPassed() {
			return fmt.Errorf("%d policy tests failed", summary.Failed+summary.Errored)
		}
		return nil
	},
}

var policyCheckCmd = &cobra.Command{
	Use:   "check <agent-id>",
	Short: "Evaluate a registered agent against the current policies",
	Long: `Check re-runs admission for an agent already in the registry. Nothing
is written; use it to see how a policy change would treat existing agents.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		agent, err := store.GetAgent(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		engine, err := admission.NewEngine(cmd.Context(), admission.Config{Dir: config.PoliciesDir()})
		if err != nil {
			return err
		}

		d, err := engine.Admit(cmd.Context(), registry.AdmissionInput{
			RequestID: agent.RequestID,
			Spec:      agent.Spec,
			Verdict: &qa.Verdict{
				Passed:       true,
				AverageScore: agent.AverageScore,
				PassRate:     agent.PassRate,
				Variance:     agent.Variance,
			},
			RetryCount: agent.RetryCount,
		})
		if err != nil {
			return err
		}

		if d.Allowed() {
			cmd.Printf("%s %s would be admitted (%d policies)\n", ui.StyleSuccess.Render("✓"), agent.ID, engine.PolicyCount())
		} else {
			cmd.Printf("%s %s would be denied\n", ui.StyleError.Render("✗"), agent.ID)
		}
		for _, v := range d.Violations {
			cmd.Printf("  deny: %s\n", v)
		}
		for _, w := range d.Warnings {
			cmd.Printf("  warn: %s\n", w)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyInitCmd, policyListCmd, policyValidateCmd, policyTestCmd, policyCheckCmd)
	policyInitCmd.Flags().Bool("force", false, "overwrite existing starter files")
}
