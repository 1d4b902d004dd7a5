package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"approval-routing/internal/app"
	"approval-routing/internal/config"
	"approval-routing/internal/logging"
	"approval-routing/internal/repository"
	"approval-routing/internal/services"
	"approval-routing/pkg/models"
)

var simulateOpts struct {
	workflow string
	payload  string
	rules    string
	project  string
	at       string
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate a workflow file against a JSON document, offline",
	Long: `Simulate loads a workflow definition from YAML and a document from JSON and
prints the simulation report. Delegation rules can be supplied as a YAML list;
role memberships come from directory.roles in the config.`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simulateOpts.workflow, "workflow", "", "workflow YAML file (required)")
	simulateCmd.Flags().StringVar(&simulateOpts.payload, "payload", "", "document JSON file (required)")
	simulateCmd.Flags().StringVar(&simulateOpts.rules, "rules", "", "delegation rules YAML file")
	simulateCmd.Flags().StringVar(&simulateOpts.project, "project", "", "project of the document")
	simulateCmd.Flags().StringVar(&simulateOpts.at, "at", "", "RFC 3339 instant for delegation windows (default now)")
	_ = simulateCmd.MarkFlagRequired("workflow")
	_ = simulateCmd.MarkFlagRequired("payload")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	var wf models.Workflow
	if err := readYAML(simulateOpts.workflow, &wf); err != nil {
		return err
	}

	data, err := os.ReadFile(simulateOpts.payload)
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to parse payload %s: %w", simulateOpts.payload, err)
	}

	req := services.SimulateRequest{Payload: payload, Project: simulateOpts.project}
	if simulateOpts.at != "" {
		at, err := time.Parse(time.RFC3339, simulateOpts.at)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		req.At = &at
	}

	svc := services.NewRoutingService(repository.NewMemoryStore(),
		services.WithDirectory(app.NewDirectory(cfg)),
		services.WithLogger(logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)))

	if simulateOpts.rules != "" {
		var rules []models.DelegationRule
		if err := readYAML(simulateOpts.rules, &rules); err != nil {
			return err
		}
		for _, rule := range rules {
			if _, err := svc.SaveRule(cmd.Context(), rule); err != nil {
				return fmt.Errorf("rule %s: %w", rule.ID, err)
			}
		}
	}

	rep, err := svc.SimulateInline(cmd.Context(), wf, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func readYAML(path string, dest any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
