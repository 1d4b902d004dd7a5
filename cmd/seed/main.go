package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"approval-routing/internal/app"
	"approval-routing/internal/config"
	"approval-routing/internal/logging"
	"approval-routing/internal/repository"
	"approval-routing/internal/services"
	"approval-routing/pkg/models"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

type fixtures struct {
	Workflows []models.Workflow       `yaml:"workflows"`
	Rules     []models.DelegationRule `yaml:"rules"`
}

var (
	configPath   string
	fixturesPath string
)

var rootCmd = &cobra.Command{
	Use:          "seed",
	Short:        "Load example workflows and delegation rules into the configured store",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runSeed,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.Flags().StringVar(&fixturesPath, "fixtures", "", "fixtures YAML file (default: built-in examples)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)

	data := defaultFixtures
	if fixturesPath != "" {
		if data, err = os.ReadFile(fixturesPath); err != nil {
			return fmt.Errorf("failed to read fixtures: %w", err)
		}
	}
	var fx fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return fmt.Errorf("failed to parse fixtures: %w", err)
	}

	ctx := cmd.Context()
	store, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := services.NewRoutingService(store, services.WithLogger(logger))
	if err := seed(ctx, svc, fx, logger); err != nil {
		return err
	}
	logger.Info("Seeding complete!")
	return nil
}

// seed saves fixtures, skipping workflows whose name already exists and rules
// whose id already exists.
func seed(ctx context.Context, svc *services.RoutingService, fx fixtures, logger *slog.Logger) error {
	existing, err := svc.ListWorkflows(ctx)
	if err != nil {
		return fmt.Errorf("failed to list existing workflows: %w", err)
	}
	existingMap := make(map[string]bool, len(existing))
	for _, w := range existing {
		existingMap[w.Name] = true
	}

	for _, wf := range fx.Workflows {
		if existingMap[wf.Name] {
			logger.Info("Skipping existing workflow", "name", wf.Name)
			continue
		}
		saved, err := svc.SaveWorkflow(ctx, wf)
		if err != nil {
			return fmt.Errorf("failed to seed workflow %s: %w", wf.Name, err)
		}
		logger.Info("Seeded workflow", "name", saved.Name, "id", saved.ID)
	}

	for _, rule := range fx.Rules {
		if rule.ID != "" {
			_, err := svc.GetRule(ctx, rule.ID)
			if err == nil {
				logger.Info("Skipping existing delegation rule", "id", rule.ID)
				continue
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
		}
		result, err := svc.SaveRule(ctx, rule)
		if err != nil {
			return fmt.Errorf("failed to seed delegation rule %s: %w", rule.ID, err)
		}
		logger.Info("Seeded delegation rule", "id", result.Rule.ID, "conflicts", len(result.Conflicts))
	}
	return nil
}
