package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/tierup/internal/config"
	"github.com/ShayCichocki/tierup/internal/state"
	"github.com/ShayCichocki/tierup/pkg/models"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a tierup project",
	Long: `Initialize a directory for use with tierup.

This command:
  - Creates the .tierup directory structure
  - Creates the run history database
  - Writes a .tierup.yaml template
  - Adds tierup entries to .gitignore
  - Reports which provider API keys are available

Examples:
  tierup init              # Initialize current directory
  tierup init ./myproject  # Initialize specific directory
  tierup init --force      # Reinitialize even if already set up`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing tierup in %s...\n\n", absPath)

	tierupDir := filepath.Join(absPath, ".tierup")
	if _, err := os.Stat(tierupDir); err == nil && !initForce {
		fmt.Println("Directory already initialized. Use --force to reinitialize.")
		return nil
	}

	if err := createProjectLayout(absPath); err != nil {
		return err
	}
	printStatus("✓", "Created .tierup directory structure", color.FgGreen)

	db, err := state.OpenProject(absPath)
	if err != nil {
		return fmt.Errorf("creating run database: %w", err)
	}
	db.Close()
	printStatus("✓", "Created run history database", color.FgGreen)

	created, err := createProjectConfig(absPath)
	if err != nil {
		return fmt.Errorf("creating project config: %w", err)
	}
	if created {
		printStatus("✓", "Created "+config.ProjectConfigName+" template", color.FgGreen)
	} else {
		printStatus("✓", config.ProjectConfigName+" already exists", color.FgGreen)
	}

	if err := updateGitignore(absPath); err != nil {
		return fmt.Errorf("updating .gitignore: %w", err)
	}
	printStatus("✓", "Updated .gitignore with tierup entries", color.FgGreen)

	cfg, err := loadConfig()
	if err != nil {
		cfg = config.Default()
	}
	anyKey := reportAPIKeys(cfg)

	fmt.Printf("\n%s tierup initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	if !anyKey {
		fmt.Println("  1. Set an API key:")
		fmt.Println("     export ANTHROPIC_API_KEY=your-key-here")
		fmt.Println()
	}
	fmt.Println("  2. Preview the cost of a run:")
	fmt.Println("     tierup estimate --items 20")
	fmt.Println()
	fmt.Println("  3. Run:")
	fmt.Println("     tierup run \"your objective here\" --items 20")
	fmt.Println()

	return nil
}

func createProjectLayout(root string) error {
	for _, dir := range []string{
		filepath.Join(root, ".tierup"),
		filepath.Join(root, ".tierup", "logs"),
		filepath.Join(root, ".tierup", "signals"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// reportAPIKeys prints key status per provider and reports whether any is usable.
func reportAPIKeys(cfg *config.Config) bool {
	found := false
	for _, provider := range []string{models.ProviderAnthropic, models.ProviderOpenAI} {
		key, source, err := config.GetAPIKey(cfg, provider)
		if err != nil {
			printStatus("⚠", provider+" API key not set (you can set it later)", color.FgYellow)
			continue
		}
		if err := config.ValidateAPIKey(provider, key); err != nil {
			printStatus("⚠", fmt.Sprintf("%s API key from %s looks wrong: %v", provider, source, err), color.FgYellow)
			continue
		}
		printStatus("✓", fmt.Sprintf("%s API key found (%s, %s)", provider, config.MaskAPIKey(key), source), color.FgGreen)
		found = true
	}
	if cfg.Anthropic.UseBedrock {
		printStatus("✓", "Anthropic via Bedrock enabled", color.FgGreen)
		found = true
	}
	return found
}

var gitignoreEntries = []string{
	".tierup/state.db*",
	".tierup/logs/",
	".tierup/signals/",
	".tierup/telemetry.jsonl",
}

// updateGitignore adds tierup entries to .gitignore if not present.
func updateGitignore(repoPath string) error {
	gitignorePath := filepath.Join(repoPath, ".gitignore")

	var existing string
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existing = string(data)
	}

	var missing []string
	for _, entry := range gitignoreEntries {
		if !strings.Contains(existing, entry) {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(existing)
	if len(existing) > 0 && !strings.HasSuffix(existing, "\n") {
		b.WriteString("\n")
	}
	if !strings.Contains(existing, "# tierup") {
		if len(existing) > 0 {
			b.WriteString("\n")
		}
		b.WriteString("# tierup\n")
	}
	for _, entry := range missing {
		b.WriteString(entry + "\n")
	}

	return os.WriteFile(gitignorePath, []byte(b.String()), 0644)
}

const projectConfigTemplate = `# tierup project configuration
# Overrides ~/.config/tierup/config.yaml for this project.

# models:
#   cheap: claude-3-5-haiku-20241022
#   capable: claude-sonnet-4-20250514
#   premium: claude-opus-4-5-20251101

# escalation:
#   tiers: [cheap, capable, premium]
#   cheap_to_capable_min_cqs: 75
#   capable_to_premium_min_cqs: 85

# budget:
#   max_cost: 5.00
#   abort_on_exceeded: false
#   auto_approve_under: 1.00

# executor:
#   concurrency: 4
#   measure_command: go test ./...

# telemetry:
#   jsonl_path: .tierup/telemetry.jsonl
#   sqlite: true
#   metrics_addr: ":9464"
`

// createProjectConfig writes the .tierup.yaml template unless one exists.
func createProjectConfig(repoPath string) (bool, error) {
	path := filepath.Join(repoPath, config.ProjectConfigName)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(projectConfigTemplate), 0644); err != nil {
		return false, err
	}
	return true, nil
}
