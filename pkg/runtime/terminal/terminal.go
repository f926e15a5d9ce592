package terminal

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/de-tools/commerce-atlas/pkg/pipeline"
	"github.com/de-tools/commerce-atlas/pkg/runtime/terminal/commands"
	"github.com/de-tools/commerce-atlas/pkg/runtime/terminal/export"
	"github.com/de-tools/commerce-atlas/pkg/services/config"
	"github.com/de-tools/commerce-atlas/pkg/store/files"
	"github.com/de-tools/commerce-atlas/pkg/store/warehouse"
	"github.com/spf13/cobra"
)

// CLI represents the command-line interface
type CLI struct {
	deps       *commands.Deps
	configPath string
	rootCmd    *cobra.Command
}

// Options contain configuration for the CLI. Zero fields fall back to the
// production collaborators.
type Options struct {
	Output        io.Writer
	Registry      warehouse.Registry
	Sessions      commands.SessionFactory
	Files         commands.FileFactory
	LoadConfig    func(path string) (*config.Config, error)
	RunnerOptions []pipeline.Option
	Now           func() time.Time
}

// NewCLI creates a new CLI instance
func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Registry == nil {
		opts.Registry = warehouse.DefaultRegistry()
	}
	if opts.Sessions == nil {
		opts.Sessions = commands.ShopifySessions
	}
	if opts.Files == nil {
		opts.Files = files.New
	}
	if opts.LoadConfig == nil {
		opts.LoadConfig = config.Load
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	cli := &CLI{
		deps: &commands.Deps{
			Reporter:      export.NewReporter(opts.Output),
			Console:       opts.Output,
			LoadConfig:    opts.LoadConfig,
			Registry:      opts.Registry,
			Sessions:      opts.Sessions,
			Files:         opts.Files,
			RunnerOptions: opts.RunnerOptions,
			Now:           opts.Now,
		},
	}

	cli.rootCmd = cli.newRootCmd()
	return cli
}

func (cli *CLI) Execute(ctx context.Context) error {
	return cli.rootCmd.ExecuteContext(ctx)
}

// SetArgs overrides the command line, mainly for tests.
func (cli *CLI) SetArgs(args []string) {
	cli.rootCmd.SetArgs(args)
}

func (cli *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "atlas",
		Short: "Shop sales and inventory consolidation",
	}
	cmd.PersistentFlags().StringVarP(&cli.configPath, "config", "c", "", "Path to the YAML config file")

	cmd.AddCommand(commands.NewPipelineCmd(pipeline.Snapshot,
		"Consolidate recent SKU sales, inventory and channel performance", &cli.configPath, cli.deps))
	cmd.AddCommand(commands.NewPipelineCmd(pipeline.Weekly,
		"Load a year of weekly inventory movement per SKU", &cli.configPath, cli.deps))
	cmd.AddCommand(commands.NewPipelineCmd(pipeline.Backfill,
		"Load twelve months of monthly SKU sales on a full calendar", &cli.configPath, cli.deps))

	return cmd
}
