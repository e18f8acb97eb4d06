package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mixchat/internal/config"
)

// InitOptions init 命令选项
type InitOptions struct {
	Force bool
}

// NewInitCmd 创建 init 命令
func NewInitCmd() *cobra.Command {
	opts := &InitOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize mixchat configuration",
		Long:  "Write the default configuration file and create the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := requireCLIContext(cmd)
			if err != nil {
				return err
			}
			return RunInit(cmd, cliCtx, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "overwrite existing configuration")

	return cmd
}

// RunInit 执行初始化
func RunInit(cmd *cobra.Command, cliCtx *CLIContext, opts *InitOptions) error {
	configPath := cliCtx.ConfigPath

	// 检查是否已存在
	if _, err := os.Stat(configPath); err == nil && !opts.Force {
		return fmt.Errorf("configuration already exists at %s (use --force to overwrite)", configPath)
	}

	if err := config.SaveTo(cliCtx.Config, configPath); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	// 打开数据库即执行迁移
	db, err := cliCtx.GetStorage()
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration written to %s\n", configPath)
	fmt.Fprintf(out, "Database ready at %s\n", db.Path())
	return nil
}
