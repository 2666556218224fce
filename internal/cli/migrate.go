package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"care-hub/backend/pkg/database"
)

// MigrateCmd 数据库迁移
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "数据库迁移",
		Long: `执行或回滚数据库迁移。

PostgreSQL 使用 pkg/database/migrations 下的版本化 SQL；
SQLite 仅支持 up（按模型同步表结构）。

Examples:
  carehubctl migrate up
  carehubctl migrate down --steps 1`,
	}

	cmd.AddCommand(migrateUpCmd())
	cmd.AddCommand(migrateDownCmd())
	return cmd
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "应用全部未执行的迁移",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			db, closeDB, err := env.openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := database.Migrate(db, env.cfg.Database.Driver, env.logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s 迁移完成 (%s)\n", color.New(color.FgGreen).Sprint("✓"), env.cfg.Database.Driver)
			return nil
		},
	}
}

func migrateDownCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "回滚迁移",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")

			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			if env.cfg.Database.Driver == "sqlite" {
				return fmt.Errorf("SQLite 不支持回滚迁移")
			}

			db, closeDB, err := env.openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			if err := database.RollbackMigrations(sqlDB, steps, env.logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s 已回滚 %d 个版本\n", color.New(color.FgYellow).Sprint("!"), steps)
			return nil
		},
	}

	cmd.Flags().Int("steps", 1, "回滚的版本数")
	return cmd
}
