package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"care-hub/backend/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "carehubctl",
		Short: "care-hub 运维工具",
		Long: `carehubctl 用于 care-hub 后端的日常运维：
数据库迁移、手动触发已拒绝申请的归档清理、签发与吊销运维 Token。`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "配置文件路径（默认查找 ./config/config.yaml）")

	rootCmd.AddCommand(cli.MigrateCmd())
	rootCmd.AddCommand(cli.SweepCmd())
	rootCmd.AddCommand(cli.TokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
