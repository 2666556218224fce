package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"care-hub/backend/internal/repository"
	"care-hub/backend/internal/service"
)

// SweepCmd 立即执行一次自动归档
func SweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "归档超过保留期的已拒绝申请",
		Long: `立即执行一次归档清理，不受节流间隔与 Redis 租约限制：
  - 已拒绝且超过保留期的变更申请 → archived
  - 已拒绝且超过保留期的请假与请假撤销申请 → 删除

保留期由 workflow.denied_retention 配置。`,
		Args: cobra.NoArgs,
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

			svc := service.NewService(env.cfg.Workflow, repository.NewRepository(db), env.logger)
			report, err := svc.Archiver.Sweep(context.Background())
			if err != nil {
				return err
			}

			printSweepReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func printSweepReport(w io.Writer, report service.SweepReport) {
	if report.Total() == 0 {
		fmt.Fprintf(w, "%s 没有需要归档的申请\n", color.New(color.FgBlue).Sprint("-"))
		return
	}
	fmt.Fprintf(w, "%s 归档清理完成\n", color.New(color.FgGreen).Sprint("✓"))
	fmt.Fprintf(w, "  变更申请归档:   %d\n", report.ArchivedChangeRequests)
	fmt.Fprintf(w, "  请假申请删除:   %d\n", report.DeletedLeaveRequests)
	fmt.Fprintf(w, "  撤销申请删除:   %d\n", report.DeletedLeaveCancellations)
}
