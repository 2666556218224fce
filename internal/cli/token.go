package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"care-hub/backend/internal/repository"
	"care-hub/backend/pkg/jwt"
)

// TokenCmd 运维 Token 管理
func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "为成员签发 Access Token",
		Long: `按成员的角色与照护空间签发 Access Token，用于联调与运维脚本。

Examples:
  carehubctl token --member 5f0c...
  carehubctl token --member 5f0c... --ttl 1h
  carehubctl token revoke --jti 8a1d... --ttl 15m`,
		Args: cobra.NoArgs,
		RunE: runIssueToken,
	}

	cmd.Flags().String("member", "", "成员 ID（必填）")
	cmd.Flags().Duration("ttl", 0, "有效期（默认使用 auth.access_token_ttl）")
	_ = cmd.MarkFlagRequired("member")

	cmd.AddCommand(tokenRevokeCmd())
	return cmd
}

func runIssueToken(cmd *cobra.Command, args []string) error {
	memberID, _ := cmd.Flags().GetString("member")
	ttl, _ := cmd.Flags().GetDuration("ttl")

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

	member, err := repository.NewRepository(db).Member.GetByID(context.Background(), memberID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("成员 %s 不存在", memberID)
	}
	if err != nil {
		return fmt.Errorf("查询成员失败: %w", err)
	}
	if !member.IsActive {
		return fmt.Errorf("成员 %s 已停用", memberID)
	}

	if ttl <= 0 {
		ttl = env.cfg.Auth.AccessTokenTTL
	}
	token, err := jwt.NewManager(&env.cfg.Auth).GenerateAccessTokenWithTTL(member.MemberID, member.Role, member.CareSpaceID, ttl)
	if err != nil {
		return fmt.Errorf("签发 Token 失败: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s (%s) 有效期 %s\n",
		color.New(color.FgGreen).Sprint("✓"), member.Name, color.New(color.FgCyan).Sprint(member.Role), ttl)
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func tokenRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "将 Token 加入黑名单",
		Long:  `按 JWT ID 吊销 Token。黑名单保存在 Redis 中，ttl 应不短于 Token 剩余有效期。`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jti, _ := cmd.Flags().GetString("jti")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			if ttl <= 0 {
				ttl = env.cfg.Auth.AccessTokenTTL
			}
			rdb, err := env.openRedis()
			if err != nil {
				return err
			}
			defer rdb.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := rdb.BlacklistToken(ctx, jti, ttl); err != nil {
				return fmt.Errorf("写入黑名单失败: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s 已吊销 %s\n", color.New(color.FgYellow).Sprint("!"), jti)
			return nil
		},
	}

	cmd.Flags().String("jti", "", "Token 的 JWT ID（必填）")
	cmd.Flags().Duration("ttl", 0, "黑名单保留时长（默认使用 auth.access_token_ttl）")
	_ = cmd.MarkFlagRequired("jti")
	return cmd
}
