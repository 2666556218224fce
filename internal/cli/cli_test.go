package cli

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"care-hub/backend/config"
	"care-hub/backend/internal/model"
	"care-hub/backend/pkg/database"
	"care-hub/backend/pkg/jwt"
)

const testSecret = "cli-test-secret-0123456789"

// setupEnv 使用临时 SQLite 文件并写入初始成员
func setupEnv(t *testing.T) *model.Member {
	t.Helper()
	path := filepath.Join(t.TempDir(), "care_hub.db")
	t.Setenv("CAREHUB_AUTH_JWT_SECRET", testSecret)
	t.Setenv("CAREHUB_DB_DRIVER", "sqlite")
	t.Setenv("CAREHUB_DB_SQLITE_PATH", path)
	t.Setenv("CAREHUB_LOG_LEVEL", "error")

	db, err := database.NewDB(&config.DatabaseConfig{Driver: "sqlite", SQLitePath: path}, "error", zap.NewNop())
	if err != nil {
		t.Fatalf("打开数据库失败: %v", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("建表失败: %v", err)
	}

	now := database.NowFunc()
	m := &model.Member{
		MemberID:    model.NewID(),
		CareSpaceID: model.NewID(),
		Name:        "Rita",
		Role:        model.RoleCoordinator,
		IsActive:    true,
		BaseModel:   model.BaseModel{CreatedAt: now, UpdatedAt: now},
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("创建成员失败: %v", err)
	}

	denied := now.Add(-30 * 24 * time.Hour)
	old := &model.ChangeRequest{
		RequestID:    model.NewID(),
		CareSpaceID:  m.CareSpaceID,
		TimeEntryID:  model.NewID(),
		RequestedBy:  m.MemberID,
		NewStartAt:   denied,
		NewEndAt:     denied.Add(8 * time.Hour),
		NewShiftType: "cover",
		Status:       model.ChangeRequestDenied,
		DeniedBy:     &m.MemberID,
		DeniedAt:     &denied,
		BaseModel:    model.BaseModel{CreatedAt: denied, UpdatedAt: denied},
	}
	if err := db.Create(old).Error; err != nil {
		t.Fatalf("创建变更申请失败: %v", err)
	}
	return m
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCmd(t *testing.T) {
	m := setupEnv(t)

	out, err := execute(t, TokenCmd(), "--member", m.MemberID, "--ttl", "1h")
	if err != nil {
		t.Fatalf("token 失败: %v", err)
	}

	mgr := jwt.NewManager(&config.AuthConfig{JWTSecret: testSecret})
	claims, err := mgr.ParseToken(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("签发的 Token 无法解析: %v", err)
	}
	if claims.UserID != m.MemberID || claims.Role != model.RoleCoordinator || claims.CareSpaceID != m.CareSpaceID {
		t.Errorf("Claims 不符: %+v", claims)
	}
	if ttl := claims.RemainingTTL(); ttl <= 50*time.Minute || ttl > time.Hour {
		t.Errorf("有效期应约为 1h，实际 %v", ttl)
	}

	if _, err := execute(t, TokenCmd(), "--member", model.NewID()); err == nil {
		t.Error("不存在的成员应报错")
	}
	if _, err := execute(t, TokenCmd()); err == nil {
		t.Error("缺少 --member 应报错")
	}
}

func TestTokenRevokeCmd(t *testing.T) {
	setupEnv(t)
	mr := miniredis.RunT(t)
	t.Setenv("CAREHUB_REDIS_ADDR", mr.Addr())

	if _, err := execute(t, TokenCmd(), "revoke", "--jti", "jti-1", "--ttl", "10m"); err != nil {
		t.Fatalf("revoke 失败: %v", err)
	}
	if !mr.Exists("token:blacklist:jti-1") {
		t.Error("黑名单未写入")
	}
	if ttl := mr.TTL("token:blacklist:jti-1"); ttl != 10*time.Minute {
		t.Errorf("黑名单 TTL 应为 10m，实际 %v", ttl)
	}
}

func TestSweepCmd(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, SweepCmd())
	if err != nil {
		t.Fatalf("sweep 失败: %v", err)
	}
	if !strings.Contains(out, "变更申请归档:   1") {
		t.Errorf("应归档 1 条变更申请，输出:\n%s", out)
	}

	out, err = execute(t, SweepCmd())
	if err != nil {
		t.Fatalf("二次 sweep 失败: %v", err)
	}
	if !strings.Contains(out, "没有需要归档的申请") {
		t.Errorf("二次执行应无可归档数据，输出:\n%s", out)
	}
}

func TestMigrateCmd_SQLite(t *testing.T) {
	setupEnv(t)

	if _, err := execute(t, MigrateCmd(), "up"); err != nil {
		t.Fatalf("migrate up 失败: %v", err)
	}
	if _, err := execute(t, MigrateCmd(), "down"); err == nil {
		t.Error("SQLite 回滚应报错")
	}
}
