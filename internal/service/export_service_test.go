package service

import (
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"

	"care-hub/backend/internal/dto"
)

func TestExportService_NoItems(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.svc.Export.ExportChangeRequests(env.ctx, env.actor(env.reviewer), &dto.ExportChangeRequestsRequest{From: "2024-01-01", To: "2024-01-31"})
	if !errors.Is(err, ErrExportNoItems) {
		t.Errorf("期望 ErrExportNoItems，实际: %v", err)
	}
}

func TestExportService_BadRange(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.svc.Export.ExportChangeRequests(env.ctx, env.actor(env.reviewer), &dto.ExportChangeRequestsRequest{From: "2024-06-30", To: "2024-06-01"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("期望 ErrValidation，实际: %v", err)
	}
}

func TestExportService_Success(t *testing.T) {
	env := newTestEnv(t)
	reviewer := env.actor(env.reviewer)

	applied := env.createRequest(env.seedEntry(env.alice, "2024-06-03", "basic"))
	if _, err := env.svc.ChangeRequest.Approve(env.ctx, reviewer, applied.ID); err != nil {
		t.Fatalf("Approve 失败: %v", err)
	}
	env.createRequest(env.seedEntry(env.bob, "2024-06-04", "basic"))

	// 测试时钟起点为 2024-06-01
	buf, filename, err := env.svc.Export.ExportChangeRequests(env.ctx, reviewer, &dto.ExportChangeRequestsRequest{From: "2024-06-01", To: "2024-06-30"})
	if err != nil {
		t.Fatalf("导出失败: %v", err)
	}
	if filename != "变更申请_2024-06-01_2024-06-30.xlsx" {
		t.Errorf("文件名不符: %s", filename)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("解析 Excel 失败: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("变更申请")
	if err != nil {
		t.Fatalf("读取 Sheet 失败: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("期望表头 + 2 行，实际 %d 行", len(rows))
	}
	if rows[0][0] != "申请ID" || rows[1][0] != applied.ID {
		t.Errorf("首行数据应为最早创建的申请，实际 %v", rows[1])
	}
	// 已生效的申请带原值
	if rows[1][2] != "Alice" || rows[1][3] != "applied" || rows[1][6] != "basic" {
		t.Errorf("已生效行内容不符: %v", rows[1])
	}

	total, err := f.GetCellValue("汇总", "B8")
	if err != nil || total != "2" {
		t.Errorf("汇总合计应为 2，实际 %q (%v)", total, err)
	}
}
