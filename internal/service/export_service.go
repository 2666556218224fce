package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"care-hub/backend/internal/dto"
	"care-hub/backend/internal/model"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoItems      = errors.New("区间内无变更申请")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// exportMaxDays 单次导出区间上限
const exportMaxDays = 366

// ExportService 审计导出
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response。
// Sheet "变更申请" 每行一条申请，含生效前快照与全部审计字段；Sheet "汇总" 按状态计数。
type ExportService interface {
	ExportChangeRequests(ctx context.Context, actor dto.Actor, req *dto.ExportChangeRequestsRequest) (*bytes.Buffer, string, error)
}

type exportService struct {
	*core
}

func newExportService(c *core) *exportService {
	return &exportService{core: c}
}

var changeRequestColumns = []struct {
	title string
	width float64
}{
	{"申请ID", 38}, {"日期", 12}, {"护工", 14}, {"状态", 10},
	{"原开始", 18}, {"原结束", 18}, {"原类型", 10},
	{"新开始", 18}, {"新结束", 18}, {"新类型", 10},
	{"申请人", 38}, {"原因", 30}, {"批量ID", 38},
	{"生效时间", 18}, {"拒绝时间", 18}, {"拒绝原因", 24}, {"撤销时间", 18}, {"归档时间", 18},
}

func (s *exportService) ExportChangeRequests(ctx context.Context, actor dto.Actor, req *dto.ExportChangeRequestsRequest) (*bytes.Buffer, string, error) {
	from, to, err := parseDateRange(req.From, req.To, exportMaxDays)
	if err != nil {
		return nil, "", err
	}

	reqs, err := s.repo.ChangeRequest.ListForExport(ctx, actor.CareSpaceID, from, to)
	if err != nil {
		s.logger.Error("查询导出数据失败", zap.Error(err))
		return nil, "", storageErr("查询导出数据", err)
	}
	if len(reqs) == 0 {
		return nil, "", ErrExportNoItems
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "变更申请"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 表头
	for i, c := range changeRequestColumns {
		col := colName(i)
		f.SetColWidth(sheetName, col, col, c.width)
		f.SetCellValue(sheetName, cell(col, 1), c.title)
	}
	f.SetCellStyle(sheetName, "A1", cell(colName(len(changeRequestColumns)-1), 1), headerStyle)
	f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	// 数据行
	counts := make(map[string]int)
	for i := range reqs {
		r := &reqs[i]
		counts[r.Status]++
		values := exportRow(r)
		for j, v := range values {
			f.SetCellValue(sheetName, cell(colName(j), i+2), v)
		}
	}

	// 汇总
	summary := "汇总"
	f.NewSheet(summary)
	f.SetColWidth(summary, "A", "A", 14)
	f.SetCellValue(summary, "A1", "区间")
	f.SetCellValue(summary, "B1", fmt.Sprintf("%s ~ %s", req.From, req.To))
	f.SetCellValue(summary, "A2", "状态")
	f.SetCellValue(summary, "B2", "数量")
	f.SetCellStyle(summary, "A2", "B2", headerStyle)
	row := 3
	for _, status := range []string{
		model.ChangeRequestPending, model.ChangeRequestApplied, model.ChangeRequestDenied,
		model.ChangeRequestReverted, model.ChangeRequestArchived,
	} {
		f.SetCellValue(summary, cell("A", row), status)
		f.SetCellValue(summary, cell("B", row), counts[status])
		row++
	}
	f.SetCellValue(summary, cell("A", row), "合计")
	f.SetCellValue(summary, cell("B", row), len(reqs))

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("变更申请_%s_%s.xlsx", req.From, req.To)
	return buf, filename, nil
}

// exportRow 按 changeRequestColumns 顺序输出单元格
func exportRow(r *model.ChangeRequest) []interface{} {
	date, carer := r.NewStartAt.UTC().Format(model.DateLayout), ""
	if r.TimeEntry != nil {
		date = r.TimeEntry.Date()
		if r.TimeEntry.Carer != nil {
			carer = r.TimeEntry.Carer.Name
		}
	}

	var oldStart, oldEnd, oldType string
	if r.HasSnapshot() {
		oldStart = excelTime(&r.Snapshot.StartAt)
		oldEnd = excelTime(&r.Snapshot.EndAt)
		oldType = r.Snapshot.ShiftType
	}

	return []interface{}{
		r.RequestID, date, carer, r.Status,
		oldStart, oldEnd, oldType,
		excelTime(&r.NewStartAt), excelTime(&r.NewEndAt), r.NewShiftType,
		r.RequestedBy, r.Reason, deref(r.BundleID),
		excelTime(r.AppliedAt), excelTime(r.DeniedAt), r.DenyReason, excelTime(r.RevertedAt), excelTime(r.ArchivedAt),
	}
}

func excelTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
