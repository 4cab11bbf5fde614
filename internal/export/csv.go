package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"github.com/rev2018/placement-tracker/internal/application"
	"github.com/rev2018/placement-tracker/internal/metrics"
)

const (
	// Filename 是下载时固定使用的文件名。
	Filename = "job_applications.csv"
	// ContentType 是导出文件的 MIME 类型。
	ContentType = "text/csv"
)

// Header 是导出文件的表头，顺序固定。
var Header = []string{
	"Company Name",
	"Role",
	"Status",
	"Applied Date",
	"Next Round Date",
	"Notes",
	"Resume Link",
}

type lister interface {
	List(ctx context.Context, userID uint, filter application.Filter) ([]application.Application, error)
}

// Exporter 把用户的全部记录序列化为 CSV。
type Exporter struct {
	source lister
}

// NewExporter 构造 Exporter。
func NewExporter(source lister) *Exporter {
	return &Exporter{source: source}
}

// Export 按首页默认排序导出用户全部记录。
func (e *Exporter) Export(ctx context.Context, userID uint) ([]byte, error) {
	items, err := e.source.List(ctx, userID, application.Filter{})
	if err != nil {
		return nil, fmt.Errorf("load applications for export: %w", err)
	}
	out, err := Encode(items)
	if err != nil {
		return nil, err
	}
	metrics.ObserveExport(len(items))
	return out, nil
}

// Encode 将记录写成带表头的 CSV；可选字段为空时输出空串。
func Encode(items []application.Application) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, app := range items {
		record := []string{
			app.CompanyName,
			app.Role,
			string(app.Status),
			app.AppliedDate,
			app.NextRoundDate,
			app.Notes,
			app.ResumeLink,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", app.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
