// Package dashboard 组合列表过滤与状态汇总，供首页展示。
package dashboard

import (
	"context"
	"fmt"

	"github.com/rev2018/placement-tracker/internal/application"
)

// StatusCount is one row of the status breakdown, in pipeline order.
type StatusCount struct {
	Status application.Status `json:"status"`
	Count  int64              `json:"count"`
}

// View 是一次首页查询的结果。Summary 始终针对用户全部记录，不受过滤条件影响。
type View struct {
	Applications []application.Application `json:"applications"`
	Summary      application.Summary       `json:"summary"`
	Breakdown    []StatusCount             `json:"breakdown"`
	Search       string                    `json:"search"`
	Status       application.Status        `json:"status"`
}

// Engine 负责执行首页查询。
type Engine struct {
	repo *application.Repository
}

// NewEngine 构造 Engine。
func NewEngine(repo *application.Repository) *Engine {
	return &Engine{repo: repo}
}

// Dashboard 在同一事务内读取过滤后的列表与状态汇总。
func (e *Engine) Dashboard(ctx context.Context, userID uint, filter application.Filter) (View, error) {
	var view View
	err := e.repo.Snapshot(ctx, func(repo *application.Repository) error {
		items, err := repo.List(ctx, userID, filter)
		if err != nil {
			return err
		}
		summary, err := repo.Summarize(ctx, userID)
		if err != nil {
			return err
		}
		view = View{
			Applications: items,
			Summary:      summary,
			Breakdown:    breakdown(summary),
			Search:       filter.Search,
			Status:       filter.Status,
		}
		return nil
	})
	if err != nil {
		return View{}, fmt.Errorf("load dashboard: %w", err)
	}
	return view, nil
}

// Summarize 返回用户的状态汇总。
func (e *Engine) Summarize(ctx context.Context, userID uint) (application.Summary, error) {
	return e.repo.Summarize(ctx, userID)
}

func breakdown(summary application.Summary) []StatusCount {
	statuses := application.Statuses()
	out := make([]StatusCount, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, StatusCount{Status: s, Count: summary.Counts[s]})
	}
	return out
}
