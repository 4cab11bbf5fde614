package application

import (
	"errors"
	"strings"
	"time"

	"github.com/rev2018/placement-tracker/internal/database"
)

// ErrNotFound 表示记录不存在或不属于当前用户，两者对调用方不作区分。
var ErrNotFound = errors.New("application not found")

// Application 是一条已持久化的求职记录。可选字段为空时是空字符串。
type Application struct {
	ID            uint      `json:"id"`
	UserID        uint      `json:"-"`
	CompanyName   string    `json:"company_name"`
	Role          string    `json:"role"`
	Status        Status    `json:"status"`
	AppliedDate   string    `json:"applied_date"`
	NextRoundDate string    `json:"next_round_date"`
	Notes         string    `json:"notes"`
	ResumeLink    string    `json:"resume_link"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Filter narrows a listing. Zero value matches everything.
type Filter struct {
	Search string
	Status Status
}

// NewFilter 规范化查询参数：search 去除首尾空白；未知的 status 视为不过滤。
func NewFilter(search, status string) Filter {
	f := Filter{Search: strings.TrimSpace(search)}
	if s, ok := ParseStatus(status); ok {
		f.Status = s
	}
	return f
}

// Summary 汇总用户各状态的数量。Counts 始终包含全部五种状态。
type Summary struct {
	Counts   map[Status]int64 `json:"counts"`
	Total    int64            `json:"total"`
	Selected int64            `json:"selected"`
}

// NewSummary returns a summary with every status present at zero.
func NewSummary() Summary {
	counts := make(map[Status]int64, len(allStatuses))
	for _, s := range allStatuses {
		counts[s] = 0
	}
	return Summary{Counts: counts}
}

func (s *Summary) add(status Status, n int64) {
	if _, ok := s.Counts[status]; !ok {
		status = DefaultStatus
	}
	s.Counts[status] += n
	s.Total += n
	if status == StatusSelected {
		s.Selected += n
	}
}

func fromModel(m database.Application) Application {
	return Application{
		ID:            m.ID,
		UserID:        m.UserID,
		CompanyName:   m.CompanyName,
		Role:          m.Role,
		Status:        StatusOrDefault(m.Status),
		AppliedDate:   m.AppliedDate,
		NextRoundDate: deref(m.NextRoundDate),
		Notes:         deref(m.Notes),
		ResumeLink:    deref(m.ResumeLink),
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
