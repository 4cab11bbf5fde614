package application

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rev2018/placement-tracker/internal/errcode"
)

// DateLayout 是 applied_date / next_round_date 的格式。
const DateLayout = "2006-01-02"

const (
	maxNameLength = 255
	maxLinkLength = 1024
)

// Fields 是新建或编辑表单提交的原始值。
type Fields struct {
	CompanyName   string `json:"company_name" form:"company_name"`
	Role          string `json:"role" form:"role"`
	Status        string `json:"status" form:"status"`
	AppliedDate   string `json:"applied_date" form:"applied_date"`
	NextRoundDate string `json:"next_round_date" form:"next_round_date"`
	Notes         string `json:"notes" form:"notes"`
	ResumeLink    string `json:"resume_link" form:"resume_link"`
}

// normalized 是通过校验后的字段，状态已解析为枚举。
type normalized struct {
	companyName   string
	role          string
	status        Status
	appliedDate   string
	nextRoundDate string
	notes         string
	resumeLink    string
}

// normalize 去除空白并校验必填项与日期格式；状态缺失或未知时取 DefaultStatus。
func (f Fields) normalize() (normalized, error) {
	n := normalized{
		companyName:   strings.TrimSpace(f.CompanyName),
		role:          strings.TrimSpace(f.Role),
		status:        StatusOrDefault(f.Status),
		appliedDate:   strings.TrimSpace(f.AppliedDate),
		nextRoundDate: strings.TrimSpace(f.NextRoundDate),
		notes:         strings.TrimSpace(f.Notes),
		resumeLink:    strings.TrimSpace(f.ResumeLink),
	}

	verr := &errcode.ValidationError{}
	requireText(verr, "company_name", n.companyName, maxNameLength)
	requireText(verr, "role", n.role, maxNameLength)
	if n.appliedDate == "" {
		verr.Add("applied_date", "is required")
	} else if !isDate(n.appliedDate) {
		verr.Add("applied_date", "must be a date in YYYY-MM-DD format")
	}
	if n.nextRoundDate != "" && !isDate(n.nextRoundDate) {
		verr.Add("next_round_date", "must be a date in YYYY-MM-DD format")
	}
	if utf8.RuneCountInString(n.resumeLink) > maxLinkLength {
		verr.Add("resume_link", "is too long")
	}
	return n, verr.OrNil()
}

func requireText(verr *errcode.ValidationError, field, value string, max int) {
	switch {
	case value == "":
		verr.Add(field, "is required")
	case utf8.RuneCountInString(value) > max:
		verr.Add(field, "is too long")
	}
}

func isDate(value string) bool {
	_, err := time.Parse(DateLayout, value)
	return err == nil
}
