package application

import "strings"

// Status 是求职流程所处阶段，取值封闭。
type Status string

const (
	StatusApplied   Status = "Applied"
	StatusTest      Status = "Test"
	StatusInterview Status = "Interview"
	StatusSelected  Status = "Selected"
	StatusRejected  Status = "Rejected"
)

// DefaultStatus 用于缺失或无法识别的状态值。
const DefaultStatus = StatusApplied

var allStatuses = []Status{
	StatusApplied,
	StatusTest,
	StatusInterview,
	StatusSelected,
	StatusRejected,
}

// Statuses returns every status in pipeline order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus 精确匹配五种状态之一（忽略首尾空白）。
func ParseStatus(raw string) (Status, bool) {
	candidate := Status(strings.TrimSpace(raw))
	for _, s := range allStatuses {
		if s == candidate {
			return s, true
		}
	}
	return "", false
}

// StatusOrDefault 解析状态，失败时回落到 DefaultStatus。
func StatusOrDefault(raw string) Status {
	if s, ok := ParseStatus(raw); ok {
		return s
	}
	return DefaultStatus
}

func (s Status) String() string { return string(s) }
