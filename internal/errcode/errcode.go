package errcode

import (
	"sort"
	"strings"
)

// 错误码约定：
// - 4xxx：业务可恢复错误，直接提示给用户
// - 5xxx：系统错误，不暴露内部细节
const (
	Validation           = 4000
	AuthenticationFailed = 4001
	AccessDenied         = 4003
	ResourceMissing      = 4004
	DuplicateEmail       = 4009
	PayloadTooLarge      = 4013
	RateLimited          = 4029
	SystemError          = 5000
)

// ValidationError 汇总一次提交中所有不合法的字段，调用方据此重新提示且保留其余输入。
type ValidationError struct {
	Fields map[string]string
}

// Add 追加一个字段错误。
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = message
}

// OrNil 在没有字段错误时返回 nil，避免 typed-nil 落入 error 接口。
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
