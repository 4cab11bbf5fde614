package storage

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxObjectKeyLength = 200

// ResumeExtensions 列出允许上传的简历文件后缀及其 Content-Type。
var ResumeExtensions = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// ResumePrefix 返回某个用户简历文件的对象前缀。
func ResumePrefix(userID uint) string {
	return fmt.Sprintf("user-resumes/%d/", userID)
}

// NewResumeKey 为上传文件生成不可猜测的对象 Key，保留原始后缀。
func NewResumeKey(userID uint, filename string) (string, bool) {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(filename)))
	if _, ok := ResumeExtensions[ext]; !ok {
		return "", false
	}
	return ResumePrefix(userID) + uuid.NewString() + ext, true
}

// IsUserResumeKey 校验 Key 属于该用户且不含路径穿越。
func IsUserResumeKey(userID uint, key string) bool {
	if key == "" || !utf8.ValidString(key) || len(key) > maxObjectKeyLength {
		return false
	}
	if !strings.HasPrefix(key, ResumePrefix(userID)) {
		return false
	}
	if strings.Contains(key, "..") || strings.Contains(key, "\\") || strings.Contains(key, "//") {
		return false
	}
	_, ok := ResumeExtensions[strings.ToLower(path.Ext(key))]
	return ok
}

// ContentTypeForKey 按后缀返回对象的 Content-Type。
func ContentTypeForKey(key string) string {
	if contentType, ok := ResumeExtensions[strings.ToLower(path.Ext(key))]; ok {
		return contentType
	}
	return "application/octet-stream"
}
