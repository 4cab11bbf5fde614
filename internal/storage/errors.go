package storage

import (
	"errors"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
)

// ErrObjectNotFound 表示简历文件不存在，由 StatObject 返回。
var ErrObjectNotFound = errors.New("object not found")

// IsNoSuchKey 判断 MinIO/S3 错误是否表示对象不存在。
func IsNoSuchKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrObjectNotFound) {
		return true
	}

	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		if resp.Code == "NoSuchKey" || resp.Code == "NotFound" || resp.StatusCode == http.StatusNotFound {
			return true
		}
	}

	// 部分网关只返回文本。
	return strings.Contains(strings.ToLower(err.Error()), "specified key does not exist")
}
