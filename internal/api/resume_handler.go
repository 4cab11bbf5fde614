package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"

	"github.com/rev2018/placement-tracker/internal/api/middleware"
	"github.com/rev2018/placement-tracker/internal/errcode"
	"github.com/rev2018/placement-tracker/internal/storage"
)

const resumeLinkTTL = 15 * time.Minute

var errMaliciousFile = errors.New("malicious file detected")

type resumeStorage interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	StatObject(ctx context.Context, objectKey string) (storage.ObjectMeta, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	ListObjects(ctx context.Context, prefix string, limit int) ([]storage.ObjectMeta, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// VirusScanner 扫描上传内容，发现威胁时返回 errMaliciousFile。
type VirusScanner interface {
	Scan(r io.Reader) error
}

type clamdScanner struct {
	client *clamd.Clamd
}

// NewClamdScanner 返回基于 clamd 的扫描器；addr 为空时不扫描。
func NewClamdScanner(addr string) VirusScanner {
	if addr == "" {
		return nil
	}
	return &clamdScanner{client: clamd.NewClamd(addr)}
}

func (s *clamdScanner) Scan(r io.Reader) error {
	abort := make(chan bool)
	defer close(abort)

	results, err := s.client.ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}
	for result := range results {
		if result.Status != clamd.RES_OK {
			return errMaliciousFile
		}
	}
	return nil
}

// ResumeHandler 负责简历文件的上传与访问。
type ResumeHandler struct {
	storage  resumeStorage
	scanner  VirusScanner
	maxBytes int64
}

// NewResumeHandler 构造 ResumeHandler。scanner 可为 nil。
func NewResumeHandler(storageClient resumeStorage, scanner VirusScanner, maxBytes int64) *ResumeHandler {
	return &ResumeHandler{storage: storageClient, scanner: scanner, maxBytes: maxBytes}
}

// ResumeLink 返回可填入 resume_link 字段的站内链接。
func ResumeLink(objectKey string) string {
	return "/v1/resumes/view?key=" + url.QueryEscape(objectKey)
}

// Upload 接收 multipart 文件 file，扫描后写入对象存储。
func (h *ResumeHandler) Upload(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	logger := middleware.LoggerFromContext(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1<<20)
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(c, http.StatusRequestEntityTooLarge, errcode.PayloadTooLarge, "file too large")
			return
		}
		BadRequest(c, "missing file")
		return
	}
	if file.Size > h.maxBytes {
		Error(c, http.StatusRequestEntityTooLarge, errcode.PayloadTooLarge, "file too large")
		return
	}

	objectKey, ok := storage.NewResumeKey(userID, file.Filename)
	if !ok {
		BadRequest(c, "unsupported file type")
		return
	}

	if h.scanner != nil {
		reader, err := file.Open()
		if err != nil {
			logger.Error("open upload for scan", slog.Any("error", err))
			Internal(c)
			return
		}
		err = h.scanner.Scan(reader)
		reader.Close()
		if errors.Is(err, errMaliciousFile) {
			BadRequest(c, "malicious file detected")
			return
		}
		if err != nil {
			logger.Error("scan file", slog.Any("error", err))
			Internal(c)
			return
		}
	}

	reader, err := file.Open()
	if err != nil {
		logger.Error("open upload", slog.Any("error", err))
		Internal(c)
		return
	}
	defer reader.Close()

	contentType := storage.ContentTypeForKey(objectKey)
	if _, err := h.storage.UploadFile(c.Request.Context(), objectKey, reader, file.Size, contentType); err != nil {
		logger.Error("upload resume", slog.Any("error", err))
		Internal(c)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"object_key":  objectKey,
		"resume_link": ResumeLink(objectKey),
	})
}

// View 校验归属后跳转到限时下载链接。
func (h *ResumeHandler) View(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	objectKey := c.Query("key")
	if objectKey == "" {
		BadRequest(c, "missing key")
		return
	}
	if !storage.IsUserResumeKey(userID, objectKey) {
		Forbidden(c, "access denied")
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)
	if _, err := h.storage.StatObject(ctx, objectKey); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			NotFound(c, "resume not found")
			return
		}
		logger.Error("stat resume", slog.Any("error", err))
		Internal(c)
		return
	}

	signedURL, err := h.storage.GeneratePresignedURL(ctx, objectKey, resumeLinkTTL)
	if err != nil {
		logger.Error("generate presigned url", slog.Any("error", err))
		Internal(c)
		return
	}
	c.Redirect(http.StatusFound, signedURL)
}

// List 列出用户上传过的简历文件，最新的在前。
func (h *ResumeHandler) List(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	objects, err := h.storage.ListObjects(c.Request.Context(), storage.ResumePrefix(userID), limit)
	if err != nil {
		middleware.LoggerFromContext(c).Error("list resumes", slog.Any("error", err))
		Internal(c)
		return
	}
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})

	items := make([]gin.H, 0, len(objects))
	for _, obj := range objects {
		items = append(items, gin.H{
			"object_key":    obj.Key,
			"resume_link":   ResumeLink(obj.Key),
			"size":          obj.Size,
			"last_modified": obj.LastModified,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Delete 删除用户自己的简历文件，文件不存在时同样返回 204。
func (h *ResumeHandler) Delete(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	objectKey := c.Query("key")
	if !storage.IsUserResumeKey(userID, objectKey) {
		Forbidden(c, "access denied")
		return
	}

	if err := h.storage.DeleteObject(c.Request.Context(), objectKey); err != nil {
		middleware.LoggerFromContext(c).Error("delete resume", slog.Any("error", err))
		Internal(c)
		return
	}
	c.Status(http.StatusNoContent)
}
