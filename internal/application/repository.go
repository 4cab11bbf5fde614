package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/rev2018/placement-tracker/internal/database"
)

// Repository 负责求职记录的增删改查。所有操作都以 userID 限定归属。
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository 构造 Repository。
func NewRepository(db *gorm.DB) *Repository {
	if db == nil {
		panic("database connection cannot be nil for application.Repository")
	}
	return &Repository{db: db, now: time.Now}
}

// Snapshot 在同一个事务中执行 fn，使多次读取看到一致的数据。
func (r *Repository) Snapshot(ctx context.Context, fn func(*Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx, now: r.now})
	})
}

// Create 校验字段并新建记录，返回新记录 ID。
func (r *Repository) Create(ctx context.Context, userID uint, fields Fields) (uint, error) {
	n, err := fields.normalize()
	if err != nil {
		return 0, err
	}

	now := r.timestamp()
	model := database.Application{
		UserID:        userID,
		CompanyName:   n.companyName,
		Role:          n.role,
		Status:        string(n.status),
		AppliedDate:   n.appliedDate,
		NextRoundDate: nullable(n.nextRoundDate),
		Notes:         nullable(n.notes),
		ResumeLink:    nullable(n.resumeLink),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return 0, fmt.Errorf("create application: %w", err)
	}
	return model.ID, nil
}

// Get 按 ID 与归属用户读取记录。
func (r *Repository) Get(ctx context.Context, userID, id uint) (*Application, error) {
	var model database.Application
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find application %d: %w", id, err)
	}
	app := fromModel(model)
	return &app, nil
}

// Update 覆盖全部可编辑字段并刷新 updated_at。记录不存在或不属于该用户时返回 ErrNotFound。
func (r *Repository) Update(ctx context.Context, userID, id uint, fields Fields) error {
	n, err := fields.normalize()
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current database.Application
		err := tx.Select("id", "updated_at").
			Where("id = ? AND user_id = ?", id, userID).
			First(&current).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("find application %d: %w", id, err)
		}

		// updated_at 必须严格递增，即使时钟精度不足。
		updatedAt := r.timestamp()
		if previous := current.UpdatedAt.UTC(); !updatedAt.After(previous) {
			updatedAt = previous.Add(time.Microsecond)
		}

		result := tx.Model(&database.Application{}).
			Where("id = ? AND user_id = ?", id, userID).
			Updates(map[string]any{
				"company_name":    n.companyName,
				"role":            n.role,
				"status":          string(n.status),
				"applied_date":    n.appliedDate,
				"next_round_date": nullable(n.nextRoundDate),
				"notes":           nullable(n.notes),
				"resume_link":     nullable(n.resumeLink),
				"updated_at":      updatedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("update application %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Delete 删除属于该用户的记录；记录不存在时静默成功。
func (r *Repository) Delete(ctx context.Context, userID, id uint) error {
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&database.Application{}).Error
	if err != nil {
		return fmt.Errorf("delete application %d: %w", id, err)
	}
	return nil
}

// List 返回用户满足过滤条件的全部记录，按 updated_at 倒序，ID 倒序兜底。
func (r *Repository) List(ctx context.Context, userID uint, filter Filter) ([]Application, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		query = query.Where(
			`(LOWER(company_name) LIKE ? ESCAPE '\' OR LOWER(role) LIKE ? ESCAPE '\')`,
			pattern, pattern,
		)
	}

	var models []database.Application
	if err := query.Order("updated_at DESC").Order("id DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}

	items := make([]Application, 0, len(models))
	for _, m := range models {
		items = append(items, fromModel(m))
	}
	return items, nil
}

type statusCount struct {
	Status string
	Count  int64
}

// Summarize 统计用户每种状态的记录数。
func (r *Repository) Summarize(ctx context.Context, userID uint) (Summary, error) {
	var rows []statusCount
	err := r.db.WithContext(ctx).
		Model(&database.Application{}).
		Select("status, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return Summary{}, fmt.Errorf("summarize applications: %w", err)
	}

	summary := NewSummary()
	for _, row := range rows {
		summary.add(StatusOrDefault(row.Status), row.Count)
	}
	return summary, nil
}

func (r *Repository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
