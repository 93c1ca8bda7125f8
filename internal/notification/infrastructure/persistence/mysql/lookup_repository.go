package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/wyfcoding/issuetracking/internal/notification/domain"
)

// lookupRepositoryImpl 对项目、议题、账号三张主数据表做只读查询，
// 同时实现 domain.ProjectLookup、domain.IssueLookup 和 domain.AccountLookup。
// 主数据由其他服务维护，这里只消费。
type lookupRepositoryImpl struct {
	db *gorm.DB
}

// NewLookupRepository 创建主数据查询实例
func NewLookupRepository(db *gorm.DB) *lookupRepositoryImpl {
	return &lookupRepositoryImpl{db: db}
}

var (
	_ domain.ProjectLookup = (*lookupRepositoryImpl)(nil)
	_ domain.IssueLookup   = (*lookupRepositoryImpl)(nil)
	_ domain.AccountLookup = (*lookupRepositoryImpl)(nil)
)

// ProjectName 实现 domain.ProjectLookup，项目不存在时返回空串。
func (r *lookupRepositoryImpl) ProjectName(ctx context.Context, projectID string) (string, error) {
	var name string
	err := r.db.WithContext(ctx).
		Table("projects").
		Select("name").
		Where("project_id = ?", projectID).
		Take(&name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query project name: %w", err)
	}
	return name, nil
}

// IssueTitle 实现 domain.IssueLookup，议题不存在时返回空串。
func (r *lookupRepositoryImpl) IssueTitle(ctx context.Context, issueID string) (string, error) {
	var title string
	err := r.db.WithContext(ctx).
		Table("issues").
		Select("title").
		Where("issue_id = ?", issueID).
		Take(&title).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query issue title: %w", err)
	}
	return title, nil
}

// AccountIDByEmail 实现 domain.AccountLookup，账号不存在时返回空串。
func (r *lookupRepositoryImpl) AccountIDByEmail(ctx context.Context, email string) (string, error) {
	var accountID string
	err := r.db.WithContext(ctx).
		Table("accounts").
		Select("account_id").
		Where("email = ?", email).
		Take(&accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query account id: %w", err)
	}
	return accountID, nil
}
