package service

import (
	"context"
	"fmt"
	"strings"

	"plgshop/internal/model"
	"plgshop/internal/repository"
)

// AdminService 管理端交易查询
type AdminService struct {
	transactions repository.TransactionRepository
	emails       map[string]struct{}
}

// NewAdminService 创建管理服务，emails为管理员邮箱
func NewAdminService(transactions repository.TransactionRepository, emails []string) *AdminService {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		set[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return &AdminService{transactions: transactions, emails: set}
}

// IsAdmin 邮箱是否在管理员名单中
func (s *AdminService) IsAdmin(email string) bool {
	_, ok := s.emails[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// Configured 是否设置了管理员
func (s *AdminService) Configured() bool {
	return len(s.emails) > 0
}

// ListTransactions 分页列出交易
func (s *AdminService) ListTransactions(ctx context.Context, page, size int) ([]model.TransactionView, error) {
	if page < 1 {
		page = 1
	}
	size = ClampLimit(size)
	rows, err := s.transactions.List(ctx, (page-1)*size, size)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	views := make([]model.TransactionView, 0, len(rows))
	for _, row := range rows {
		views = append(views, row.View())
	}
	return views, nil
}
