package auth

import (
	"context"
	"time"

	"github.com/gogomarket/rental-backend/internal/common/errors"
	"github.com/gogomarket/rental-backend/internal/common/utils"
	"github.com/gogomarket/rental-backend/internal/models"
	"github.com/gogomarket/rental-backend/internal/repository"
)

// AuditService 查询后台操作日志
type AuditService struct {
	logRepo *repository.OperationLogRepository
	loc     *time.Location
}

// NewAuditService 创建审计日志服务，loc 用于解析查询日期
func NewAuditService(logRepo *repository.OperationLogRepository, loc *time.Location) *AuditService {
	if loc == nil {
		loc = time.UTC
	}
	return &AuditService{logRepo: logRepo, loc: loc}
}

// ListLogsRequest 日志查询参数，日期为 YYYY-MM-DD，to 当天包含在内
type ListLogsRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	AdminID  int64  `form:"admin_id" binding:"omitempty,min=1"`
	Module   string `form:"module" binding:"omitempty,max=50"`
	TargetID int64  `form:"target_id" binding:"omitempty,min=1"`
	From     string `form:"from"`
	To       string `form:"to"`
}

// List 分页查询操作日志
func (s *AuditService) List(ctx context.Context, req *ListLogsRequest) ([]*models.OperationLog, int64, utils.Pagination, error) {
	p := utils.Pagination{Page: req.Page, PageSize: req.PageSize}
	p.Normalize()

	f := repository.OperationLogFilter{AdminID: req.AdminID, Module: req.Module, TargetID: req.TargetID}
	var err error
	if f.From, err = s.parseDay(req.From); err != nil {
		return nil, 0, p, err
	}
	if f.To, err = s.parseDay(req.To); err != nil {
		return nil, 0, p, err
	}
	if !f.To.IsZero() {
		f.To = f.To.AddDate(0, 0, 1)
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return nil, 0, p, errors.ErrInvalidParams.WithMessage("from 不能晚于 to")
	}

	entries, total, err := s.logRepo.List(ctx, p.GetOffset(), p.GetLimit(), f)
	if err != nil {
		return nil, 0, p, errors.ErrDatabaseError.WithError(err)
	}
	return entries, total, p, nil
}

func (s *AuditService) parseDay(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, s.loc)
	if err != nil {
		return time.Time{}, errors.ErrInvalidParams.WithMessagef("日期格式错误: %s", v)
	}
	return t, nil
}
