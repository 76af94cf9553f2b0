package procurement

import (
	"context"

	"github.com/corpelima/backend/internal/domain/procurement"
	"github.com/corpelima/backend/internal/infrastructure/persistence"
)

// AuditQueryService is the audit trail read side. Entries carry entity ids,
// not display names; callers join names from the owning masters when
// rendering.
type AuditQueryService struct {
	uowm *persistence.UnitOfWorkManager
}

// NewAuditQueryService creates an AuditQueryService.
func NewAuditQueryService(uowm *persistence.UnitOfWorkManager) *AuditQueryService {
	return &AuditQueryService{uowm: uowm}
}

// List returns one page of audit entries matching the request, newest
// first.
func (s *AuditQueryService) List(ctx context.Context, req AuditListRequest) (*AuditListResult, error) {
	filter := persistence.AuditFilter{
		OrderID:     req.OrderID,
		OrderNumber: req.OrderNumber,
		Operation:   procurement.AuditOperation(req.Operation),
		EntityKind:  procurement.AuditEntityKind(req.EntityKind),
		From:        req.From,
		To:          req.To,
		Page:        req.Page,
		PageSize:    req.PageSize,
	}

	entries, total, err := persistence.NewAuditRepository(s.uowm.DB()).List(ctx, filter)
	if err != nil {
		return nil, err
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	return &AuditListResult{
		Entries: entries,
		Total:   total,
		Page:    page,
	}, nil
}
