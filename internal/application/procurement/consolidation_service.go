package procurement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/corpelima/backend/internal/domain/procurement"
	"github.com/corpelima/backend/internal/domain/shared"
	"github.com/corpelima/backend/internal/infrastructure/persistence"
)

// ConsolidationService keeps consolidated records in sync with the active
// order set of each quotation version. It runs as the handler of the
// order-change events and additionally exposes the explicit lifecycle
// operations (deactivate, mark viewed).
type ConsolidationService struct {
	uowm   *persistence.UnitOfWorkManager
	rates  RateSource
	audit  *AuditRecorder
	logger *zap.Logger
}

// NewConsolidationService creates a ConsolidationService.
func NewConsolidationService(uowm *persistence.UnitOfWorkManager, rates RateSource, logger *zap.Logger) *ConsolidationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsolidationService{
		uowm:   uowm,
		rates:  rates,
		audit:  NewAuditRecorder(),
		logger: logger.Named("consolidation"),
	}
}

// HandleEvent is the dispatcher entry point. It opens its own unit of work
// per affected quotation version; the publishing transaction is long
// committed by the time this runs.
func (s *ConsolidationService) HandleEvent(ctx context.Context, ev shared.DomainEvent) error {
	switch e := ev.(type) {
	case *procurement.OrderBatchCreatedEvent:
		return s.Reconsolidate(ctx, e.QuotationID, e.QuotationVersionID)
	case *procurement.OrderChangedEvent:
		if e.QuotationChanged {
			// The version the order left first, so its record sheds the
			// order before the receiving version picks it up.
			if err := s.Reconsolidate(ctx, e.PrevQuotationID, e.PrevQuotationVersionID); err != nil {
				return err
			}
		}
		return s.Reconsolidate(ctx, e.QuotationID, e.QuotationVersionID)
	default:
		s.logger.Warn("Ignoring unknown event type", zap.String("event_type", ev.EventType()))
		return nil
	}
}

// Reconsolidate recomputes the consolidated record of one quotation
// version from its current active order set, creating, updating or —
// when the set is empty — cleaning up an orphaned record.
func (s *ConsolidationService) Reconsolidate(ctx context.Context, quotationID, versionID uuid.UUID) error {
	uow, err := s.uowm.Begin(ctx)
	if err != nil {
		return err
	}

	orders, err := persistence.NewPurchaseOrderRepository(uow.DB()).
		FindActiveByQuotationVersion(ctx, quotationID, versionID)
	if err != nil {
		_ = uow.Rollback()
		return err
	}

	if len(orders) == 0 {
		if err := s.cleanupOrphan(ctx, uow, quotationID, versionID); err != nil {
			_ = uow.Rollback()
			return err
		}
		return uow.Commit()
	}

	records := persistence.NewConsolidatedRecordRepository(uow.DB())
	existing, err := records.FindActiveByQuotationVersion(ctx, quotationID, versionID)
	if err != nil && !shared.IsCode(err, shared.ErrNotFound.Code) {
		_ = uow.Rollback()
		return err
	}

	// First consolidation pins the freshest published rate; recalculations
	// reuse the rate stored on the record so totals stay comparable.
	var rate decimal.Decimal
	if existing != nil {
		rate = existing.ExchangeRate
	} else {
		latest, _, rateErr := s.rates.LatestRate(ctx)
		if rateErr != nil {
			_ = uow.Rollback()
			return rateErr
		}
		rate = latest
	}

	totals, err := procurement.Consolidate(orders, rate)
	if err != nil {
		_ = uow.Rollback()
		return err
	}

	if existing != nil {
		err = s.updateRecord(ctx, uow, records, existing, orders, totals)
	} else {
		err = s.createRecord(ctx, uow, records, quotationID, versionID, orders, totals)
	}
	if err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}

func (s *ConsolidationService) createRecord(ctx context.Context, uow *persistence.UnitOfWork, records *persistence.GormConsolidatedRecordRepository, quotationID, versionID uuid.UUID, orders []*procurement.PurchaseOrder, totals procurement.Totals) error {
	record := &procurement.ConsolidatedRecord{
		ID:                 uuid.New(),
		QuotationID:        quotationID,
		QuotationVersionID: versionID,
		Status:             procurement.RecordActive,
		RecordedAt:         time.Now(),
	}
	record.ApplyTotals(totals)
	record.ExchangeRate = totals.ExchangeRate

	if err := records.Create(ctx, record); err != nil {
		return err
	}
	if err := s.relink(ctx, records, record.ID, orders); err != nil {
		return err
	}
	return s.audit.RecordChanged(ctx, uow, record, procurement.AuditCreate, nil, "")
}

func (s *ConsolidationService) updateRecord(ctx context.Context, uow *persistence.UnitOfWork, records *persistence.GormConsolidatedRecordRepository, record *procurement.ConsolidatedRecord, orders []*procurement.PurchaseOrder, totals procurement.Totals) error {
	amountBefore := record.TotalPEN
	if record.ApplyTotals(totals) {
		record.Changed = true
	}
	if err := records.Save(ctx, record); err != nil {
		return err
	}
	if err := s.relink(ctx, records, record.ID, orders); err != nil {
		return err
	}
	return s.audit.RecordChanged(ctx, uow, record, procurement.AuditUpdate, &amountBefore, "recalculated")
}

func (s *ConsolidationService) relink(ctx context.Context, records *persistence.GormConsolidatedRecordRepository, recordID uuid.UUID, orders []*procurement.PurchaseOrder) error {
	links := make([]procurement.ConsolidatedLink, 0, len(orders))
	for _, o := range orders {
		link, err := procurement.LinkSnapshot(recordID, o)
		if err != nil {
			return err
		}
		links = append(links, link)
	}
	return records.ReplaceLinks(ctx, recordID, links)
}

// cleanupOrphan removes a record left behind by the deletion of its last
// order. Detection is two-step: derive the candidate from audit history,
// then independently confirm it has zero live links before hard-deleting.
func (s *ConsolidationService) cleanupOrphan(ctx context.Context, uow *persistence.UnitOfWork, quotationID, versionID uuid.UUID) error {
	recordID, err := persistence.NewAuditRepository(uow.DB()).LatestRecordID(ctx, quotationID, versionID)
	if err != nil {
		return err
	}
	if recordID == nil {
		return nil
	}

	records := persistence.NewConsolidatedRecordRepository(uow.DB())
	record, err := records.FindByID(ctx, *recordID)
	if err != nil {
		if shared.IsCode(err, shared.ErrNotFound.Code) {
			return nil
		}
		return err
	}

	count, err := records.CountLinks(ctx, record.ID)
	if err != nil {
		return err
	}
	if count > 0 {
		// Still referenced: not an orphan, leave it alone.
		return nil
	}

	amountBefore := record.TotalPEN
	if err := s.audit.RecordChanged(ctx, uow, record, procurement.AuditDelete, &amountBefore, "orphaned"); err != nil {
		return err
	}
	s.logger.Info("Deleting orphaned consolidated record",
		zap.String("record_id", record.ID.String()),
		zap.String("quotation_version_id", versionID.String()),
	)
	return records.Delete(ctx, record.ID)
}

// DeactivateRecord is the soft path callers outside the event flow use:
// the record flips to INACTIVE and stays queryable. There is no way back
// to ACTIVE; a later consolidation creates a fresh record.
func (s *ConsolidationService) DeactivateRecord(ctx context.Context, recordID uuid.UUID, reason string) error {
	uow, err := s.uowm.Begin(ctx)
	if err != nil {
		return err
	}
	records := persistence.NewConsolidatedRecordRepository(uow.DB())

	record, err := records.FindByID(ctx, recordID)
	if err != nil {
		_ = uow.Rollback()
		return err
	}
	amountBefore := record.TotalPEN
	if err := record.Deactivate(); err != nil {
		_ = uow.Rollback()
		return err
	}
	if err := records.Save(ctx, record); err != nil {
		_ = uow.Rollback()
		return err
	}
	if err := s.audit.RecordChanged(ctx, uow, record, procurement.AuditDeactivate, &amountBefore, reason); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}

// GetRecord returns the active record of a quotation version.
func (s *ConsolidationService) GetRecord(ctx context.Context, quotationID, versionID uuid.UUID) (*procurement.ConsolidatedRecord, error) {
	return persistence.NewConsolidatedRecordRepository(s.uowm.DB()).
		FindActiveByQuotationVersion(ctx, quotationID, versionID)
}

// MarkRecordViewed clears the changed-since-last-view flag.
func (s *ConsolidationService) MarkRecordViewed(ctx context.Context, recordID uuid.UUID) error {
	return persistence.NewConsolidatedRecordRepository(s.uowm.DB()).MarkViewed(ctx, recordID)
}
