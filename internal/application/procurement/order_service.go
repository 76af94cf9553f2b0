package procurement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/corpelima/backend/internal/domain/procurement"
	"github.com/corpelima/backend/internal/domain/shared"
	"github.com/corpelima/backend/internal/infrastructure/event"
	"github.com/corpelima/backend/internal/infrastructure/persistence"
)

// OrderService implements the purchase-order use cases: batch creation with
// per-contact artifact fan-out, updates with artifact regeneration, and
// storage-first deletion.
type OrderService struct {
	uowm          *persistence.UnitOfWorkManager
	dispatcher    *event.Dispatcher
	storage       ObjectStorage
	generator     ArtifactGenerator
	names         NameResolver
	audit         *AuditRecorder
	consolidation *ConsolidationService
	logger        *zap.Logger
}

// NewOrderService creates an OrderService.
func NewOrderService(
	uowm *persistence.UnitOfWorkManager,
	dispatcher *event.Dispatcher,
	storage ObjectStorage,
	generator ArtifactGenerator,
	names NameResolver,
	consolidation *ConsolidationService,
	logger *zap.Logger,
) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		uowm:          uowm,
		dispatcher:    dispatcher,
		storage:       storage,
		generator:     generator,
		names:         names,
		audit:         NewAuditRecorder(),
		consolidation: consolidation,
		logger:        logger.Named("order_service"),
	}
}

// BeginBatch opens a coordinator over a fresh unit of work.
func (s *OrderService) BeginBatch(ctx context.Context) (*BatchCoordinator, error) {
	uow, err := s.uowm.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &BatchCoordinator{
		uow:        uow,
		dispatcher: s.dispatcher,
		audit:      s.audit,
		logger:     s.logger,
	}, nil
}

// CreateBatch persists one order per provider contact, generates and
// uploads each order's artifact concurrently, and commits everything in a
// single transaction. Any failure before the commit leaves the database
// untouched; artifacts already uploaded by sibling branches stay behind and
// are only logged.
func (s *OrderService) CreateBatch(ctx context.Context, req CreateOrderBatchRequest) (*CreateOrderBatchResult, error) {
	coordinator, err := s.BeginBatch(ctx)
	if err != nil {
		return nil, err
	}

	if err := coordinator.PrepareBatch(ctx, req); err != nil {
		coordinator.Abort()
		return nil, err
	}
	prepared := coordinator.Prepared()

	keys := make([]string, len(prepared))
	g, gctx := errgroup.WithContext(ctx)
	for i, order := range prepared {
		g.Go(func() error {
			key, err := s.renderAndUpload(gctx, order)
			if err != nil {
				return err
			}
			keys[i] = key
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		coordinator.Abort()
		s.logger.Warn("Order batch aborted after artifact failure; uploaded artifacts are not retracted",
			zap.String("quotation_version_id", req.QuotationVersionID.String()),
			zap.Error(err),
		)
		return nil, shared.NewInfrastructureError("artifact upload failed: %v", err)
	}

	for i, order := range prepared {
		if err := coordinator.SetArtifactKey(ctx, order.ID, keys[i]); err != nil {
			coordinator.Abort()
			return nil, err
		}
	}

	consortium := false
	for _, o := range prepared {
		if o.Consortium {
			consortium = true
		}
	}
	ev := procurement.NewOrderBatchCreatedEvent(req.QuotationID, req.QuotationVersionID, len(prepared), consortium)
	if err := coordinator.FinalizeWithEvent(ctx, ev, s.consolidation.HandleEvent); err != nil {
		return nil, err
	}

	result := &CreateOrderBatchResult{}
	for i, order := range prepared {
		result.Orders = append(result.Orders, CreatedOrder{
			ID:          order.ID,
			Correlative: order.Correlative,
			ArtifactKey: keys[i],
		})
	}
	return result, nil
}

// UpdateOrder mutates an order, regenerates its artifact, and commits the
// database change together with the new artifact key. The stale artifact is
// deleted best-effort before the new upload; an upload failure rolls the
// whole change back.
func (s *OrderService) UpdateOrder(ctx context.Context, req UpdateOrderRequest) error {
	uow, err := s.uowm.Begin(ctx)
	if err != nil {
		return err
	}

	orders := persistence.NewPurchaseOrderRepository(uow.DB())
	order, err := orders.FindByID(ctx, req.OrderID)
	if err != nil {
		_ = uow.Rollback()
		return err
	}
	before := snapshotOrder(order)
	prevQuotationID := order.QuotationID
	prevVersionID := order.QuotationVersionID

	if err := s.applyUpdate(ctx, uow, orders, order, req); err != nil {
		_ = uow.Rollback()
		return err
	}

	records := persistence.NewConsolidatedRecordRepository(uow.DB())
	var recordID *uuid.UUID
	if link, err := records.FindLinkByOrder(ctx, order.ID); err == nil && link != nil {
		recordID = &link.RecordID
	}

	if err := s.audit.OrderUpdated(ctx, uow, before, order, req.UserID, recordID, req.Reason); err != nil {
		_ = uow.Rollback()
		return err
	}

	// Swap the artifact: drop the stale document, upload the regenerated
	// one, and record its key in the same still-open transaction.
	if order.ArtifactKey != nil {
		if err := s.storage.DeleteObject(ctx, *order.ArtifactKey); err != nil {
			s.logger.Warn("Failed to delete stale artifact",
				zap.String("key", *order.ArtifactKey),
				zap.Error(err),
			)
		}
	}
	key, err := s.renderAndUpload(ctx, order)
	if err != nil {
		_ = uow.Rollback()
		return shared.NewInfrastructureError("artifact upload failed: %v", err)
	}
	order.ArtifactKey = &key
	if err := orders.SetArtifactKey(ctx, order.ID, key); err != nil {
		_ = uow.Rollback()
		return err
	}

	var ev shared.DomainEvent
	moved := prevQuotationID != order.QuotationID || prevVersionID != order.QuotationVersionID
	if moved {
		ev = procurement.NewOrderMovedEvent(order, prevQuotationID, prevVersionID)
	} else {
		ev = procurement.NewOrderChangedEvent(order, false)
	}
	if err := s.dispatcher.Publish(uow, ev, s.consolidation.HandleEvent); err != nil {
		_ = uow.Rollback()
		return err
	}

	return uow.Commit()
}

// DeleteOrder removes an order. The artifact is deleted first; if storage
// refuses, the order stays untouched. The deletion transaction then removes
// the consolidation link, writes the audit entry with a NULL order
// reference and the preserved correlative, deletes the rows and publishes
// the recalculation event.
func (s *OrderService) DeleteOrder(ctx context.Context, req DeleteOrderRequest) error {
	order, err := persistence.NewPurchaseOrderRepository(s.uowm.DB()).FindByID(ctx, req.OrderID)
	if err != nil {
		return err
	}

	if order.ArtifactKey != nil {
		if err := s.storage.DeleteObject(ctx, *order.ArtifactKey); err != nil {
			return shared.NewInfrastructureError("cannot delete artifact %s: %v", *order.ArtifactKey, err)
		}
	}

	uow, err := s.uowm.Begin(ctx)
	if err != nil {
		return err
	}
	records := persistence.NewConsolidatedRecordRepository(uow.DB())

	var recordID *uuid.UUID
	if link, err := records.FindLinkByOrder(ctx, order.ID); err == nil && link != nil {
		recordID = &link.RecordID
	}
	if err := records.DeleteLinkByOrder(ctx, order.ID); err != nil {
		_ = uow.Rollback()
		return err
	}

	if err := s.audit.OrderDeleted(ctx, uow, order, req.UserID, recordID, req.Reason); err != nil {
		_ = uow.Rollback()
		return err
	}

	if err := persistence.NewPurchaseOrderRepository(uow.DB()).Delete(ctx, order.ID); err != nil {
		_ = uow.Rollback()
		return err
	}

	ev := procurement.NewOrderChangedEvent(order, true)
	if err := s.dispatcher.Publish(uow, ev, s.consolidation.HandleEvent); err != nil {
		_ = uow.Rollback()
		return err
	}

	return uow.Commit()
}

// GetOrder loads one order for display.
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*procurement.PurchaseOrder, error) {
	return persistence.NewPurchaseOrderRepository(s.uowm.DB()).FindByID(ctx, orderID)
}

// applyUpdate folds the request into the loaded order and reconciles the
// line set, keyed by product.
func (s *OrderService) applyUpdate(ctx context.Context, uow *persistence.UnitOfWork, orders *persistence.GormPurchaseOrderRepository, order *procurement.PurchaseOrder, req UpdateOrderRequest) error {
	if req.QuotationID != nil || req.QuotationVersionID != nil {
		quotationID := order.QuotationID
		versionID := order.QuotationVersionID
		if req.QuotationID != nil {
			quotationID = *req.QuotationID
		}
		if req.QuotationVersionID != nil {
			versionID = *req.QuotationVersionID
		}
		ok, err := persistence.NewQuotationVersionRepository(uow.DB()).Exists(ctx, quotationID, versionID)
		if err != nil {
			return err
		}
		if !ok {
			return shared.NewValidationError("quotation version %s not found for quotation %s", versionID, quotationID)
		}
		order.QuotationID = quotationID
		order.QuotationVersionID = versionID
	}
	if req.ProviderID != nil {
		order.ProviderID = *req.ProviderID
	}
	if req.ProviderContactID != nil {
		order.ProviderContactID = *req.ProviderContactID
	}
	if req.Currency != nil {
		if _, err := procurement.NormalizeCurrency(*req.Currency); err != nil {
			return err
		}
		order.Currency = *req.Currency
	}
	if req.PaymentTerms != nil {
		order.PaymentTerms = *req.PaymentTerms
	}
	if req.DeliveryTerms != nil {
		order.DeliveryTerms = *req.DeliveryTerms
	}

	if req.Lines != nil {
		if len(req.Lines) == 0 {
			return shared.NewValidationError("order %s cannot be left without lines", order.Correlative)
		}
		existing := make(map[uuid.UUID]*procurement.PurchaseOrderLine, len(order.Lines))
		for i := range order.Lines {
			existing[order.Lines[i].ProductID] = &order.Lines[i]
		}

		var newLines []procurement.PurchaseOrderLine
		seen := make(map[uuid.UUID]bool, len(req.Lines))
		for _, in := range req.Lines {
			seen[in.ProductID] = true
			if cur, ok := existing[in.ProductID]; ok {
				cur.Quantity = in.Quantity
				cur.UnitPrice = in.UnitPrice
				cur.LineTotal = in.Quantity.Mul(in.UnitPrice).Round(2)
				cur.TaxTreatment = procurement.TaxTreatment(in.TaxTreatment)
				if err := orders.SaveLine(ctx, cur); err != nil {
					return err
				}
				newLines = append(newLines, *cur)
			} else {
				line := in.toLine(order.ID)
				if err := orders.CreateLine(ctx, &line); err != nil {
					return err
				}
				newLines = append(newLines, line)
			}
		}
		for productID, line := range existing {
			if !seen[productID] {
				if err := orders.DeleteLine(ctx, line.ID); err != nil {
					return err
				}
			}
		}
		order.Lines = newLines
	}

	order.RecomputeTotal()
	if err := order.Validate(); err != nil {
		return err
	}
	return orders.Save(ctx, order)
}

// renderAndUpload generates the order document and stores it under a key
// derived from the correlative.
func (s *OrderService) renderAndUpload(ctx context.Context, order *procurement.PurchaseOrder) (string, error) {
	snapshot, err := s.snapshotFor(ctx, order)
	if err != nil {
		return "", err
	}
	data, contentType, err := s.generator.Generate(ctx, snapshot)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("purchase-orders/%s%s", order.Correlative, extensionFor(contentType))
	if err := s.storage.Upload(ctx, key, data, contentType); err != nil {
		return "", err
	}
	return key, nil
}

func (s *OrderService) snapshotFor(ctx context.Context, order *procurement.PurchaseOrder) (ArtifactSnapshot, error) {
	snapshot := ArtifactSnapshot{Order: order}
	if s.names == nil {
		return snapshot, nil
	}

	var err error
	if snapshot.ProviderName, err = s.names.ProviderName(ctx, order.ProviderID); err != nil {
		return snapshot, err
	}
	if snapshot.ContactName, err = s.names.ContactName(ctx, order.ProviderContactID); err != nil {
		return snapshot, err
	}
	productIDs := make([]uuid.UUID, 0, len(order.Lines))
	for i := range order.Lines {
		productIDs = append(productIDs, order.Lines[i].ProductID)
	}
	if snapshot.ProductNames, err = s.names.ProductNames(ctx, productIDs); err != nil {
		return snapshot, err
	}
	return snapshot, nil
}

func snapshotOrder(order *procurement.PurchaseOrder) *procurement.PurchaseOrder {
	clone := *order
	clone.Lines = make([]procurement.PurchaseOrderLine, len(order.Lines))
	copy(clone.Lines, order.Lines)
	return &clone
}

func extensionFor(contentType string) string {
	switch contentType {
	case "application/json":
		return ".json"
	case "application/pdf":
		return ".pdf"
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return ".xlsx"
	default:
		return ""
	}
}
