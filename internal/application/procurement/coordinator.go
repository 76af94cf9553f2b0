package procurement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/corpelima/backend/internal/domain/procurement"
	"github.com/corpelima/backend/internal/domain/shared"
	"github.com/corpelima/backend/internal/infrastructure/event"
	"github.com/corpelima/backend/internal/infrastructure/persistence"
)

// BatchCoordinator sequences the two-phase creation of an order batch over
// a single unit of work:
//
//  1. PrepareBatch validates and inserts orders so their ids and
//     correlatives exist inside the open transaction;
//  2. the caller performs side effects (artifact generation and upload)
//     against those ids;
//  3. FinalizeWithEvent writes the audit rows, queues the event and commits
//     — or Abort rolls everything back, leaving no trace in the database.
type BatchCoordinator struct {
	uow        *persistence.UnitOfWork
	dispatcher *event.Dispatcher
	audit      *AuditRecorder
	logger     *zap.Logger

	quotationID uuid.UUID
	versionID   uuid.UUID
	prepared    []*procurement.PurchaseOrder
	finished    bool
}

// Prepared returns the orders inserted by PrepareBatch.
func (c *BatchCoordinator) Prepared() []*procurement.PurchaseOrder {
	return c.prepared
}

// UnitOfWork exposes the coordinator's transaction for in-flight work such
// as recording artifact keys.
func (c *BatchCoordinator) UnitOfWork() *persistence.UnitOfWork {
	return c.uow
}

// PrepareBatch validates the inputs, assigns correlatives from the
// in-transaction maximum, and inserts the orders. Nothing is durable yet.
func (c *BatchCoordinator) PrepareBatch(ctx context.Context, req CreateOrderBatchRequest) error {
	if c.finished {
		return persistence.ErrUnitOfWorkFinished
	}
	if len(req.Orders) == 0 {
		return shared.NewValidationError("batch has no orders")
	}

	quotations := persistence.NewQuotationVersionRepository(c.uow.DB())
	ok, err := quotations.Exists(ctx, req.QuotationID, req.QuotationVersionID)
	if err != nil {
		return err
	}
	if !ok {
		return shared.NewValidationError("quotation version %s not found for quotation %s",
			req.QuotationVersionID, req.QuotationID)
	}

	orders := persistence.NewPurchaseOrderRepository(c.uow.DB())
	seq, err := orders.NextCorrelative(ctx)
	if err != nil {
		return err
	}

	year := time.Now().Year()
	batch := make([]*procurement.PurchaseOrder, 0, len(req.Orders))
	for _, in := range req.Orders {
		order := &procurement.PurchaseOrder{
			ID:                 uuid.New(),
			Correlative:        procurement.FormatCorrelative(seq, year),
			CorrelativeNumber:  seq,
			QuotationID:        req.QuotationID,
			QuotationVersionID: req.QuotationVersionID,
			ProviderID:         in.ProviderID,
			ProviderContactID:  in.ProviderContactID,
			UserID:             req.UserID,
			Currency:           in.Currency,
			TaxTreatment:       procurement.TaxTreatment(in.TaxTreatment),
			PaymentTerms:       in.PaymentTerms,
			DeliveryTerms:      in.DeliveryTerms,
			Consortium:         in.Consortium,
			Active:             true,
		}
		for _, li := range in.Lines {
			order.Lines = append(order.Lines, li.toLine(order.ID))
		}
		order.RecomputeTotal()
		if err := order.Validate(); err != nil {
			return err
		}
		batch = append(batch, order)
		seq++
	}

	if err := orders.CreateBatch(ctx, batch); err != nil {
		return err
	}

	c.quotationID = req.QuotationID
	c.versionID = req.QuotationVersionID
	c.prepared = batch
	return nil
}

// SetArtifactKey records an uploaded artifact's key on a prepared order,
// inside the still-open transaction.
func (c *BatchCoordinator) SetArtifactKey(ctx context.Context, orderID uuid.UUID, key string) error {
	if c.finished {
		return persistence.ErrUnitOfWorkFinished
	}
	for _, o := range c.prepared {
		if o.ID == orderID {
			o.ArtifactKey = &key
		}
	}
	return persistence.NewPurchaseOrderRepository(c.uow.DB()).SetArtifactKey(ctx, orderID, key)
}

// FinalizeWithEvent writes the creation audit rows, queues one event for
// the whole batch, and commits. The event reaches its handler only after
// the commit succeeds.
func (c *BatchCoordinator) FinalizeWithEvent(ctx context.Context, ev shared.DomainEvent, handler persistence.EventHandlerFunc) error {
	if c.finished {
		return persistence.ErrUnitOfWorkFinished
	}

	for _, order := range c.prepared {
		if err := c.audit.OrderCreated(ctx, c.uow, order); err != nil {
			c.Abort()
			return err
		}
	}

	if err := c.dispatcher.Publish(c.uow, ev, handler); err != nil {
		c.Abort()
		return err
	}

	c.finished = true
	return c.uow.Commit()
}

// Abort rolls the unit of work back. The pending event queue is discarded;
// artifacts already uploaded by the caller are not retracted here.
func (c *BatchCoordinator) Abort() {
	if c.finished {
		return
	}
	c.finished = true
	if err := c.uow.Rollback(); err != nil {
		c.logger.Error("Batch rollback failed", zap.Error(err))
	}
}
