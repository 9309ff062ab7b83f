package sync

import (
	"fmt"
	"log"
	"time"

	"github.com/beizuri/posedge/internal/database"
	"github.com/beizuri/posedge/internal/models"
	"github.com/beizuri/posedge/internal/server"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ServerAPI is the slice of the transport client the orchestrator needs.
// Nil results mean the server was unreachable or returned garbage; the
// orchestrator never sees transport errors in any other form.
type ServerAPI interface {
	Health() bool
	Bootstrap() *server.CatalogSnapshot
	PullCatalog(since time.Time) *server.CatalogSnapshot
	PullSales(since time.Time) []server.SaleRecord
	PullReturns(since time.Time) []server.ReturnRecord
	PushSales(batch []server.SaleRecord) *server.PushResult
	PushReturns(batch []server.ReturnRecord) *server.PushResult
}

// CycleResult summarizes one full sync cycle
type CycleResult struct {
	CycleID     string          `json:"cycleId"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt time.Time       `json:"completedAt"`
	Online      bool            `json:"online"`
	Steps       map[string]bool `json:"steps"`
}

// Success reports whether the cycle ran online with every step clean
func (c *CycleResult) Success() bool {
	if !c.Online {
		return false
	}
	for _, ok := range c.Steps {
		if !ok {
			return false
		}
	}
	return true
}

// Orchestrator sequences one sync cycle: push the outbox, pull the
// catalog, pull transactional history. Each step is isolated - a failure
// is logged to the ledger and the cycle moves on to the next step.
type Orchestrator struct {
	db         *database.DB
	api        ServerAPI
	ledger     *Ledger
	reconciler *Reconciler
	notifier   Notifier

	cycleID string
}

// NewOrchestrator wires the sync components together
func NewOrchestrator(db *database.DB, api ServerAPI, ledger *Ledger, notifier Notifier) *Orchestrator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Orchestrator{
		db:         db,
		api:        api,
		ledger:     ledger,
		reconciler: NewReconciler(),
		notifier:   notifier,
	}
}

// Ledger exposes the attempt log for status queries
func (o *Orchestrator) Ledger() *Ledger {
	return o.ledger
}

// Bootstrap runs the one-time initial catalog sync. It is a no-op once a
// success entry of type "initial" exists. The whole snapshot lands in one
// transaction together with its ledger entry, so a mid-batch failure
// leaves no partial catalog behind.
func (o *Orchestrator) Bootstrap() bool {
	done, err := o.ledger.HasBootstrapped()
	if err != nil {
		log.Printf("❌ Sync: cannot query ledger: %v", err)
		return false
	}
	if done {
		return true
	}

	started := time.Now().UTC()
	log.Println("📥 Sync: running initial catalog sync...")

	snap := o.api.Bootstrap()
	if snap == nil {
		o.fail(models.SyncTypeInitial, "server unreachable or invalid response", started)
		return false
	}

	var total int
	err = o.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		total, txErr = o.reconciler.ApplySnapshot(tx, snap, false)
		if txErr != nil {
			return txErr
		}
		return o.ledger.RecordSuccess(tx, models.SyncTypeInitial, total, started, nil)
	})
	if err != nil {
		o.fail(models.SyncTypeInitial, err.Error(), started)
		return false
	}

	log.Printf("✅ Sync: initial sync completed, %d records", total)
	o.emit(models.SyncTypeInitial, models.SyncStatusSuccess, total, "")
	return true
}

// PullCatalog applies incremental catalog updates. Empty polls still log
// a success entry so the watermark advances and repeated polls never
// rescan the same window.
func (o *Orchestrator) PullCatalog() bool {
	started := time.Now().UTC()

	since, err := o.ledger.Watermark(models.SyncTypePull, CatalogFallbackWindow)
	if err != nil {
		o.fail(models.SyncTypePull, err.Error(), started)
		return false
	}

	snap := o.api.PullCatalog(since)
	if snap == nil {
		o.fail(models.SyncTypePull, "server unreachable or invalid response", started)
		return false
	}

	if !snap.HasUpdates {
		if err := o.ledger.RecordSuccess(nil, models.SyncTypePull, 0, started, nil); err != nil {
			log.Printf("❌ Sync: cannot record pull entry: %v", err)
			return false
		}
		o.emit(models.SyncTypePull, models.SyncStatusSuccess, 0, "no updates")
		return true
	}

	// The payload is a full snapshot of active entities, so absence
	// means server-side deletion
	var total int
	err = o.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		total, txErr = o.reconciler.ApplySnapshot(tx, snap, true)
		if txErr != nil {
			return txErr
		}
		return o.ledger.RecordSuccess(tx, models.SyncTypePull, total, started, nil)
	})
	if err != nil {
		o.fail(models.SyncTypePull, err.Error(), started)
		return false
	}

	log.Printf("✅ Sync: pulled catalog updates, %d records", total)
	o.emit(models.SyncTypePull, models.SyncStatusSuccess, total, "")
	return true
}

// PushSales uploads the sales outbox: completed, unsynced, not held. On a
// nil transport result nothing local changes and the same records stay
// eligible next cycle; the server's upsert-by-sale-number makes that retry
// safe. Per-record server errors keep only the rejected sales eligible.
func (o *Orchestrator) PushSales() bool {
	started := time.Now().UTC()

	var sales []models.Sale
	err := o.db.
		Preload("Items").Preload("Items.Product").Preload("Cashier").
		Where("completed_at IS NOT NULL AND synced_at IS NULL AND is_held = ?", false).
		Order("created_at ASC").
		Find(&sales).Error
	if err != nil {
		o.fail(models.SyncTypePushSales, err.Error(), started)
		return false
	}
	if len(sales) == 0 {
		return true
	}

	batch := make([]server.SaleRecord, 0, len(sales))
	pushed := make([]*models.Sale, 0, len(sales))
	var unresolved []SkippedRecord

	for i := range sales {
		rec, err := serializeSale(&sales[i])
		if err != nil {
			log.Printf("⚠️ Sync: cannot serialize sale %s: %v", sales[i].SaleNumber, err)
			unresolved = append(unresolved, SkippedRecord{Number: sales[i].SaleNumber, Reason: err.Error()})
			continue
		}
		batch = append(batch, *rec)
		pushed = append(pushed, &sales[i])
	}

	if len(batch) == 0 {
		o.fail(models.SyncTypePushSales, "no serializable sales in outbox", started)
		return false
	}

	result := o.api.PushSales(batch)
	if result == nil {
		o.fail(models.SyncTypePushSales, "server unreachable or invalid response", started)
		return false
	}
	if !result.Success && len(result.Errors) == 0 {
		o.fail(models.SyncTypePushSales, "server reported failure without per-record detail", started)
		return false
	}

	failed := result.FailedNumbers()
	accepted := make([]uint, 0, len(pushed))
	for i, rec := range batch {
		if !failed[rec.SaleNumber] {
			accepted = append(accepted, pushed[i].ID)
		}
	}

	var detail interface{}
	if len(unresolved) > 0 || len(result.Errors) > 0 {
		detail = map[string]interface{}{
			"unresolved": unresolved,
			"rejected":   result.Errors,
		}
	}

	now := time.Now().UTC()
	err = o.db.Transaction(func(tx *gorm.DB) error {
		if len(accepted) > 0 {
			if err := tx.Model(&models.Sale{}).Where("id IN ?", accepted).Update("synced_at", now).Error; err != nil {
				return err
			}
		}
		return o.ledger.RecordSuccess(tx, models.SyncTypePushSales, len(accepted), started, detail)
	})
	if err != nil {
		o.fail(models.SyncTypePushSales, err.Error(), started)
		return false
	}

	log.Printf("✅ Sync: pushed %d sales (%d rejected)", len(accepted), len(result.Errors))
	o.emit(models.SyncTypePushSales, models.SyncStatusSuccess, len(accepted), "")
	return true
}

// PushReturns uploads the returns outbox with the same retry and
// partial-acceptance semantics as PushSales
func (o *Orchestrator) PushReturns() bool {
	started := time.Now().UTC()

	var returns []models.Return
	err := o.db.
		Preload("Items").Preload("Items.SaleItem").Preload("Items.SaleItem.Product").
		Preload("Sale").Preload("Cashier").
		Where("synced_at IS NULL").
		Order("created_at ASC").
		Find(&returns).Error
	if err != nil {
		o.fail(models.SyncTypePushReturns, err.Error(), started)
		return false
	}
	if len(returns) == 0 {
		return true
	}

	batch := make([]server.ReturnRecord, 0, len(returns))
	pushed := make([]*models.Return, 0, len(returns))
	var unresolved []SkippedRecord

	for i := range returns {
		rec, err := serializeReturn(&returns[i])
		if err != nil {
			log.Printf("⚠️ Sync: cannot serialize return %s: %v", returns[i].ReturnNumber, err)
			unresolved = append(unresolved, SkippedRecord{Number: returns[i].ReturnNumber, Reason: err.Error()})
			continue
		}
		batch = append(batch, *rec)
		pushed = append(pushed, &returns[i])
	}

	if len(batch) == 0 {
		o.fail(models.SyncTypePushReturns, "no serializable returns in outbox", started)
		return false
	}

	result := o.api.PushReturns(batch)
	if result == nil {
		o.fail(models.SyncTypePushReturns, "server unreachable or invalid response", started)
		return false
	}
	if !result.Success && len(result.Errors) == 0 {
		o.fail(models.SyncTypePushReturns, "server reported failure without per-record detail", started)
		return false
	}

	failed := result.FailedNumbers()
	accepted := make([]uint, 0, len(pushed))
	for i, rec := range batch {
		if !failed[rec.ReturnNumber] {
			accepted = append(accepted, pushed[i].ID)
		}
	}

	var detail interface{}
	if len(unresolved) > 0 || len(result.Errors) > 0 {
		detail = map[string]interface{}{
			"unresolved": unresolved,
			"rejected":   result.Errors,
		}
	}

	now := time.Now().UTC()
	err = o.db.Transaction(func(tx *gorm.DB) error {
		if len(accepted) > 0 {
			if err := tx.Model(&models.Return{}).Where("id IN ?", accepted).Update("synced_at", now).Error; err != nil {
				return err
			}
		}
		return o.ledger.RecordSuccess(tx, models.SyncTypePushReturns, len(accepted), started, detail)
	})
	if err != nil {
		o.fail(models.SyncTypePushReturns, err.Error(), started)
		return false
	}

	log.Printf("✅ Sync: pushed %d returns (%d rejected)", len(accepted), len(result.Errors))
	o.emit(models.SyncTypePushReturns, models.SyncStatusSuccess, len(accepted), "")
	return true
}

// PullSales imports sales recorded elsewhere in the chain since the
// transactional watermark
func (o *Orchestrator) PullSales() bool {
	started := time.Now().UTC()

	since, err := o.ledger.Watermark(models.SyncTypePullSales, TransactionFallbackWindow)
	if err != nil {
		o.fail(models.SyncTypePullSales, err.Error(), started)
		return false
	}

	records := o.api.PullSales(since)
	if records == nil {
		o.fail(models.SyncTypePullSales, "server unreachable or invalid response", started)
		return false
	}

	created, skipped, err := o.reconciler.ImportSales(o.db, records)
	if err != nil {
		o.fail(models.SyncTypePullSales, err.Error(), started)
		return false
	}

	var detail interface{}
	if len(skipped) > 0 {
		detail = map[string]interface{}{"skipped": skipped}
	}
	if err := o.ledger.RecordSuccess(nil, models.SyncTypePullSales, created, started, detail); err != nil {
		log.Printf("❌ Sync: cannot record pull_sales entry: %v", err)
		return false
	}

	if created > 0 || len(skipped) > 0 {
		log.Printf("✅ Sync: pulled %d sales, skipped %d", created, len(skipped))
	}
	o.emit(models.SyncTypePullSales, models.SyncStatusSuccess, created, "")
	return true
}

// PullReturns imports returns recorded elsewhere in the chain
func (o *Orchestrator) PullReturns() bool {
	started := time.Now().UTC()

	since, err := o.ledger.Watermark(models.SyncTypePullReturns, TransactionFallbackWindow)
	if err != nil {
		o.fail(models.SyncTypePullReturns, err.Error(), started)
		return false
	}

	records := o.api.PullReturns(since)
	if records == nil {
		o.fail(models.SyncTypePullReturns, "server unreachable or invalid response", started)
		return false
	}

	created, skipped, err := o.reconciler.ImportReturns(o.db, records)
	if err != nil {
		o.fail(models.SyncTypePullReturns, err.Error(), started)
		return false
	}

	var detail interface{}
	if len(skipped) > 0 {
		detail = map[string]interface{}{"skipped": skipped}
	}
	if err := o.ledger.RecordSuccess(nil, models.SyncTypePullReturns, created, started, detail); err != nil {
		log.Printf("❌ Sync: cannot record pull_returns entry: %v", err)
		return false
	}

	if created > 0 || len(skipped) > 0 {
		log.Printf("✅ Sync: pulled %d returns, skipped %d", created, len(skipped))
	}
	o.emit(models.SyncTypePullReturns, models.SyncStatusSuccess, created, "")
	return true
}

// FullSync runs one complete cycle. Push runs before pull so an incoming
// snapshot cannot race the outbox, and the catalog pull runs before the
// transaction pulls so their product and cashier references resolve. A
// failing step never stops the steps after it.
func (o *Orchestrator) FullSync() *CycleResult {
	result := &CycleResult{
		CycleID:   uuid.NewString()[:8],
		StartedAt: time.Now().UTC(),
		Steps:     make(map[string]bool),
	}
	o.cycleID = result.CycleID
	defer func() {
		o.cycleID = ""
		result.CompletedAt = time.Now().UTC()
	}()

	if !o.api.Health() {
		log.Println("📴 Sync: server unreachable, working offline")
		result.Online = false
		return result
	}
	result.Online = true

	result.Steps[models.SyncTypePushSales] = o.runStep(models.SyncTypePushSales, o.PushSales)
	result.Steps[models.SyncTypePushReturns] = o.runStep(models.SyncTypePushReturns, o.PushReturns)
	result.Steps[models.SyncTypePull] = o.runStep(models.SyncTypePull, o.PullCatalog)
	result.Steps[models.SyncTypePullSales] = o.runStep(models.SyncTypePullSales, o.PullSales)
	result.Steps[models.SyncTypePullReturns] = o.runStep(models.SyncTypePullReturns, o.PullReturns)

	return result
}

// runStep guards a cycle step. Panics are converted into failed ledger
// entries: background sync must never take the terminal down.
func (o *Orchestrator) runStep(syncType string, step func() bool) (ok bool) {
	started := time.Now().UTC()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("💥 Sync: step %s panicked: %v", syncType, r)
			_ = o.ledger.RecordFailure(syncType, fmt.Sprintf("panic: %v", r), started)
			o.emit(syncType, models.SyncStatusFailed, 0, fmt.Sprintf("panic: %v", r))
			ok = false
		}
	}()
	return step()
}

func (o *Orchestrator) fail(syncType, message string, started time.Time) {
	log.Printf("❌ Sync: %s failed: %s", syncType, message)
	if err := o.ledger.RecordFailure(syncType, message, started); err != nil {
		log.Printf("❌ Sync: cannot record %s failure: %v", syncType, err)
	}
	o.emit(syncType, models.SyncStatusFailed, 0, message)
}

func (o *Orchestrator) emit(syncType, status string, records int, message string) {
	o.notifier.Notify(Event{
		CycleID:  o.cycleID,
		SyncType: syncType,
		Status:   status,
		Records:  records,
		Message:  message,
		Time:     time.Now().UTC(),
	})
}

// serializeSale maps a local sale onto the wire format. Every reference
// must carry a server id; otherwise the server could not link the record.
func serializeSale(sale *models.Sale) (*server.SaleRecord, error) {
	if sale.Cashier == nil || sale.Cashier.ServerID == nil {
		return nil, fmt.Errorf("cashier %d has no server id", sale.CashierID)
	}

	items := make([]server.SaleItemRecord, 0, len(sale.Items))
	for _, it := range sale.Items {
		if it.Product == nil || it.Product.ServerID == nil {
			return nil, fmt.Errorf("product %d has no server id", it.ProductID)
		}
		items = append(items, server.SaleItemRecord{
			ProductID:      *it.Product.ServerID,
			Quantity:       it.Quantity,
			UnitPrice:      it.UnitPrice,
			DiscountAmount: it.DiscountAmount,
			TotalAmount:    it.TotalAmount,
		})
	}

	return &server.SaleRecord{
		SaleNumber:     sale.SaleNumber,
		SaleType:       sale.SaleType,
		CashierID:      *sale.Cashier.ServerID,
		TotalAmount:    sale.TotalAmount,
		DiscountAmount: sale.DiscountAmount,
		FinalAmount:    sale.FinalAmount,
		PaymentMethod:  sale.PaymentMethod,
		Notes:          sale.Notes,
		CreatedAt:      sale.CreatedAt,
		CompletedAt:    sale.CompletedAt,
		Items:          items,
	}, nil
}

// serializeReturn maps a local return onto the wire format
func serializeReturn(ret *models.Return) (*server.ReturnRecord, error) {
	if ret.Cashier == nil || ret.Cashier.ServerID == nil {
		return nil, fmt.Errorf("cashier %d has no server id", ret.CashierID)
	}
	if ret.Sale == nil {
		return nil, fmt.Errorf("sale %d not loaded", ret.SaleID)
	}

	items := make([]server.ReturnItemRecord, 0, len(ret.Items))
	for _, it := range ret.Items {
		if it.SaleItem == nil || it.SaleItem.Product == nil || it.SaleItem.Product.ServerID == nil {
			return nil, fmt.Errorf("sale item %d has no server-linked product", it.SaleItemID)
		}
		items = append(items, server.ReturnItemRecord{
			ProductID:    *it.SaleItem.Product.ServerID,
			Quantity:     it.Quantity,
			ReturnReason: it.ReturnReason,
			UnitPrice:    it.UnitPrice,
			TotalPrice:   it.TotalPrice,
		})
	}

	return &server.ReturnRecord{
		ReturnNumber:      ret.ReturnNumber,
		SaleNumber:        ret.Sale.SaleNumber,
		CashierID:         *ret.Cashier.ServerID,
		TotalReturnAmount: ret.TotalReturnAmount,
		Notes:             ret.Notes,
		CreatedAt:         ret.CreatedAt,
		Items:             items,
	}, nil
}
