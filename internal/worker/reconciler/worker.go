// Package reconciler периодически чинит расхождения между платежами, комиссиями и бронированиями
package reconciler

import (
	"context"
	"time"

	"github.com/m04kA/SMC-SettlementService/internal/usecase/settlement"
)

// Reconciler проход сверки (settlement.UseCase)
type Reconciler interface {
	ReconcileSettlements(ctx context.Context, limit uint64) (*settlement.ReconcileReport, error)
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// Worker запускает сверку по таймеру
type Worker struct {
	reconciler Reconciler
	interval   time.Duration
	batchSize  uint64
	logger     Logger
}

// NewWorker создает воркер сверки
func NewWorker(reconciler Reconciler, interval time.Duration, batchSize uint64, logger Logger) *Worker {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize == 0 {
		batchSize = 100
	}
	return &Worker{reconciler: reconciler, interval: interval, batchSize: batchSize, logger: logger}
}

// Run крутит цикл до отмены контекста
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Reconciler: started, interval=%s", w.interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Reconciler: stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce один проход сверки
func (w *Worker) RunOnce(ctx context.Context) {
	report, err := w.reconciler.ReconcileSettlements(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("Reconciler: pass failed: %v", err)
		return
	}
	if report.CommissionsRepaired > 0 || report.BookingsConfirmed > 0 || report.PaymentsResolved > 0 {
		w.logger.Info("Reconciler: repaired commissions=%d, confirmed bookings=%d, resolved payments=%d",
			report.CommissionsRepaired, report.BookingsConfirmed, report.PaymentsResolved)
	}
	if report.PaymentsUnresolved > 0 {
		w.logger.Info("Reconciler: %d pending payments await callback or manual review", report.PaymentsUnresolved)
	}
}
