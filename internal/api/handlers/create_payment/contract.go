package create_payment

import (
	"context"

	"github.com/m04kA/SMC-SettlementService/internal/usecase/settlement"
)

type PaymentUseCase interface {
	InitiatePayment(ctx context.Context, req *settlement.PaymentRequest) (*settlement.PaymentResult, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
