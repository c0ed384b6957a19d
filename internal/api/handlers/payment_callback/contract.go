package payment_callback

import "context"

type CallbackUseCase interface {
	HandleGatewayCallback(ctx context.Context, fields map[string]string) string
}

type Logger interface {
	Warn(format string, v ...interface{})
}
