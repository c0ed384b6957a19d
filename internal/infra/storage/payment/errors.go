package payment

import "errors"

var (
	// ErrPaymentNotFound возвращается, когда платёж не найден
	ErrPaymentNotFound = errors.New("payment.repository: payment not found")

	// ErrOpenPaymentExists возвращается, когда у бронирования уже есть незавершённая или успешная попытка оплаты
	ErrOpenPaymentExists = errors.New("payment.repository: booking already has an open payment")

	// ErrDuplicateTransaction возвращается при повторном transaction_id
	ErrDuplicateTransaction = errors.New("payment.repository: duplicate transaction id")

	// ErrStatusConflict возвращается, когда conditional update не нашёл платёж в ожидаемом статусе
	ErrStatusConflict = errors.New("payment.repository: status changed concurrently")

	// ErrBuildQuery возвращается при ошибке построения SQL запроса
	ErrBuildQuery = errors.New("payment.repository: failed to build query")

	// ErrExecQuery возвращается при ошибке выполнения SQL запроса
	ErrExecQuery = errors.New("payment.repository: failed to execute query")

	// ErrScanRow возвращается при ошибке сканирования результата запроса
	ErrScanRow = errors.New("payment.repository: failed to scan row")
)
