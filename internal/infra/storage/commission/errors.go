package commission

import "errors"

var (
	// ErrRecordNotFound возвращается, когда запись комиссии не найдена
	ErrRecordNotFound = errors.New("commission.repository: record not found")

	// ErrRecordExists возвращается при попытке создать вторую запись для платежа
	ErrRecordExists = errors.New("commission.repository: record already exists for payment")

	// ErrBuildQuery возвращается при ошибке построения SQL запроса
	ErrBuildQuery = errors.New("commission.repository: failed to build query")

	// ErrExecQuery возвращается при ошибке выполнения SQL запроса
	ErrExecQuery = errors.New("commission.repository: failed to execute query")

	// ErrScanRow возвращается при ошибке сканирования результата запроса
	ErrScanRow = errors.New("commission.repository: failed to scan row")
)
