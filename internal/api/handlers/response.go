package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
)

const (
	msgInternalError = "внутренняя ошибка сервера"
	msgAccepted      = "платёжный шлюз недоступен, оплата будет подтверждена позже"
)

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// RespondJSON пишет JSON ответ
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// RespondError пишет ошибку с указанным статусом
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message})
}

func RespondBadRequest(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusBadRequest, message)
}

func RespondNotFound(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusNotFound, message)
}

func RespondConflict(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusConflict, message)
}

func RespondUnauthorized(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusUnauthorized, message)
}

func RespondInternalError(w http.ResponseWriter) {
	RespondError(w, http.StatusInternalServerError, msgInternalError)
}

// StatusOf HTTP статус для вида доменной ошибки
func StatusOf(err error) int {
	switch domain.KindOf(err) {
	case domain.ErrValidation:
		return http.StatusBadRequest
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrInvalidTransition, domain.ErrRefundRequired, domain.ErrPreconditionFailed:
		return http.StatusConflict
	case domain.ErrSignatureRejected:
		return http.StatusOK
	case domain.ErrGatewayUnavailable:
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}

// RespondDomainError переводит доменную ошибку в ответ
// Детали внутренних ошибок клиенту не отдаются
func RespondDomainError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	switch status {
	case http.StatusInternalServerError:
		RespondInternalError(w)
	case http.StatusAccepted:
		RespondJSON(w, status, ErrorResponse{Error: msgAccepted, Kind: kindName(err)})
	default:
		RespondJSON(w, status, ErrorResponse{Error: domain.MessageOf(err), Kind: kindName(err)})
	}
}

func kindName(err error) string {
	switch domain.KindOf(err) {
	case domain.ErrValidation:
		return "ValidationError"
	case domain.ErrNotFound:
		return "NotFound"
	case domain.ErrInvalidTransition:
		return "InvalidTransition"
	case domain.ErrRefundRequired:
		return "RefundRequired"
	case domain.ErrSignatureRejected:
		return "SignatureRejected"
	case domain.ErrPreconditionFailed:
		return "PreconditionFailed"
	case domain.ErrGatewayUnavailable:
		return "GatewayUnavailable"
	default:
		return "Internal"
	}
}

// DecodeJSON читает тело запроса в dst, неизвестные поля запрещены
func DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errors.New("empty request body")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// DecodeAndValidate DecodeJSON + проверка тегов validate
func DecodeAndValidate(r *http.Request, dst interface{}) error {
	if err := DecodeJSON(r, dst); err != nil {
		return err
	}
	return Validate(dst)
}

// Validate проверяет структуру по тегам validate и собирает понятное сообщение
func Validate(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
}
