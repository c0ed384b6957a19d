package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
	"github.com/m04kA/SMC-SettlementService/pkg/signature"
	"github.com/shopspring/decimal"
)

// RedirectConfig параметры мерчанта во внешнем процессоре
type RedirectConfig struct {
	MerchantID  string
	MerchantKey string
	Passphrase  string
	ProcessURL  string
	ReturnURL   string
	CancelURL   string
	NotifyURL   string
}

// RedirectGateway оплата через страницу внешнего процессора
// Результат приходит асинхронно подписанным обратным вызовом на NotifyURL
type RedirectGateway struct {
	cfg      RedirectConfig
	verifier Verifier
	logger   Logger
}

// NewRedirectGateway создает шлюз с редиректом
func NewRedirectGateway(cfg RedirectConfig, verifier Verifier, logger Logger) (*RedirectGateway, error) {
	if cfg.MerchantID == "" || cfg.ProcessURL == "" {
		return nil, fmt.Errorf("%w: redirect gateway requires merchant_id and process_url", ErrMisconfigured)
	}
	if _, err := url.Parse(cfg.ProcessURL); err != nil {
		return nil, fmt.Errorf("%w: invalid process_url: %v", ErrMisconfigured, err)
	}
	return &RedirectGateway{cfg: cfg, verifier: verifier, logger: logger}, nil
}

func (g *RedirectGateway) Method() domain.PaymentMethod {
	return domain.PaymentMethodRedirect
}

func (g *RedirectGateway) InitialStatus() domain.PaymentStatus {
	return domain.PaymentStatusPending
}

func (g *RedirectGateway) AcceptsCallbacks() bool {
	return true
}

// Initiate строит подписанную ссылку на страницу оплаты
// Внешних вызовов нет, платёж остаётся pending до обратного вызова
func (g *RedirectGateway) Initiate(_ context.Context, req InitiateRequest) (*InitiationResult, error) {
	if err := validateInitiate(req); err != nil {
		return nil, err
	}

	params := g.requestParams(req)
	params[signature.FieldName] = g.verifier.Sign(params, g.cfg.Passphrase)

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	target := g.cfg.ProcessURL + "?" + values.Encode()

	// merchant_key в payload не сохраняем
	stored := make(map[string]string, len(params))
	for k, v := range params {
		if k == "merchant_key" {
			continue
		}
		stored[k] = v
	}
	payload, err := json.Marshal(stored)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInternal, err, "encode redirect payload")
	}

	g.logger.Info("RedirectGateway: initiated transaction=%s booking=%d amount=%s",
		req.TransactionID, req.Booking.ID, req.Amount.StringFixed(2))

	return &InitiationResult{
		TransactionID:  req.TransactionID,
		Status:         domain.PaymentStatusPending,
		RedirectTarget: target,
		GatewayPayload: payload,
	}, nil
}

// requestParams поля запроса к процессору, пустые значения не передаются
func (g *RedirectGateway) requestParams(req InitiateRequest) map[string]string {
	all := map[string]string{
		"merchant_id":   g.cfg.MerchantID,
		"merchant_key":  g.cfg.MerchantKey,
		"return_url":    g.cfg.ReturnURL,
		"cancel_url":    g.cfg.CancelURL,
		"notify_url":    g.cfg.NotifyURL,
		"name_first":    req.Customer.FirstName,
		"name_last":     req.Customer.LastName,
		"email_address": req.Customer.Email,
		"m_payment_id":  req.TransactionID,
		"amount":        req.Amount.StringFixed(2),
		"item_name":     fmt.Sprintf("Booking #%d", req.Booking.ID),
		"custom_int1":   strconv.FormatInt(req.Booking.ID, 10),
		"custom_str1":   req.Commission.StringFixed(2),
	}

	params := make(map[string]string, len(all))
	for k, v := range all {
		if v != "" {
			params[k] = v
		}
	}
	return params
}

// Reconcile проверяет подпись и сумму, затем переводит COMPLETE в completed
// Остальные коды статуса не меняют платёж
func (g *RedirectGateway) Reconcile(_ context.Context, payment *domain.Payment, cb Callback) (*ReconciliationOutcome, error) {
	provided := cb.Get(signature.FieldName)
	if !g.verifier.Verify(cb.Fields, provided, g.cfg.Passphrase) {
		g.logger.Warn("SECURITY: RedirectGateway - signature mismatch for transaction=%s", payment.TransactionID)
		return rejected(payment, "signature mismatch"), nil
	}

	if merchant := cb.Get(domain.CallbackFieldMerchantID); merchant != "" && merchant != g.cfg.MerchantID {
		g.logger.Warn("SECURITY: RedirectGateway - merchant mismatch for transaction=%s: got %s",
			payment.TransactionID, merchant)
		return rejected(payment, "merchant mismatch"), nil
	}

	gross, err := decimal.NewFromString(cb.Get(domain.CallbackFieldAmountGross))
	if err != nil || !gross.Equal(payment.Amount) {
		g.logger.Warn("SECURITY: RedirectGateway - amount mismatch for transaction=%s: expected %s, got %q",
			payment.TransactionID, payment.Amount.StringFixed(2), cb.Get(domain.CallbackFieldAmountGross))
		return rejected(payment, "amount mismatch"), nil
	}

	code := cb.Get(domain.CallbackFieldStatus)
	if code != domain.GatewayStatusComplete {
		return ignored(payment, fmt.Sprintf("status code %q is not actionable", code)), nil
	}
	if !payment.Method.CanTransition(payment.Status, domain.PaymentStatusCompleted) {
		return ignored(payment, fmt.Sprintf("payment is %s", payment.Status)), nil
	}

	payload, err := json.Marshal(cb.Fields)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInternal, err, "encode callback payload")
	}

	return accepted(payment, domain.PaymentStatusCompleted, payload), nil
}
