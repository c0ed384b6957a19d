// Package stripecharge синхронное списание через Stripe PaymentIntents
package stripecharge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m04kA/SMC-SettlementService/internal/service/gateway"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// PaymentIntents часть API Stripe, используемая списанием
type PaymentIntents interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// Config параметры списания
type Config struct {
	SecretKey     string
	Currency      string
	PaymentMethod string
}

// Charger реализует gateway.Charger поверх PaymentIntents с немедленным подтверждением
type Charger struct {
	intents       PaymentIntents
	currency      string
	paymentMethod string
	log           Logger
}

// NewCharger создает списание с собственным клиентом Stripe (без глобального stripe.Key)
func NewCharger(cfg Config, log Logger) *Charger {
	sc := &client.API{}
	sc.Init(cfg.SecretKey, nil)
	return NewChargerWithIntents(sc.PaymentIntents, cfg, log)
}

// NewChargerWithIntents создает списание поверх готового API (для тестов)
func NewChargerWithIntents(intents PaymentIntents, cfg Config, log Logger) *Charger {
	currency := strings.ToLower(cfg.Currency)
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &Charger{
		intents:       intents,
		currency:      currency,
		paymentMethod: cfg.PaymentMethod,
		log:           log,
	}
}

// Charge создает и подтверждает PaymentIntent
// Отказ карты - это результат (Succeeded=false), а не ошибка; ошибка означает неизвестный исход
func (c *Charger) Charge(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	minor := req.Amount.Shift(2)
	if !minor.IsInteger() || !minor.IsPositive() {
		return nil, fmt.Errorf("%w: amount %s is not a positive number of cents", ErrInternal, req.Amount.String())
	}

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(minor.IntPart()),
		Currency:    stripe.String(c.currency),
		Confirm:     stripe.Bool(true),
		Description: stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	if c.paymentMethod != "" {
		params.PaymentMethod = stripe.String(c.paymentMethod)
	}
	if req.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)

	pi, err := c.intents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			reason := string(stripeErr.DeclineCode)
			if reason == "" {
				reason = string(stripeErr.Code)
			}
			c.log.Info("Stripe: card declined key=%s reason=%s", req.IdempotencyKey, reason)
			return &gateway.ChargeResult{Succeeded: false, DeclineReason: reason}, nil
		}
		c.log.Error("Stripe: charge key=%s failed: %v", req.IdempotencyKey, err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return &gateway.ChargeResult{Reference: pi.ID, Succeeded: true}, nil
	case stripe.PaymentIntentStatusRequiresPaymentMethod, stripe.PaymentIntentStatusCanceled:
		reason := string(pi.Status)
		if pi.LastPaymentError != nil && pi.LastPaymentError.Code != "" {
			reason = string(pi.LastPaymentError.Code)
		}
		return &gateway.ChargeResult{Reference: pi.ID, Succeeded: false, DeclineReason: reason}, nil
	default:
		// processing / requires_action: исход ещё не известен
		c.log.Warn("Stripe: intent=%s for key=%s is %s", pi.ID, req.IdempotencyKey, pi.Status)
		return nil, fmt.Errorf("%w: payment intent %s is %s", ErrUnavailable, pi.ID, pi.Status)
	}
}
