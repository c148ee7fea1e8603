package service

import (
	"errors"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/client"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/webhook"
)

var (
	ErrInvalidRequest         = errors.New("invalid request")
	ErrOrderNotFound          = errors.New("order not found")
	ErrOrderNotCompleted      = errors.New("order is not completed")
	ErrProductNotFound        = errors.New("product not found")
	ErrInvoiceNotFound        = errors.New("invoice not found")
	ErrInvoiceReconciliation  = errors.New("invoice line items do not reconcile")
	ErrIssuanceFailed         = errors.New("issuance failed after repeated collisions")
	ErrInvalidCoupon          = errors.New("invalid coupon")
	ErrPaymentNotCompleted    = errors.New("payment not completed")
	ErrActivationCodeNotFound = errors.New("activation code not found")

	ErrInvalidSignature     = webhook.ErrInvalidSignature
	ErrStaleTimestamp       = webhook.ErrStaleTimestamp
	ErrDatabaseUnavailable  = client.ErrDatabaseUnavailable
	ErrGatewayNotConfigured = client.ErrGatewayNotConfigured
)

// maxIssueAttempts bounds the retry loop for activation codes and invoice numbers.
const maxIssueAttempts = 5

const defaultRecoverLimit = 200
