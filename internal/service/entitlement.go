package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/model"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Entitlement struct {
	Email     string                   `json:"email"`
	IsPremium bool                     `json:"is_premium"`
	Customer  *model.PremiumProjection `json:"customer,omitempty"`
	User      *model.PremiumProjection `json:"user,omitempty"`
}

type EntitlementService interface {
	Get(ctx context.Context, email string) (*Entitlement, error)
	Recompute(ctx context.Context, email string) (*model.PremiumProjection, error)
}

type entitlementServiceImpl struct {
	txRunner    repository.TxRunner
	orderRepo   repository.OrderRepository
	accountRepo repository.AccountRepository
}

func NewEntitlementService(
	txRunner repository.TxRunner,
	orderRepo repository.OrderRepository,
	accountRepo repository.AccountRepository,
) EntitlementService {
	return &entitlementServiceImpl{
		txRunner:    txRunner,
		orderRepo:   orderRepo,
		accountRepo: accountRepo,
	}
}

// Get reads both projections. Either one being premium grants access.
func (s *entitlementServiceImpl) Get(ctx context.Context, email string) (*Entitlement, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidRequest)
	}

	result := &Entitlement{Email: email}

	customer, err := s.accountRepo.FindCustomerByEmail(ctx, nil, email)
	switch {
	case err == nil:
		result.Customer = &customer.PremiumProjection
	case !repository.IsNotFound(err):
		return nil, fmt.Errorf("find customer: %w", err)
	}

	user, err := s.accountRepo.FindUserByEmail(ctx, nil, email)
	switch {
	case err == nil:
		result.User = &user.PremiumProjection
	case !repository.IsNotFound(err):
		return nil, fmt.Errorf("find user: %w", err)
	}

	result.IsPremium = (result.Customer != nil && result.Customer.IsPremium) ||
		(result.User != nil && result.User.IsPremium)

	return result, nil
}

// Recompute rebuilds both projections from the completed orders of email.
func (s *entitlementServiceImpl) Recompute(ctx context.Context, email string) (*model.PremiumProjection, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidRequest)
	}

	var projection model.PremiumProjection
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		orders, err := s.orderRepo.ListCompletedByEmail(ctx, tx, email)
		if err != nil {
			return fmt.Errorf("list completed orders: %w", err)
		}

		projection = projectOrders(orders)
		return s.accountRepo.ReplaceProjection(ctx, tx, email, projection)
	})
	if err != nil {
		return nil, err
	}

	return &projection, nil
}

// projectOrders folds completed orders, oldest first, into a projection.
func projectOrders(orders []*model.Order) model.PremiumProjection {
	projection := model.PremiumProjection{TotalSpent: decimal.Zero}
	for _, order := range orders {
		projection.ExtensionActivated = true
		projection.TotalOrders++
		projection.TotalSpent = projection.TotalSpent.Add(order.FinalAmount)

		if order.FinalAmount.IsPositive() && !projection.IsPremium {
			projection.IsPremium = true
			projection.PremiumActivatedAt = order.CompletedAt
		}
	}
	return projection
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
