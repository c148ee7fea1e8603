package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/clock"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/model"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Redemption messages returned to the extension.
const (
	MsgActivated       = "Extension activated"
	MsgValid           = "Activation code is valid"
	MsgUnknownCode     = "Invalid activation code"
	MsgRevoked         = "Activation code has been revoked"
	MsgInactive        = "Activation code is inactive"
	MsgExpired         = "Activation code has expired"
	MsgAlreadyBound    = "Activation code is already bound to another installation"
	MsgExhausted       = "Activation code has already been used"
	MsgNotActivated    = "Activation code has not been activated on this installation"
	MsgDailyLimit      = "Too many activation attempts today, try again tomorrow"
	MsgRedemptionRaced = "Activation code is no longer available"
)

type ActivationResult struct {
	Valid          bool   `json:"valid"`
	Message        string `json:"message"`
	Code           string `json:"code,omitempty"`
	Remaining      int    `json:"remaining"`
	InstallationID string `json:"installationId,omitempty"`
}

type ActivationService interface {
	Issue(ctx context.Context, tx *gorm.DB, order *model.Order, customerID uint) (*model.ActivationCode, error)
	Redeem(ctx context.Context, code, installationID, deviceID string) (*ActivationResult, error)
	Validate(ctx context.Context, code, installationID string) (*ActivationResult, error)
	Revoke(ctx context.Context, code string) error
}

type activationServiceImpl struct {
	activationRepo repository.ActivationRepository
	clock          clock.Clock
	logger         *slog.Logger
	prefix         string
	dailyLimit     int

	generate func() string
}

func NewActivationService(
	activationRepo repository.ActivationRepository,
	clk clock.Clock,
	logger *slog.Logger,
	prefix string,
	dailyLimit int,
) ActivationService {
	s := &activationServiceImpl{
		activationRepo: activationRepo,
		clock:          clk,
		logger:         logger,
		prefix:         strings.ToUpper(prefix),
		dailyLimit:     dailyLimit,
	}
	s.generate = s.newCode
	return s
}

// newCode builds PREFIX-<base36 unix seconds>-<8 random hex>.
func (s *activationServiceImpl) newCode() string {
	stamp := strings.ToUpper(strconv.FormatInt(s.clock.Now().Unix(), 36))
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("%s-%s-%s", s.prefix, stamp, random)
}

// Issue creates the single-use code for a completed order inside tx,
// regenerating on collision.
func (s *activationServiceImpl) Issue(ctx context.Context, tx *gorm.DB, order *model.Order, customerID uint) (*model.ActivationCode, error) {
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		code := &model.ActivationCode{
			Code:           s.generate(),
			OrderID:        order.ID,
			CustomerID:     &customerID,
			CustomerEmail:  order.CustomerEmail,
			MaxActivations: 1,
			IsActive:       true,
		}

		created, err := s.activationRepo.Create(ctx, tx, code)
		if err != nil {
			return nil, fmt.Errorf("create activation code: %w", err)
		}
		if created {
			return code, nil
		}

		s.logger.WarnContext(ctx, "activation code collision, regenerating",
			"order_id", order.ID,
			"attempt", attempt+1,
		)
	}

	return nil, fmt.Errorf("activation code for order %d: %w", order.ID, ErrIssuanceFailed)
}

// Redeem binds a code to the first installation that presents it. Rule
// violations come back as an invalid result, not an error.
func (s *activationServiceImpl) Redeem(ctx context.Context, code, installationID, deviceID string) (*ActivationResult, error) {
	code = strings.TrimSpace(code)
	installationID = strings.TrimSpace(installationID)
	if code == "" || installationID == "" {
		return nil, fmt.Errorf("%w: code and installation id are required", ErrInvalidRequest)
	}

	activation, err := s.activationRepo.FindByCode(ctx, nil, code)
	if repository.IsNotFound(err) {
		return invalid(MsgUnknownCode), nil
	}
	if err != nil {
		return nil, fmt.Errorf("find activation code: %w", err)
	}

	now := s.clock.Now()
	if msg, ok := s.usable(activation, now); !ok {
		return invalid(msg), nil
	}
	if activation.InstallationID != "" && activation.InstallationID != installationID {
		return invalid(MsgAlreadyBound), nil
	}
	if activation.Remaining() == 0 {
		return invalid(MsgExhausted), nil
	}

	limited, err := s.overDailyLimit(ctx, activation.ID, now)
	if err != nil {
		return nil, err
	}
	if limited {
		return invalid(MsgDailyLimit), nil
	}

	bound, err := s.activationRepo.Bind(ctx, nil, activation.ID, installationID, deviceID, now)
	if err != nil {
		return nil, fmt.Errorf("bind activation code: %w", err)
	}
	if !bound {
		s.logger.InfoContext(ctx, "activation redeem lost race", "code_id", activation.ID)
		return invalid(MsgRedemptionRaced), nil
	}

	s.logger.InfoContext(ctx, "activation code redeemed",
		"code_id", activation.ID,
		"order_id", activation.OrderID,
		"installation_id", installationID,
	)

	return &ActivationResult{
		Valid:          true,
		Message:        MsgActivated,
		Code:           activation.Code,
		Remaining:      activation.Remaining() - 1,
		InstallationID: installationID,
	}, nil
}

// Validate re-checks a previously redeemed code for the same installation
// without consuming an activation.
func (s *activationServiceImpl) Validate(ctx context.Context, code, installationID string) (*ActivationResult, error) {
	code = strings.TrimSpace(code)
	installationID = strings.TrimSpace(installationID)
	if code == "" || installationID == "" {
		return nil, fmt.Errorf("%w: code and installation id are required", ErrInvalidRequest)
	}

	activation, err := s.activationRepo.FindByCode(ctx, nil, code)
	if repository.IsNotFound(err) {
		return invalid(MsgUnknownCode), nil
	}
	if err != nil {
		return nil, fmt.Errorf("find activation code: %w", err)
	}

	now := s.clock.Now()
	if msg, ok := s.usable(activation, now); !ok {
		return invalid(msg), nil
	}
	if activation.InstallationID == "" {
		return invalid(MsgNotActivated), nil
	}
	if activation.InstallationID != installationID {
		return invalid(MsgAlreadyBound), nil
	}

	limited, err := s.overDailyLimit(ctx, activation.ID, now)
	if err != nil {
		return nil, err
	}
	if limited {
		return invalid(MsgDailyLimit), nil
	}

	return &ActivationResult{
		Valid:          true,
		Message:        MsgValid,
		Code:           activation.Code,
		Remaining:      activation.Remaining(),
		InstallationID: installationID,
	}, nil
}

func (s *activationServiceImpl) Revoke(ctx context.Context, code string) error {
	revoked, err := s.activationRepo.Revoke(ctx, strings.TrimSpace(code), s.clock.Now())
	if err != nil {
		return fmt.Errorf("revoke activation code: %w", err)
	}
	if !revoked {
		return ErrActivationCodeNotFound
	}

	s.logger.Info("activation code revoked", "code", code)
	return nil
}

func (s *activationServiceImpl) usable(activation *model.ActivationCode, now time.Time) (string, bool) {
	switch {
	case activation.IsRevoked:
		return MsgRevoked, false
	case !activation.IsActive:
		return MsgInactive, false
	case activation.Expired(now):
		return MsgExpired, false
	}
	return "", true
}

func (s *activationServiceImpl) overDailyLimit(ctx context.Context, codeID uint, now time.Time) (bool, error) {
	if s.dailyLimit <= 0 {
		return false, nil
	}

	count, err := s.activationRepo.IncrementDailyCount(ctx, nil, codeID, now.UTC().Format("2006-01-02"))
	if err != nil {
		return false, fmt.Errorf("count activation attempts: %w", err)
	}

	return count > s.dailyLimit, nil
}

func invalid(message string) *ActivationResult {
	return &ActivationResult{Valid: false, Message: message}
}
