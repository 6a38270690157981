package application

import (
	"context"
	"strings"

	"github.com/wyfcoding/investledger/internal/ledger/domain"
)

// ProfileService 用户注册与 KYC
type ProfileService struct {
	ledgers         *LedgerStore
	users           domain.UserRepository
	defaultCurrency string
}

// NewProfileService 创建用户服务
func NewProfileService(ledgers *LedgerStore, defaultCurrency string) *ProfileService {
	return &ProfileService{
		ledgers:         ledgers,
		users:           ledgers.Store().Users(),
		defaultCurrency: defaultCurrency,
	}
}

// Register 同一事务内创建用户资料与零余额账本
func (s *ProfileService) Register(ctx context.Context, cmd RegisterUserCommand) (*UserProfileDTO, error) {
	if err := ValidateUserID(cmd.UserID); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(cmd.Username)
	if err := ValidateUsername(username); err != nil {
		return nil, domain.NewValidationError("username is required")
	}
	if err := validate.Var(cmd.Email, "required,email"); err != nil {
		return nil, domain.NewValidationError("email is not a valid address")
	}
	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}

	var profile *domain.UserProfile
	err := s.ledgers.Run(ctx, "register_user", func(tx *LedgerTx) error {
		profile = &domain.UserProfile{
			UserID:    cmd.UserID,
			Username:  username,
			Name:      strings.TrimSpace(cmd.Name),
			Email:     strings.TrimSpace(cmd.Email),
			KYCStatus: domain.KYCNone,
			CreatedAt: tx.Now(),
			UpdatedAt: tx.Now(),
		}
		if err := s.users.Create(tx.Context(), profile); err != nil {
			return err
		}
		return tx.Create(domain.NewLedger(cmd.UserID, currency, tx.Now()))
	})
	logOutcome(ctx, "register user", err, "user_id", cmd.UserID, "username", username)
	if err != nil {
		return nil, err
	}
	return toUserProfileDTO(profile), nil
}

// SubmitKYC 记录 KYC 材料引用
func (s *ProfileService) SubmitKYC(ctx context.Context, cmd SubmitKYCCommand) (*UserProfileDTO, error) {
	if err := ValidateUserID(cmd.UserID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cmd.DocumentType) == "" {
		return nil, domain.NewValidationError("documentType is required")
	}
	if err := validate.Var(cmd.DocumentURL, "required,url"); err != nil {
		return nil, domain.NewValidationError("documentUrl must be an absolute URL")
	}

	var profile *domain.UserProfile
	err := s.ledgers.Run(ctx, "submit_kyc", func(tx *LedgerTx) error {
		var err error
		profile, err = s.users.Get(tx.Context(), cmd.UserID)
		if err != nil {
			return err
		}
		if err := profile.SubmitKYC(cmd.DocumentType, cmd.DocumentURL, tx.Now()); err != nil {
			return err
		}
		return s.users.Update(tx.Context(), profile)
	})
	logOutcome(ctx, "submit kyc", err, "user_id", cmd.UserID, "document_type", cmd.DocumentType)
	if err != nil {
		return nil, err
	}
	return toUserProfileDTO(profile), nil
}

// GetProfile 读取用户资料
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*UserProfileDTO, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toUserProfileDTO(u), nil
}
