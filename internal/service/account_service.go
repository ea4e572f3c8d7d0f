package service

import (
	"context"
	"fmt"
	"strings"

	"hanapbahay/internal/domain"
	"hanapbahay/internal/models"

	"github.com/rs/zerolog"
)

type AccountService struct {
	repo   domain.AccountRepository
	logger *zerolog.Logger
}

func NewAccountService(repo domain.AccountRepository, logger *zerolog.Logger) *AccountService {
	return &AccountService{
		repo:   repo,
		logger: logger,
	}
}

func (s *AccountService) Register(ctx context.Context, user *models.User) error {
	user.Name = strings.TrimSpace(user.Name)
	if user.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	switch user.Role {
	case "", models.RoleTenant, models.RoleOwner:
	default:
		return fmt.Errorf("%w: role %q cannot be self-assigned", ErrValidation, user.Role)
	}
	return s.repo.CreateUser(ctx, user)
}

func (s *AccountService) GetUser(ctx context.Context, actor Actor, id int64) (*models.User, error) {
	if actor.UserID != id && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.repo.GetUserByID(ctx, id)
}

func (s *AccountService) UpdateUser(ctx context.Context, actor Actor, user *models.User) error {
	if actor.UserID != user.ID && !actor.IsAdmin() {
		return ErrForbidden
	}
	current, err := s.repo.GetUserByID(ctx, user.ID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(user.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !actor.IsAdmin() {
		user.Role = current.Role
	}
	user.TelegramChatID = current.TelegramChatID
	return s.repo.UpdateUser(ctx, user)
}

// LinkTelegram stores the chat id notifications are sent to.
func (s *AccountService) LinkTelegram(ctx context.Context, actor Actor, chatID int64) error {
	return s.repo.LinkTelegramChat(ctx, actor.UserID, chatID)
}

func (s *AccountService) UpsertProfile(ctx context.Context, actor Actor, profile *models.OwnerProfile) error {
	if actor.Role != models.RoleOwner && !actor.IsAdmin() {
		return ErrForbidden
	}
	if !actor.IsAdmin() || profile.OwnerID == 0 {
		profile.OwnerID = actor.UserID
	}
	if strings.TrimSpace(profile.BusinessName) == "" && strings.TrimSpace(profile.ContactPhone) == "" {
		return fmt.Errorf("%w: business name or contact phone is required", ErrValidation)
	}
	return s.repo.UpsertOwnerProfile(ctx, profile)
}

func (s *AccountService) GetProfile(ctx context.Context, ownerID int64) (*models.OwnerProfile, error) {
	return s.repo.GetOwnerProfile(ctx, ownerID)
}

func validateAccount(a *models.PaymentAccount) error {
	a.AccountName = strings.TrimSpace(a.AccountName)
	a.AccountNumber = strings.ReplaceAll(strings.TrimSpace(a.AccountNumber), " ", "")
	switch a.Method {
	case models.MethodGCash, models.MethodMaya:
		a.BankName = ""
	case models.MethodBank:
		if strings.TrimSpace(a.BankName) == "" {
			return fmt.Errorf("%w: bank name is required", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unsupported method %q", ErrValidation, a.Method)
	}
	if a.AccountName == "" || a.AccountNumber == "" {
		return fmt.Errorf("%w: account name and number are required", ErrValidation)
	}
	return nil
}

func (s *AccountService) CreateAccount(ctx context.Context, actor Actor, account *models.PaymentAccount) error {
	if actor.Role != models.RoleOwner && !actor.IsAdmin() {
		return ErrForbidden
	}
	if !actor.IsAdmin() || account.OwnerID == 0 {
		account.OwnerID = actor.UserID
	}
	if err := validateAccount(account); err != nil {
		return err
	}
	return s.repo.CreatePaymentAccount(ctx, account)
}

func (s *AccountService) UpdateAccount(ctx context.Context, actor Actor, account *models.PaymentAccount) error {
	current, err := s.repo.GetPaymentAccount(ctx, account.ID)
	if err != nil {
		return err
	}
	if !actor.Owns(current.OwnerID) {
		return ErrForbidden
	}
	account.OwnerID = current.OwnerID
	if err := validateAccount(account); err != nil {
		return err
	}
	return s.repo.UpdatePaymentAccount(ctx, account)
}

func (s *AccountService) DeleteAccount(ctx context.Context, actor Actor, accountID int64) error {
	current, err := s.repo.GetPaymentAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !actor.Owns(current.OwnerID) {
		return ErrForbidden
	}
	return s.repo.DeletePaymentAccount(ctx, current.OwnerID, accountID)
}

// ListAccounts is public so tenants know where to send manual payments.
func (s *AccountService) ListAccounts(ctx context.Context, ownerID int64) ([]*models.PaymentAccount, error) {
	return s.repo.ListPaymentAccounts(ctx, ownerID)
}
