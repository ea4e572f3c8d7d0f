package service

import (
	"context"
	"testing"

	"hanapbahay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountService_Users(t *testing.T) {
	db := setupDB(t)
	svc := NewAccountService(db, testLogger())
	ctx := context.Background()

	assert.ErrorIs(t, svc.Register(ctx, &models.User{Name: " "}), ErrValidation)
	assert.ErrorIs(t, svc.Register(ctx, &models.User{Name: "Root", Role: models.RoleAdmin}), ErrValidation)

	user := &models.User{Name: "Ana Reyes", Role: models.RoleOwner, Phone: "09170000000"}
	require.NoError(t, svc.Register(ctx, user))
	me := Actor{UserID: user.ID, Role: models.RoleOwner}

	_, err := svc.GetUser(ctx, tenant, user.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	user.Role = models.RoleAdmin
	user.Name = "Ana R."
	require.NoError(t, svc.UpdateUser(ctx, me, user))
	got, err := svc.GetUser(ctx, me, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana R.", got.Name)
	assert.Equal(t, models.RoleOwner, got.Role)

	require.NoError(t, svc.LinkTelegram(ctx, me, 555))
	got, err = svc.GetUser(ctx, admin, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(555), got.TelegramChatID)
}

func TestAccountService_ProfileAndAccounts(t *testing.T) {
	db := setupDB(t)
	svc := NewAccountService(db, testLogger())
	ctx := context.Background()

	assert.ErrorIs(t, svc.UpsertProfile(ctx, tenant, &models.OwnerProfile{BusinessName: "x"}), ErrForbidden)
	assert.ErrorIs(t, svc.UpsertProfile(ctx, owner, &models.OwnerProfile{}), ErrValidation)
	require.NoError(t, svc.UpsertProfile(ctx, owner, &models.OwnerProfile{BusinessName: "Reyes Dorms"}))
	profile, err := svc.GetProfile(ctx, owner.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Reyes Dorms", profile.BusinessName)

	assert.ErrorIs(t, svc.CreateAccount(ctx, owner, &models.PaymentAccount{Method: "paypal", AccountName: "A", AccountNumber: "1"}), ErrValidation)
	assert.ErrorIs(t, svc.CreateAccount(ctx, owner, &models.PaymentAccount{Method: models.MethodBank, AccountName: "A", AccountNumber: "1"}), ErrValidation)

	gcashAcct := &models.PaymentAccount{Method: models.MethodGCash, AccountName: "Ana Reyes", AccountNumber: "0917 123 4567"}
	require.NoError(t, svc.CreateAccount(ctx, owner, gcashAcct))
	assert.Equal(t, "09171234567", gcashAcct.AccountNumber)
	assert.True(t, gcashAcct.IsDefault)

	bank := &models.PaymentAccount{Method: models.MethodBank, BankName: "BPI", AccountName: "Ana Reyes", AccountNumber: "1234567890", IsDefault: true}
	require.NoError(t, svc.CreateAccount(ctx, owner, bank))

	list, err := svc.ListAccounts(ctx, owner.UserID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, bank.ID, list[0].ID)

	bank.AccountName = "Ana M. Reyes"
	assert.ErrorIs(t, svc.UpdateAccount(ctx, other, bank), ErrForbidden)
	require.NoError(t, svc.UpdateAccount(ctx, owner, bank))

	assert.ErrorIs(t, svc.DeleteAccount(ctx, other, gcashAcct.ID), ErrForbidden)
	require.NoError(t, svc.DeleteAccount(ctx, owner, gcashAcct.ID))
	list, err = svc.ListAccounts(ctx, owner.UserID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
