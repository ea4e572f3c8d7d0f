package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hanapbahay/internal/models"
)

func (db *DB) UpsertOwnerProfile(ctx context.Context, profile *models.OwnerProfile) error {
	now := time.Now()
	query := `INSERT INTO owner_profiles (
				owner_id, business_name, contact_phone, contact_email, address, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(owner_id) DO UPDATE SET
                business_name = excluded.business_name,
                contact_phone = excluded.contact_phone,
                contact_email = excluded.contact_email,
                address = excluded.address,
                updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, query,
		profile.OwnerID,
		profile.BusinessName,
		profile.ContactPhone,
		profile.ContactEmail,
		profile.Address,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert owner profile: %w", err)
	}
	profile.UpdatedAt = now
	return nil
}

func (db *DB) GetOwnerProfile(ctx context.Context, ownerID int64) (*models.OwnerProfile, error) {
	query := `SELECT owner_id, business_name, contact_phone, contact_email, address, created_at, updated_at
              FROM owner_profiles WHERE owner_id = ?`
	var p models.OwnerProfile
	err := db.QueryRowContext(ctx, query, ownerID).Scan(
		&p.OwnerID, &p.BusinessName, &p.ContactPhone, &p.ContactEmail, &p.Address, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "owner profile", ownerID)
	}
	return &p, nil
}

// CreatePaymentAccount inserts an account. The first account of an owner,
// or one flagged default, becomes the only default.
func (db *DB) CreatePaymentAccount(ctx context.Context, account *models.PaymentAccount) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM payment_accounts WHERE owner_id = ?`,
			account.OwnerID).Scan(&count); err != nil {
			return fmt.Errorf("failed to count payment accounts: %w", err)
		}
		if count == 0 {
			account.IsDefault = true
		}
		if account.IsDefault {
			if _, err := tx.ExecContext(ctx, `UPDATE payment_accounts SET is_default = 0 WHERE owner_id = ?`,
				account.OwnerID); err != nil {
				return fmt.Errorf("failed to clear default account: %w", err)
			}
		}

		now := time.Now()
		query := `INSERT INTO payment_accounts (
					owner_id, method, account_name, account_number, bank_name, is_default, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		result, err := tx.ExecContext(ctx, query,
			account.OwnerID,
			account.Method,
			account.AccountName,
			account.AccountNumber,
			account.BankName,
			account.IsDefault,
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to create payment account: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		account.ID = id
		account.CreatedAt = now
		account.UpdatedAt = now
		return nil
	})
}

func (db *DB) UpdatePaymentAccount(ctx context.Context, account *models.PaymentAccount) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if account.IsDefault {
			if _, err := tx.ExecContext(ctx, `UPDATE payment_accounts SET is_default = 0 WHERE owner_id = ?`,
				account.OwnerID); err != nil {
				return fmt.Errorf("failed to clear default account: %w", err)
			}
		}
		now := time.Now()
		query := `UPDATE payment_accounts
                  SET method = ?, account_name = ?, account_number = ?, bank_name = ?, is_default = ?, updated_at = ?
                  WHERE id = ? AND owner_id = ?`
		result, err := tx.ExecContext(ctx, query,
			account.Method, account.AccountName, account.AccountNumber, account.BankName,
			account.IsDefault, now, account.ID, account.OwnerID,
		)
		if err != nil {
			return fmt.Errorf("failed to update payment account: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return fmt.Errorf("payment account %d: %w", account.ID, ErrNotFound)
		}
		account.UpdatedAt = now
		return nil
	})
}

func (db *DB) DeletePaymentAccount(ctx context.Context, ownerID, accountID int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM payment_accounts WHERE id = ? AND owner_id = ?`, accountID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete payment account: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("payment account %d: %w", accountID, ErrNotFound)
	}
	return nil
}

func (db *DB) GetPaymentAccount(ctx context.Context, id int64) (*models.PaymentAccount, error) {
	query := `SELECT id, owner_id, method, account_name, account_number, bank_name, is_default, created_at, updated_at
              FROM payment_accounts WHERE id = ?`
	var a models.PaymentAccount
	err := db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.OwnerID, &a.Method, &a.AccountName, &a.AccountNumber, &a.BankName, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "payment account", id)
	}
	return &a, nil
}

// ListPaymentAccounts returns the owner's accounts, default first.
func (db *DB) ListPaymentAccounts(ctx context.Context, ownerID int64) ([]*models.PaymentAccount, error) {
	query := `SELECT id, owner_id, method, account_name, account_number, bank_name, is_default, created_at, updated_at
              FROM payment_accounts WHERE owner_id = ? ORDER BY is_default DESC, id ASC`
	rows, err := db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.PaymentAccount
	for rows.Next() {
		a := &models.PaymentAccount{}
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Method, &a.AccountName, &a.AccountNumber,
			&a.BankName, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
