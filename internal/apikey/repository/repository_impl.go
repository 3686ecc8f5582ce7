package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/smallbiznis/vehicleguard/internal/apikey/domain"
	"gorm.io/gorm"
)

const columns = `id, company_id, key_id, name, key_hash, role, is_active, last_used_at, created_at, revoked_at`

type repo struct{}

func Provide() apikeydomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, key *apikeydomain.APIKey) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO api_keys (`+columns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID,
		key.CompanyID,
		key.KeyID,
		key.Name,
		key.KeyHash,
		key.Role,
		key.IsActive,
		key.LastUsedAt,
		key.CreatedAt,
		key.RevokedAt,
	).Error
}

func (r *repo) Revoke(ctx context.Context, db *gorm.DB, companyID snowflake.ID, keyID string, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE api_keys
		 SET is_active = ?, revoked_at = ?
		 WHERE company_id = ? AND key_id = ? AND is_active = ?`,
		false,
		at,
		companyID,
		keyID,
		true,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByKeyID(ctx context.Context, db *gorm.DB, companyID snowflake.ID, keyID string) (*apikeydomain.APIKey, error) {
	var key apikeydomain.APIKey
	err := db.WithContext(ctx).Raw(
		`SELECT `+columns+` FROM api_keys WHERE company_id = ? AND key_id = ?`,
		companyID,
		keyID,
	).Scan(&key).Error
	if err != nil {
		return nil, err
	}
	if key.ID == 0 {
		return nil, nil
	}
	return &key, nil
}

func (r *repo) FindActiveByHash(ctx context.Context, db *gorm.DB, hash string) (*apikeydomain.APIKey, error) {
	var key apikeydomain.APIKey
	err := db.WithContext(ctx).Raw(
		`SELECT `+columns+` FROM api_keys WHERE key_hash = ? AND is_active = ? LIMIT 1`,
		hash,
		true,
	).Scan(&key).Error
	if err != nil {
		return nil, err
	}
	if key.ID == 0 {
		return nil, nil
	}
	return &key, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]apikeydomain.APIKey, error) {
	var keys []apikeydomain.APIKey
	err := db.WithContext(ctx).Raw(
		`SELECT `+columns+` FROM api_keys WHERE company_id = ? ORDER BY created_at DESC, id DESC`,
		companyID,
	).Scan(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *repo) TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE api_keys SET last_used_at = ? WHERE id = ?`,
		at,
		id,
	).Error
}
