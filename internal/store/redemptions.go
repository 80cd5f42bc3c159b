package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"reclaim/internal/apperr"
	"reclaim/internal/models"
)

const redemptionColumns = `id, user_id, reward_id, points_spent, status, redemption_code,
	fulfillment_data, error_message, redeemed_at, updated_at`

type RedemptionRepository struct {
	db     *sqlx.DB
	cipher RedemptionCipher
}

// NewRedemptionRepository builds the repository; cipher may be nil.
func NewRedemptionRepository(db *sqlx.DB, cipher RedemptionCipher) *RedemptionRepository {
	return &RedemptionRepository{db: db, cipher: cipher}
}

func (r *RedemptionRepository) Get(ctx context.Context, id string) (*models.Redemption, error) {
	var red models.Redemption
	query := r.db.Rebind(`SELECT ` + redemptionColumns + ` FROM user_rewards WHERE id = ?`)
	if err := r.db.GetContext(ctx, &red, query, id); err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("redemption", id)
		}
		return nil, apperr.Database("select user_reward", err)
	}
	if r.cipher != nil {
		if err := r.cipher.DecryptRedemption(&red); err != nil {
			return nil, apperr.Internal("decrypt redemption code", err)
		}
	}
	return &red, nil
}

func (r *RedemptionRepository) Create(ctx context.Context, red models.Redemption) error {
	if r.cipher != nil {
		if err := r.cipher.EncryptRedemption(&red); err != nil {
			return apperr.Internal("encrypt redemption code", err)
		}
	}
	red.RedeemedAt = utc(red.RedeemedAt)
	red.UpdatedAt = utc(red.UpdatedAt)
	query := `INSERT INTO user_rewards (` + redemptionColumns + `)
		VALUES (:id, :user_id, :reward_id, :points_spent, :status, :redemption_code,
			:fulfillment_data, :error_message, :redeemed_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, red); err != nil {
		return apperr.Database("insert user_reward", err)
	}
	return nil
}

// ApplyFulfillment overwrites status, code, payload and error with the partner's
// latest report.
func (r *RedemptionRepository) ApplyFulfillment(ctx context.Context, id string, u models.FulfillmentUpdate, now time.Time) error {
	if r.cipher != nil {
		sealed := models.Redemption{RedemptionCode: u.RedemptionCode}
		if err := r.cipher.EncryptRedemption(&sealed); err != nil {
			return apperr.Internal("encrypt redemption code", err)
		}
		u.RedemptionCode = sealed.RedemptionCode
	}
	query := r.db.Rebind(`UPDATE user_rewards
		SET status = ?, redemption_code = ?, fulfillment_data = ?, error_message = ?, updated_at = ?
		WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query,
		u.Status, u.RedemptionCode, u.FulfillmentData, u.ErrorMessage, utc(now), id)
	if err != nil {
		return apperr.Database("update user_reward", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("redemption", id)
	}
	return nil
}

// PartnerName returns the partner behind the redemption's reward, empty when
// the reward is not in the catalog.
func (r *RedemptionRepository) PartnerName(ctx context.Context, rewardID string) (string, error) {
	var name string
	query := r.db.Rebind(`SELECT partner_name FROM rewards_catalog WHERE id = ?`)
	if err := r.db.GetContext(ctx, &name, query, rewardID); err != nil {
		if isNoRows(err) {
			return "", nil
		}
		return "", apperr.Database("select rewards_catalog", err)
	}
	return name, nil
}

func (r *RedemptionRepository) CreateReward(ctx context.Context, id, partnerName, name string, pointsCost int) error {
	query := r.db.Rebind(`INSERT INTO rewards_catalog (id, partner_name, name, points_cost, active)
		VALUES (?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, id, partnerName, name, pointsCost, true); err != nil {
		return apperr.Database("insert rewards_catalog", err)
	}
	return nil
}
