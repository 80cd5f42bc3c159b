package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reclaim/internal/apperr"
	"reclaim/internal/crypto"
	"reclaim/internal/models"
)

// FulfillmentCallback is the partner's report on one redemption.
type FulfillmentCallback struct {
	RedemptionID    string                  `json:"redemption_id"`
	PartnerName     string                  `json:"partner_name"`
	Status          models.RedemptionStatus `json:"status"`
	RedemptionCode  *string                 `json:"redemption_code,omitempty"`
	FulfillmentData models.RawJSON          `json:"fulfillment_data,omitempty"`
	ErrorMessage    *string                 `json:"error_message,omitempty"`
}

type FulfillmentAck struct {
	Success      bool                    `json:"success"`
	RedemptionID string                  `json:"redemption_id"`
	Status       models.RedemptionStatus `json:"status"`
}

// RewardService reconciles partner fulfillment callbacks into redemptions.
type RewardService struct {
	redemptions   RedemptionRepository
	notifications NotificationRepository
	secret        string
	now           func() time.Time
	logger        *zap.Logger
}

func NewRewardService(redemptions RedemptionRepository, notifications NotificationRepository, webhookSecret string, logger *zap.Logger) *RewardService {
	return &RewardService{
		redemptions:   redemptions,
		notifications: notifications,
		secret:        webhookSecret,
		now:           time.Now,
		logger:        logger,
	}
}

// VerifySignature checks the shared-secret header in constant time.
func (s *RewardService) VerifySignature(signature string) error {
	if s.secret == "" || signature == "" || !crypto.SecureCompare(signature, s.secret) {
		return apperr.Unauthorized("Invalid signature")
	}
	return nil
}

// HandleFulfillment stores the partner's latest status as authoritative and
// queues one notification for the owner. Repeating a callback leaves the
// redemption unchanged and queues another notification.
func (s *RewardService) HandleFulfillment(ctx context.Context, cb FulfillmentCallback) (FulfillmentAck, error) {
	if cb.RedemptionID == "" {
		return FulfillmentAck{}, apperr.Validation("redemption_id is required")
	}
	if cb.Status == "" {
		return FulfillmentAck{}, apperr.Validation("status is required")
	}
	if len(cb.FulfillmentData) > 0 && !json.Valid(cb.FulfillmentData) {
		return FulfillmentAck{}, apperr.Validation("fulfillment_data must be valid JSON")
	}

	red, err := s.redemptions.Get(ctx, cb.RedemptionID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return FulfillmentAck{}, apperr.NotFound("Redemption", cb.RedemptionID)
		}
		return FulfillmentAck{}, err
	}

	now := s.now()
	update := models.FulfillmentUpdate{
		Status:          cb.Status,
		RedemptionCode:  cb.RedemptionCode,
		FulfillmentData: cb.FulfillmentData,
		ErrorMessage:    cb.ErrorMessage,
	}
	if err := s.redemptions.ApplyFulfillment(ctx, red.ID, update, now); err != nil {
		return FulfillmentAck{}, fmt.Errorf("update redemption: %w", err)
	}

	partner := cb.PartnerName
	if partner == "" {
		if partner, err = s.redemptions.PartnerName(ctx, red.RewardID); err != nil {
			return FulfillmentAck{}, err
		}
	}
	title, body := fulfillmentMessage(cb.Status, partner)
	data, err := json.Marshal(map[string]string{"redemption_id": red.ID})
	if err != nil {
		return FulfillmentAck{}, apperr.Internal("encode action data", err)
	}
	n := pendingNotification(red.UserID, title, body, models.TypeRewardUpdate, "rewards", data, now)
	if err := s.notifications.Create(ctx, n); err != nil {
		return FulfillmentAck{}, fmt.Errorf("queue reward notification: %w", err)
	}

	s.logger.Info("redemption fulfillment applied",
		zap.String("redemption_id", red.ID),
		zap.String("user_id", red.UserID),
		zap.String("status", string(cb.Status)))
	return FulfillmentAck{Success: true, RedemptionID: red.ID, Status: cb.Status}, nil
}

// fulfillmentMessage picks the notification text for a status. Anything other
// than delivered or activated is reported as an issue.
func fulfillmentMessage(status models.RedemptionStatus, partner string) (string, string) {
	switch status {
	case models.RedemptionDelivered:
		return "Reward Delivered!", fmt.Sprintf("Your %s reward is ready to use!", partner)
	case models.RedemptionActivated:
		return "Reward Activated!", fmt.Sprintf("Your %s reward has been activated.", partner)
	default:
		return "Reward Issue", fmt.Sprintf("There was an issue with your %s reward. Please contact support.", partner)
	}
}
