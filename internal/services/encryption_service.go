package services

import (
	"reclaim/internal/crypto"
	"reclaim/internal/models"
)

const redemptionCodeInfo = "reclaim/redemption-code/v1"

// EncryptionService protects redemption codes at rest. A nil service stores
// codes in plaintext.
type EncryptionService struct {
	crypto *crypto.Cipher
}

// NewEncryptionService returns nil when masterKey is empty.
func NewEncryptionService(masterKey string) (*EncryptionService, error) {
	if masterKey == "" {
		return nil, nil
	}
	c, err := crypto.NewCipher([]byte(masterKey), redemptionCodeInfo)
	if err != nil {
		return nil, err
	}
	return &EncryptionService{crypto: c}, nil
}

// EncryptRedemption encrypts the redemption code before it is stored.
func (s *EncryptionService) EncryptRedemption(r *models.Redemption) error {
	if s == nil || r.RedemptionCode == nil || *r.RedemptionCode == "" {
		return nil
	}
	sealed, err := s.crypto.Encrypt(*r.RedemptionCode)
	if err != nil {
		return err
	}
	r.RedemptionCode = &sealed
	return nil
}

// DecryptRedemption decrypts the redemption code after it is read.
func (s *EncryptionService) DecryptRedemption(r *models.Redemption) error {
	if s == nil || r.RedemptionCode == nil || *r.RedemptionCode == "" {
		return nil
	}
	plain, err := s.crypto.Decrypt(*r.RedemptionCode)
	if err != nil {
		return err
	}
	r.RedemptionCode = &plain
	return nil
}
