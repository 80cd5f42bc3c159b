package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	keySize       = 32 // AES-256
	minMasterSize = 16
)

// Cipher seals short secrets (redemption codes) with AES-256-GCM.
type Cipher struct {
	key []byte
}

// DeriveKey expands master into a 32-byte key bound to info using HKDF-SHA256.
func DeriveKey(master []byte, info string) ([]byte, error) {
	if len(master) < minMasterSize {
		return nil, errors.New("master key must be at least 16 bytes")
	}
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), key); err != nil {
		return nil, err
	}
	return key, nil
}

// NewCipher derives the sealing key for info from master.
func NewCipher(master []byte, info string) (*Cipher, error) {
	key, err := DeriveKey(master, info)
	if err != nil {
		return nil, err
	}
	return &Cipher{key: key}, nil
}

// Encrypt returns base64 ciphertext with the nonce prepended.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (c *Cipher) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

var compareKey = func() []byte {
	k := make([]byte, keySize)
	_, _ = rand.Read(k)
	return k
}()

// SecureCompare reports whether got equals want in constant time, independent
// of where the inputs first differ and of their lengths.
func SecureCompare(got, want string) bool {
	return hmac.Equal(mac(got), mac(want))
}

func mac(s string) []byte {
	h := hmac.New(sha256.New, compareKey)
	h.Write([]byte(s))
	return h.Sum(nil)
}
