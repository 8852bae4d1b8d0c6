package keyvault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/scrypt"

	"wallet-custody-go/internal/apperr"
)

const (
	MinMasterSecretLength = 32

	defaultScryptN = 1 << 15
	scryptR        = 8
	scryptP        = 1
	keyLength      = 32
	saltLength     = 16
)

var (
	ErrMasterSecretTooShort = fmt.Errorf("master secret must be at least %d bytes", MinMasterSecretLength)
	ErrDecrypt              = errors.New("unable to decrypt private key")

	privateKeyPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
)

// Sealed is an encrypted private key together with its key-derivation salt
type Sealed struct {
	Ciphertext string // base64(nonce || ciphertext)
	Salt       string // hex
}

// Vault seals custodial private keys with a key derived from the master secret and a per-record salt
type Vault struct {
	masterSecret []byte
	scryptN      int
}

type Option func(*Vault)

// WithScryptCost overrides the scrypt N parameter
func WithScryptCost(n int) Option {
	return func(v *Vault) { v.scryptN = n }
}

func New(masterSecret string, opts ...Option) (*Vault, error) {
	if len(masterSecret) < MinMasterSecretLength {
		return nil, ErrMasterSecretTooShort
	}
	v := &Vault{masterSecret: []byte(masterSecret), scryptN: defaultScryptN}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// ValidatePrivateKey parses a 64 hex character secp256k1 key with an optional 0x prefix
func ValidatePrivateKey(raw string) (*ecdsa.PrivateKey, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(raw), "0x"), "0X")
	if !privateKeyPattern.MatchString(trimmed) {
		return nil, apperr.Validation("private key must be 64 hexadecimal characters with an optional 0x prefix")
	}
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, apperr.Validation("private key is not a valid secp256k1 scalar")
	}
	return key, nil
}

// DeriveAddress returns the lowercase hex address controlled by key
func DeriveAddress(key *ecdsa.PrivateKey) string {
	return strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())
}

func (v *Vault) Encrypt(key *ecdsa.PrivateKey) (Sealed, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return Sealed{}, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := v.cipher(salt)
	if err != nil {
		return Sealed{}, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return Sealed{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	plaintext := crypto.FromECDSA(key)
	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	clear(plaintext)

	return Sealed{
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
		Salt:       hex.EncodeToString(salt),
	}, nil
}

// Decrypt reverses Encrypt. Any failure is returned as ErrDecrypt without key material.
func (v *Vault) Decrypt(s Sealed) (*ecdsa.PrivateKey, error) {
	salt, err := hex.DecodeString(s.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed salt", ErrDecrypt)
	}
	blob, err := base64.StdEncoding.DecodeString(s.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed ciphertext", ErrDecrypt)
	}

	gcm, err := v.cipher(salt)
	if err != nil {
		return nil, err
	}
	if len(blob) < gcm.NonceSize() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	nonce, ciphertext := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", ErrDecrypt)
	}
	defer clear(plaintext)

	key, err := crypto.ToECDSA(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid key bytes", ErrDecrypt)
	}
	return key, nil
}

func (v *Vault) cipher(salt []byte) (cipher.AEAD, error) {
	derived, err := scrypt.Key(v.masterSecret, salt, v.scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
