// Phrase-at-rest encryption: the BIP-39 mnemonic a caller derives an
// Account from is the one secret this package never persists in the
// clear. EncryptPhrase/DecryptPhrase wrap it with Argon2id key
// stretching and AES-256-GCM, adapted from an EncryptMnemonic/
// DecryptMnemonic construction to this package's "phrase" terminology
// and to round-trip through a single JSON file a caller
// (cmd/walletcored) controls the path of.
package account

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"unicode"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/argon2"
)

const (
	argon2Time        = 3
	argon2Memory      = 64 * 1024
	argon2Parallelism = 4
	argon2KeyLen      = 32
	argon2SaltLen     = 32

	MinPassphraseLength = 8
	MaxPassphraseLength = 256
)

// EncryptedPhrase is the on-disk JSON representation of a
// passphrase-wrapped BIP-39 mnemonic.
type EncryptedPhrase struct {
	Version     int    `json:"version"`
	Ciphertext  []byte `json:"ciphertext"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Time        uint32 `json:"time"`
	Memory      uint32 `json:"memory"`
	Parallelism uint8  `json:"parallelism"`
}

// ValidatePassphrase requires at least MinPassphraseLength characters
// drawn from at least 3 of the 4 standard character classes.
func ValidatePassphrase(passphrase string) error {
	if len(passphrase) < MinPassphraseLength {
		return fmt.Errorf("account: passphrase must be at least %d characters", MinPassphraseLength)
	}
	if len(passphrase) > MaxPassphraseLength {
		return fmt.Errorf("account: passphrase must be at most %d characters", MaxPassphraseLength)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsNumber(r):
			hasNumber = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	classes := 0
	for _, ok := range []bool{hasUpper, hasLower, hasNumber, hasSpecial} {
		if ok {
			classes++
		}
	}
	if classes < 3 {
		return fmt.Errorf("account: passphrase must mix at least 3 of: uppercase, lowercase, number, symbol")
	}
	return nil
}

// EncryptPhrase wraps a BIP-39 mnemonic phrase under passphrase using
// Argon2id-derived AES-256-GCM.
func EncryptPhrase(phrase, passphrase string) (*EncryptedPhrase, error) {
	if err := ValidatePassphrase(passphrase); err != nil {
		return nil, err
	}
	if !bip39.IsMnemonicValid(phrase) {
		return nil, fmt.Errorf("account: invalid BIP-39 phrase")
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("account: generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(passphrase), salt, argon2Time, argon2Memory, argon2Parallelism, argon2KeyLen)
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("account: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("account: new gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("account: generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(phrase), nil)
	return &EncryptedPhrase{
		Version: 1, Ciphertext: ciphertext, Salt: salt, Nonce: nonce,
		Time: argon2Time, Memory: argon2Memory, Parallelism: argon2Parallelism,
	}, nil
}

// DecryptPhrase reverses EncryptPhrase.
func DecryptPhrase(enc *EncryptedPhrase, passphrase string) (string, error) {
	key := argon2.IDKey([]byte(passphrase), enc.Salt, enc.Time, enc.Memory, enc.Parallelism, argon2KeyLen)
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("account: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("account: new gcm: %w", err)
	}

	plaintext, err := gcm.Open(nil, enc.Nonce, enc.Ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("account: decrypt (wrong passphrase?): %w", err)
	}
	defer zero(plaintext)
	return string(plaintext), nil
}

// SaveEncryptedPhrase writes enc as JSON to path, creating parent
// directories as needed.
func SaveEncryptedPhrase(enc *EncryptedPhrase, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("account: create directory: %w", err)
	}
	data, err := json.Marshal(enc)
	if err != nil {
		return fmt.Errorf("account: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// LoadEncryptedPhrase reads and parses a file written by
// SaveEncryptedPhrase.
func LoadEncryptedPhrase(path string) (*EncryptedPhrase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("account: read file: %w", err)
	}
	var enc EncryptedPhrase
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, fmt.Errorf("account: unmarshal: %w", err)
	}
	return &enc, nil
}
