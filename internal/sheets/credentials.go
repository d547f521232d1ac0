package sheets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters for the credential passphrase. Changing them breaks
// every payload encrypted with the old values.
const (
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

// ErrNoCredentials means neither a credentials file nor an embedded
// payload is available.
var ErrNoCredentials = errors.New("no service account credentials configured")

// embeddedCredentials holds the encrypted service-account payload. It is
// injected at build time:
//
//	go build -ldflags "-X classpulse/internal/sheets.embeddedCredentials=$(cat credentials.enc)"
var embeddedCredentials string

// encryptedPayload is the on-disk and embedded envelope produced by
// EncryptCredentials.
type encryptedPayload struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// CredentialsConfig names where service-account JSON comes from. File
// wins when set; otherwise the embedded payload is decrypted with
// Passphrase.
type CredentialsConfig struct {
	File       string
	Passphrase string
}

// LoadCredentials returns the plaintext service-account JSON.
func LoadCredentials(cfg CredentialsConfig) ([]byte, error) {
	if cfg.File != "" {
		data, err := os.ReadFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		return data, nil
	}
	if embeddedCredentials == "" {
		return nil, ErrNoCredentials
	}
	return DecryptCredentials(embeddedCredentials, cfg.Passphrase)
}

// EncryptCredentials seals service-account JSON with a passphrase and
// returns the JSON envelope to embed or ship alongside the binary.
func EncryptCredentials(plaintext []byte, passphrase string) (string, error) {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := deriveCipher(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	payload := encryptedPayload{
		Version:    1,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, plaintext, nil)),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(encoded), nil
}

// DecryptCredentials opens an envelope produced by EncryptCredentials.
func DecryptCredentials(envelope, passphrase string) ([]byte, error) {
	var payload encryptedPayload
	if err := json.Unmarshal([]byte(envelope), &payload); err != nil {
		return nil, fmt.Errorf("parse credentials payload: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(payload.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(payload.Nonce)
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := deriveCipher(passphrase, salt)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("invalid nonce length %d", len(nonce))
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt credentials: %w", err)
	}
	return plaintext, nil
}

func deriveCipher(passphrase string, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}
