package sheets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serviceAccountJSON = `{"type":"service_account","project_id":"classpulse-test"}`

func TestEncryptDecryptRoundTrip(t *testing.T) {
	envelope, err := EncryptCredentials([]byte(serviceAccountJSON), "passphrase-1")
	require.NoError(t, err)

	plaintext, err := DecryptCredentials(envelope, "passphrase-1")
	require.NoError(t, err)
	assert.Equal(t, serviceAccountJSON, string(plaintext))
}

func TestDecryptWrongPassphrase(t *testing.T) {
	envelope, err := EncryptCredentials([]byte(serviceAccountJSON), "right")
	require.NoError(t, err)

	_, err = DecryptCredentials(envelope, "wrong")
	assert.Error(t, err)
}

func TestDecryptMalformedEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		envelope string
	}{
		{"not json", "garbage"},
		{"bad base64", `{"version":1,"salt":"!!","nonce":"","ciphertext":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecryptCredentials(tt.envelope, "x")
			assert.Error(t, err)
		})
	}
}

func TestLoadCredentialsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sa.json")
	require.NoError(t, os.WriteFile(path, []byte(serviceAccountJSON), 0o600))

	data, err := LoadCredentials(CredentialsConfig{File: path})
	require.NoError(t, err)
	assert.Equal(t, serviceAccountJSON, string(data))
}

func TestLoadCredentialsMissingFile(t *testing.T) {
	_, err := LoadCredentials(CredentialsConfig{File: filepath.Join(t.TempDir(), "absent.json")})
	assert.Error(t, err)
}

func TestLoadCredentialsNothingConfigured(t *testing.T) {
	_, err := LoadCredentials(CredentialsConfig{})
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestLoadCredentialsEmbedded(t *testing.T) {
	envelope, err := EncryptCredentials([]byte(serviceAccountJSON), "build-secret")
	require.NoError(t, err)

	old := embeddedCredentials
	embeddedCredentials = envelope
	t.Cleanup(func() { embeddedCredentials = old })

	data, err := LoadCredentials(CredentialsConfig{Passphrase: "build-secret"})
	require.NoError(t, err)
	assert.Equal(t, serviceAccountJSON, string(data))
}
