package security

import (
	"bytes"
	"testing"
)

func TestNewSecretsManager(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		wantErr bool
	}{
		{
			name:    "valid 32-byte key",
			key:     make([]byte, 32),
			wantErr: false,
		},
		{
			name:    "invalid short key",
			key:     make([]byte, 16),
			wantErr: true,
		},
		{
			name:    "invalid long key",
			key:     make([]byte, 64),
			wantErr: true,
		},
		{
			name:    "empty key",
			key:     []byte{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm, err := NewSecretsManager(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSecretsManager() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && sm == nil {
				t.Error("NewSecretsManager() returned nil without error")
			}
		})
	}
}

func TestNewSecretsManagerFromPassphrase(t *testing.T) {
	tests := []struct {
		name       string
		passphrase string
		wantErr    bool
	}{
		{name: "valid passphrase", passphrase: "correct horse battery staple", wantErr: false},
		{name: "empty passphrase", passphrase: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm, err := NewSecretsManagerFromPassphrase(tt.passphrase)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSecretsManagerFromPassphrase() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && sm == nil {
				t.Error("NewSecretsManagerFromPassphrase() returned nil without error")
			}
		})
	}
}

func TestEncryptDecryptSecretRoundTrip(t *testing.T) {
	sm, err := NewSecretsManagerFromPassphrase("cluster-wide-key")
	if err != nil {
		t.Fatalf("NewSecretsManagerFromPassphrase() error = %v", err)
	}

	plaintext := []byte("s3cr3t-node-password")

	ciphertext, err := sm.EncryptSecret(plaintext)
	if err != nil {
		t.Fatalf("EncryptSecret() error = %v", err)
	}
	if bytes.Equal(ciphertext, plaintext) {
		t.Fatal("EncryptSecret() returned plaintext unchanged")
	}

	got, err := sm.DecryptSecret(ciphertext)
	if err != nil {
		t.Fatalf("DecryptSecret() error = %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("DecryptSecret() = %q, want %q", got, plaintext)
	}
}

func TestEncryptSecretRejectsEmpty(t *testing.T) {
	sm, _ := NewSecretsManagerFromPassphrase("k")
	if _, err := sm.EncryptSecret(nil); err == nil {
		t.Error("EncryptSecret(nil) expected error, got nil")
	}
}

func TestDecryptSecretRejectsTamperedCiphertext(t *testing.T) {
	sm, _ := NewSecretsManagerFromPassphrase("k")
	ciphertext, err := sm.EncryptSecret([]byte("hello"))
	if err != nil {
		t.Fatalf("EncryptSecret() error = %v", err)
	}
	ciphertext[len(ciphertext)-1] ^= 0xFF

	if _, err := sm.DecryptSecret(ciphertext); err == nil {
		t.Error("DecryptSecret() of tampered ciphertext expected error, got nil")
	}
}

func TestEncryptDecryptNodePasswordRoundTrip(t *testing.T) {
	sm, err := NewSecretsManager(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("NewSecretsManager() error = %v", err)
	}

	sealed, err := sm.EncryptNodePassword("hunter2")
	if err != nil {
		t.Fatalf("EncryptNodePassword() error = %v", err)
	}

	got, err := sm.DecryptNodePassword(sealed)
	if err != nil {
		t.Fatalf("DecryptNodePassword() error = %v", err)
	}
	if got != "hunter2" {
		t.Errorf("DecryptNodePassword() = %q, want %q", got, "hunter2")
	}
}
