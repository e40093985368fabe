/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// Subsonic token auth requires the server to recover the account password
// (the client proves knowledge of md5(password+salt)), so passwords are
// stored sealed with AES-GCM rather than hashed. The sealing key is derived
// from the JWT signing key with scrypt.

var sealSalt = []byte("bragi-password-seal-v1")

// PasswordSealer encrypts and decrypts stored account passwords.
type PasswordSealer struct {
	aead cipher.AEAD
}

// NewPasswordSealer derives the sealing key from the server secret.
func NewPasswordSealer(secret []byte) (*PasswordSealer, error) {
	key, err := scrypt.Key(secret, sealSalt, 1<<15, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("derive sealing key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}

	return &PasswordSealer{aead: aead}, nil
}

// Seal encrypts a plaintext password. Output layout: nonce || ciphertext.
func (s *PasswordSealer) Seal(password string) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, []byte(password), nil), nil
}

// Open decrypts a sealed password.
func (s *PasswordSealer) Open(sealed []byte) (string, error) {
	if len(sealed) < s.aead.NonceSize() {
		return "", fmt.Errorf("sealed password too short")
	}
	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("unseal password: %w", err)
	}
	return string(plain), nil
}

// CheckToken verifies a Subsonic auth token: t == md5(password + salt).
func CheckToken(password, salt, token string) bool {
	sum := md5.Sum([]byte(password + salt))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(token))) == 1
}

// CheckPassword verifies a legacy p= password parameter, which may be sent
// either in the clear or hex-encoded with an "enc:" prefix.
func CheckPassword(stored, provided string) bool {
	if strings.HasPrefix(provided, "enc:") {
		decoded, err := hex.DecodeString(strings.TrimPrefix(provided, "enc:"))
		if err != nil {
			return false
		}
		provided = string(decoded)
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(provided)) == 1
}
