package useragent

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

const (
	ActionLogin  = "login"
	ActionLogout = "logout"
)

// LoginState travels through the provider in the state parameter.
type LoginState struct {
	Nonce        string `json:"n"`
	CodeVerifier string `json:"cv,omitempty"`
	RedirectURL  string `json:"r,omitempty"`
	Action       string `json:"a"`
	IssuedAt     int64  `json:"iat"`
	ExpiresAt    int64  `json:"exp"`
}

// StateCodec seals and opens LoginState values.
type StateCodec interface {
	Encode(state *LoginState) (string, error)
	Decode(token string) (*LoginState, error)
}

// EncryptedStateCodec encrypts with AES-GCM and signs with HMAC-SHA256.
type EncryptedStateCodec struct {
	encryptionKey []byte
	hmacKey       []byte
	ttl           time.Duration
	now           func() time.Time
}

func NewEncryptedStateCodec(encryptionKey, hmacKey []byte, ttl time.Duration) *EncryptedStateCodec {
	if ttl == 0 {
		ttl = DefaultStateTTL
	}
	return &EncryptedStateCodec{
		encryptionKey: encryptionKey,
		hmacKey:       hmacKey,
		ttl:           ttl,
		now:           time.Now,
	}
}

func (sc *EncryptedStateCodec) Encode(state *LoginState) (string, error) {
	if state == nil {
		return "", ErrInvalidState
	}

	now := sc.now()
	if state.IssuedAt == 0 {
		state.IssuedAt = now.Unix()
	}
	if state.ExpiresAt == 0 {
		state.ExpiresAt = now.Add(sc.ttl).Unix()
	}
	if state.Nonce == "" {
		state.Nonce = randomToken(16)
	}

	plaintext, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}

	gcm, err := sc.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)

	mac := hmac.New(sha256.New, sc.hmacKey)
	mac.Write(ciphertext)

	return base64.URLEncoding.EncodeToString(append(mac.Sum(nil), ciphertext...)), nil
}

func (sc *EncryptedStateCodec) Decode(token string) (*LoginState, error) {
	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil || len(data) < sha256.Size {
		return nil, ErrInvalidState
	}

	signature, ciphertext := data[:sha256.Size], data[sha256.Size:]

	mac := hmac.New(sha256.New, sc.hmacKey)
	mac.Write(ciphertext)
	if !hmac.Equal(signature, mac.Sum(nil)) {
		return nil, ErrInvalidState
	}

	gcm, err := sc.aead()
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, ErrInvalidState
	}

	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrInvalidState
	}

	var state LoginState
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return nil, ErrInvalidState
	}

	if sc.now().Unix() > state.ExpiresAt {
		return nil, ErrStateExpired
	}

	return &state, nil
}

func (sc *EncryptedStateCodec) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(sc.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return b
}

func randomToken(n int) string {
	return base64.RawURLEncoding.EncodeToString(randomBytes(n))
}

// PKCE verifier and S256 challenge.
func newCodeVerifier() string {
	return randomToken(32)
}

func codeChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}
