package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// KeySize is the AES-256 key length
const KeySize = 32

// record is the stored form of a credential variant
type record struct {
	Kind      string `json:"kind"`
	AccessKey string `json:"accessKey,omitempty"`
	SecretKey string `json:"secretKey,omitempty"`
	Bucket    string `json:"bucketName,omitempty"`
	Region    string `json:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	URL       string `json:"url,omitempty"`
}

func toRecord(creds Credentials) (record, error) {
	switch c := creds.(type) {
	case Keyed:
		return record{
			Kind:      KindKeyed,
			AccessKey: c.AccessKey,
			SecretKey: c.SecretKey,
			Bucket:    c.Bucket,
			Region:    c.Region,
			Endpoint:  c.Endpoint,
		}, nil
	case URL:
		return record{Kind: KindURL, URL: c.URL}, nil
	}
	return record{}, fmt.Errorf("unsupported credentials %T", creds)
}

func (r record) credentials() (Credentials, error) {
	switch r.Kind {
	case KindKeyed:
		return Keyed{
			AccessKey: r.AccessKey,
			SecretKey: r.SecretKey,
			Bucket:    r.Bucket,
			Region:    r.Region,
			Endpoint:  r.Endpoint,
		}, nil
	case KindURL:
		return URL{URL: r.URL}, nil
	}
	return nil, fmt.Errorf("unknown credentials kind %q", r.Kind)
}

// Sealer encrypts credential records with AES-GCM
type Sealer struct {
	key []byte
}

// NewSealer creates a sealer from a 32 byte key
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("sealer key must be %d bytes, got %d", KeySize, len(key))
	}
	return &Sealer{key: key}, nil
}

// LoadOrCreateKey reads the key at path, generating and persisting a new
// one when the file does not exist.
func LoadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != KeySize {
			return nil, fmt.Errorf("key file %s: expected %d bytes, got %d", path, KeySize, len(key))
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	key = make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, err
	}
	return key, nil
}

// Seal serializes and encrypts creds
func (s *Sealer) Seal(creds Credentials) ([]byte, error) {
	rec, err := toRecord(creds)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, data, nil), nil
}

// Open decrypts a value produced by Seal
func (s *Sealer) Open(ciphertext []byte) (Credentials, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("malformed ciphertext")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, err
	}

	var rec record
	if err := json.Unmarshal(plaintext, &rec); err != nil {
		return nil, err
	}
	return rec.credentials()
}

func (s *Sealer) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
