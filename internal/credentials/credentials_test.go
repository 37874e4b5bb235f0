package credentials

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/damacus/iron-folders/internal/fserrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSealer(t *testing.T) *Sealer {
	t.Helper()
	s, err := NewSealer(bytes.Repeat([]byte("k"), KeySize))
	require.NoError(t, err)
	return s
}

func TestNewSealer_RejectsShortKey(t *testing.T) {
	_, err := NewSealer([]byte("tooshort"))
	if err == nil {
		t.Error("expected error for short key")
	}
}

func TestSealOpen_RoundTrip(t *testing.T) {
	s := testSealer(t)

	tests := []struct {
		name  string
		creds Credentials
	}{
		{"keyed", Keyed{AccessKey: "AKIA", SecretKey: "secret", Bucket: "photos", Region: "eu-west-1"}},
		{"keyed with endpoint", Keyed{AccessKey: "admin", SecretKey: "password", Endpoint: "localhost:9000"}},
		{"url", URL{URL: "https://acct.blob.core.windows.net/media?sv=2022&sig=abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := s.Seal(tt.creds)
			require.NoError(t, err)
			opened, err := s.Open(sealed)
			require.NoError(t, err)
			assert.Equal(t, tt.creds, opened)
		})
	}
}

func TestSeal_ProducesDifferentOutput(t *testing.T) {
	s := testSealer(t)
	creds := Keyed{AccessKey: "admin", SecretKey: "password"}

	a, err := s.Seal(creds)
	require.NoError(t, err)
	b, err := s.Seal(creds)
	require.NoError(t, err)

	if bytes.Equal(a, b) {
		t.Error("expected different sealed outputs due to random nonce")
	}
}

func TestOpen_WrongKey(t *testing.T) {
	s1 := testSealer(t)
	s2, err := NewSealer(bytes.Repeat([]byte("x"), KeySize))
	require.NoError(t, err)

	sealed, err := s1.Seal(Keyed{AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)

	_, err = s2.Open(sealed)
	assert.Error(t, err)
}

func TestOpen_Malformed(t *testing.T) {
	s := testSealer(t)
	_, err := s.Open([]byte("abc"))
	assert.Error(t, err)
}

func TestLoadOrCreateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "key")

	key, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Len(t, key, KeySize)

	again, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, key, again)

	require.NoError(t, os.WriteFile(path, []byte("short"), 0o600))
	_, err = LoadOrCreateKey(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		service string
		creds   Credentials
		wantErr bool
	}{
		{"aws keyed", ServiceAWS, Keyed{AccessKey: "a", SecretKey: "b", Bucket: "c"}, false},
		{"wasabi keyed", ServiceWasabi, Keyed{AccessKey: "a", SecretKey: "b"}, false},
		{"azure url", ServiceAzure, URL{URL: "https://x.blob.core.windows.net/?sig=1"}, false},
		{"azure with keys", ServiceAzure, Keyed{AccessKey: "a", SecretKey: "b"}, true},
		{"aws with url", ServiceAWS, URL{URL: "https://example.com"}, true},
		{"missing secret", ServiceAWS, Keyed{AccessKey: "a"}, true},
		{"blank url", ServiceAzure, URL{URL: "  "}, true},
		{"minio without endpoint", ServiceMinio, Keyed{AccessKey: "a", SecretKey: "b"}, true},
		{"nil", ServiceAWS, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.service, tt.creds)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStatic(t *testing.T) {
	s := NewStatic(map[string]Credentials{
		ServiceAWS: Keyed{AccessKey: "a", SecretKey: "b"},
	})

	creds, err := s.GetConfig(context.Background(), ServiceAWS)
	require.NoError(t, err)
	assert.Equal(t, KindKeyed, creds.Kind())

	_, err = s.GetConfig(context.Background(), ServiceAzure)
	assert.ErrorIs(t, err, fserrors.ErrMissingCredentials)

	s.Set(ServiceAzure, URL{URL: "https://x"})
	assert.Equal(t, []string{ServiceAWS, ServiceAzure}, s.Services())
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(filepath.Join(t.TempDir(), "creds.db"), testSealer(t))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, err = store.GetConfig(ctx, ServiceWasabi)
	assert.ErrorIs(t, err, fserrors.ErrMissingCredentials)

	wasabi := Keyed{AccessKey: "a", SecretKey: "b", Bucket: "media", Region: "us-east-1"}
	require.NoError(t, store.SaveConfig(ServiceWasabi, wasabi))
	require.NoError(t, store.SaveConfig(ServiceAzure, URL{URL: "https://acct.blob.core.windows.net/c?sig=1"}))

	got, err := store.GetConfig(ctx, ServiceWasabi)
	require.NoError(t, err)
	assert.Equal(t, wasabi, got)

	services, err := store.Services()
	require.NoError(t, err)
	assert.Equal(t, []string{ServiceAzure, ServiceWasabi}, services)

	require.NoError(t, store.DeleteConfig(ServiceWasabi))
	_, err = store.GetConfig(ctx, ServiceWasabi)
	assert.ErrorIs(t, err, fserrors.ErrMissingCredentials)
}

func TestStore_SaveRejectsWrongShape(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "creds.db"), testSealer(t))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	err = store.SaveConfig(ServiceAzure, Keyed{AccessKey: "a", SecretKey: "b"})
	assert.Error(t, err)

	services, err := store.Services()
	require.NoError(t, err)
	assert.Empty(t, services)
}

func TestConfigKey(t *testing.T) {
	assert.Equal(t, "aws_config", ConfigKey(ServiceAWS))
}
