package keystore

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"httpay/db"
	"httpay/errors"
	"httpay/types"
)

func TestRegisterRejectsMissingScheme(t *testing.T) {
	s := NewKeyStore(nil)
	err := s.Register(context.Background(), 888, "", bytes.Repeat([]byte{0xab}, 16))
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestRegisterRejectsMissingKey(t *testing.T) {
	s := NewKeyStore(nil)
	err := s.Register(context.Background(), 888, "ed25519", nil)
	assert.True(t, errors.IsInvalidArgument(err))

	err = s.Register(context.Background(), 888, "ed25519", []byte{})
	assert.True(t, errors.IsInvalidArgument(err))
}

// Postgres integration tests below; skipped unless
// HTTPAY_TEST_DATABASE_URL points at a disposable database.

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	url := os.Getenv("HTTPAY_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("HTTPAY_TEST_DATABASE_URL not set")
	}
	sqlDB, err := db.Connect(url, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.EnsureSchema(context.Background(), sqlDB))
	_, err = sqlDB.Exec(`DELETE FROM account_keys`)
	require.NoError(t, err)
	return sqlDB
}

func TestRegisterAndList(t *testing.T) {
	sqlDB := testDB(t)
	s := NewKeyStore(sqlDB)

	key := bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 4)
	require.NoError(t, s.Register(context.Background(), 42, "ed25519", key))

	keys, err := s.List(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "ed25519", keys[0].Scheme)
	assert.Equal(t, key, keys[0].PublicKey)
}

func TestRegisterMultipleKeysPerScheme(t *testing.T) {
	sqlDB := testDB(t)
	s := NewKeyStore(sqlDB)

	keyA := bytes.Repeat([]byte{0xaa, 0xbb, 0xcc, 0xdd}, 4)
	keyB := bytes.Repeat([]byte{0xff, 0xee, 0xdd, 0xcc}, 4)
	require.NoError(t, s.Register(context.Background(), 99, "ed25519", keyA))
	require.NoError(t, s.Register(context.Background(), 99, "ed25519", keyB))

	keys, err := s.List(context.Background(), 99, "ed25519")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestRegisterSameKeyUnderTwoSchemes(t *testing.T) {
	sqlDB := testDB(t)
	s := NewKeyStore(sqlDB)

	key := bytes.Repeat([]byte{0x11, 0x22, 0x33, 0x44}, 4)
	require.NoError(t, s.Register(context.Background(), 123, "ed25519", key))
	require.NoError(t, s.Register(context.Background(), 123, "secp256k1", key))

	keys, err := s.List(context.Background(), 123)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	// Ordered by scheme.
	assert.Equal(t, "ed25519", keys[0].Scheme)
	assert.Equal(t, "secp256k1", keys[1].Scheme)
}

func TestRegisterDuplicateTripleRejected(t *testing.T) {
	sqlDB := testDB(t)
	s := NewKeyStore(sqlDB)

	key := bytes.Repeat([]byte{0xca, 0xfe, 0xba, 0xbe}, 4)
	require.NoError(t, s.Register(context.Background(), 777, "ed25519", key))

	err := s.Register(context.Background(), 777, "ed25519", key)
	assert.True(t, errors.IsAlreadyExists(err))

	keys, err := s.List(context.Background(), 777)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestListPreservesRegistrationOrderWithinScheme(t *testing.T) {
	sqlDB := testDB(t)
	s := NewKeyStore(sqlDB)

	var want []types.AccountKey
	for i := byte(1); i <= 3; i++ {
		key := bytes.Repeat([]byte{i}, 8)
		require.NoError(t, s.Register(context.Background(), 5, "ed25519", key))
		want = append(want, types.AccountKey{AccountID: 5, Scheme: "ed25519", PublicKey: key})
	}

	keys, err := s.List(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, want, keys)
}

func TestListUnknownAccountIsEmpty(t *testing.T) {
	sqlDB := testDB(t)
	s := NewKeyStore(sqlDB)

	keys, err := s.List(context.Background(), 424242)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
