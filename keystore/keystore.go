package keystore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mr-tron/base58"

	"httpay/db"
	"httpay/errors"
	"httpay/logx"
	"httpay/types"
)

// KeyStore is the registry of public keys bound to accounts. Keys are
// opaque bytes here: nothing verifies signatures or key material, the
// registry only enforces the uniqueness of the exact
// (account, scheme, key) triple.
type KeyStore struct {
	sqlDB *sql.DB
}

func NewKeyStore(sqlDB *sql.DB) *KeyStore {
	return &KeyStore{sqlDB: sqlDB}
}

// Register inserts the (account, scheme, publicKey) triple. The same
// account may hold several keys under one scheme, and the same key
// bytes may appear under several schemes; only the exact triple is
// rejected as a duplicate.
func (s *KeyStore) Register(ctx context.Context, account int64, scheme string, publicKey []byte) error {
	if scheme == "" {
		return errors.Invalidf("missing key scheme")
	}
	if len(publicKey) == 0 {
		return errors.Invalidf("missing public key")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO account_keys(account_id, scheme, public_key) VALUES ($1, $2, $3)`,
		account, scheme, publicKey)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return errors.Duplicatef("key %s already registered for account %d under scheme %s", fingerprint(publicKey), account, scheme)
		}
		if db.IsConstraintViolation(err) {
			return errors.Invalidf("key registration rejected: %v", err)
		}
		return errors.Storage("failed to register key", err)
	}

	logx.Info("KEYSTORE", fmt.Sprintf("registered %s key %s for account %d", scheme, fingerprint(publicKey), account))
	return nil
}

// List returns the keys registered for account, ordered by scheme then
// registration order. Passing a scheme narrows the result to it.
func (s *KeyStore) List(ctx context.Context, account int64, scheme ...string) ([]types.AccountKey, error) {
	if len(scheme) > 1 {
		return nil, errors.Invalidf("at most one scheme filter is allowed")
	}

	query := `SELECT scheme, public_key FROM account_keys WHERE account_id = $1 ORDER BY scheme, seq`
	args := []interface{}{account}
	if len(scheme) == 1 {
		if scheme[0] == "" {
			return nil, errors.Invalidf("missing key scheme")
		}
		query = `SELECT scheme, public_key FROM account_keys WHERE account_id = $1 AND scheme = $2 ORDER BY scheme, seq`
		args = append(args, scheme[0])
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Storage("failed to list keys", err)
	}
	defer rows.Close()

	var keys []types.AccountKey
	for rows.Next() {
		key := types.AccountKey{AccountID: account}
		if err := rows.Scan(&key.Scheme, &key.PublicKey); err != nil {
			return nil, errors.Storage("failed to scan key row", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Storage("failed to list keys", err)
	}
	return keys, nil
}

// fingerprint renders key bytes base58 for log lines, matching the
// address format used elsewhere in the system.
func fingerprint(publicKey []byte) string {
	return base58.Encode(publicKey)
}
