package types

import (
	"github.com/holiman/uint256"
)

// Balance is one (account, currency) row of the balance table.
type Balance struct {
	AccountID int64
	Currency  string
	Amount    *uint256.Int
}

// Block is one entry of the append-only block log. IDs are assigned
// sequentially on insert and form a contiguous range.
type Block struct {
	ID      int64
	Payload []byte
}

// AccountKey binds a public key to an account under a signature scheme.
// The exact (account, scheme, key) triple is unique; partial overlaps
// are allowed.
type AccountKey struct {
	AccountID int64
	Scheme    string
	PublicKey []byte
}
