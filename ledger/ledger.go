package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/holiman/uint256"

	"httpay/db"
	"httpay/errors"
	"httpay/logx"
	"httpay/types"
)

// Ledger is the transfer engine over the balances table. Every mutation
// runs inside one database transaction with explicit row locks, so the
// debit and credit are indivisible for any concurrent caller touching
// either row.
type Ledger struct {
	sqlDB     *sql.DB
	txRetries int
}

func NewLedger(sqlDB *sql.DB, txRetries int) *Ledger {
	return &Ledger{sqlDB: sqlDB, txRetries: txRetries}
}

// balanceRow identifies one lockable row of the balances table.
type balanceRow struct {
	accountID int64
	currency  string
}

// less orders rows by (account_id, currency). Both rows of a transfer
// are locked in this order regardless of transfer direction, so
// reciprocal concurrent transfers cannot deadlock.
func (r balanceRow) less(other balanceRow) bool {
	if r.accountID != other.accountID {
		return r.accountID < other.accountID
	}
	return r.currency < other.currency
}

// Transfer atomically moves amount from sender to receiver in the given
// currency. The receiver row is created on first credit; a missing
// sender row reads as zero balance and fails the sufficiency check.
func (l *Ledger) Transfer(ctx context.Context, sender, receiver int64, currency string, amount *uint256.Int) error {
	if sender == receiver {
		return errors.Invalidf("self-transfer: sender and receiver are both %d", sender)
	}
	if amount == nil || amount.IsZero() {
		return errors.Invalidf("transfer amount must be positive")
	}
	if currency == "" {
		return errors.Invalidf("missing currency")
	}

	senderRow := balanceRow{accountID: sender, currency: currency}
	receiverRow := balanceRow{accountID: receiver, currency: currency}

	err := db.RunInTx(ctx, l.sqlDB, l.txRetries, func(tx *sql.Tx) error {
		// The receiver row must exist before it can be locked. Creating
		// it inside the transaction keeps auto-vivification atomic with
		// the debit: a rollback removes the empty row again.
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO balances(account_id, currency, balance) VALUES ($1, $2, 0)
			 ON CONFLICT (account_id, currency) DO NOTHING`,
			receiver, currency); err != nil {
			return err
		}

		first, second := senderRow, receiverRow
		if receiverRow.less(senderRow) {
			first, second = receiverRow, senderRow
		}
		locked := map[balanceRow]*uint256.Int{}
		for _, row := range []balanceRow{first, second} {
			bal, err := lockBalance(ctx, tx, row)
			if err != nil {
				return err
			}
			locked[row] = bal
		}

		senderBalance := locked[senderRow]
		if senderBalance.Lt(amount) {
			return errors.Insufficientf("account %d holds %s %s, needs %s", sender, senderBalance.Dec(), currency, amount.Dec())
		}

		newSender := new(uint256.Int).Sub(senderBalance, amount)
		newReceiver, overflow := new(uint256.Int).AddOverflow(locked[receiverRow], amount)
		if overflow {
			return errors.Invalidf("receiver balance overflow for account %d", receiver)
		}

		if err := writeBalance(ctx, tx, senderRow, newSender); err != nil {
			return err
		}
		return writeBalance(ctx, tx, receiverRow, newReceiver)
	})
	if err != nil {
		if errors.CodeOf(err) != "" {
			return err
		}
		return errors.Storage("transfer failed", err)
	}

	logx.Debug("LEDGER", fmt.Sprintf("transferred %s %s from %d to %d", amount.Dec(), currency, sender, receiver))
	return nil
}

// Balance reads the authoritative balance for (account, currency). A
// missing row reads as zero.
func (l *Ledger) Balance(ctx context.Context, account int64, currency string) (*uint256.Int, error) {
	if currency == "" {
		return nil, errors.Invalidf("missing currency")
	}

	var dec string
	err := l.sqlDB.QueryRowContext(ctx,
		`SELECT balance::text FROM balances WHERE account_id = $1 AND currency = $2`,
		account, currency).Scan(&dec)
	if err == sql.ErrNoRows {
		return uint256.NewInt(0), nil
	}
	if err != nil {
		return nil, errors.Storage("failed to read balance", err)
	}
	return parseBalance(dec)
}

// Balances lists every currency held by account, ordered by currency.
func (l *Ledger) Balances(ctx context.Context, account int64) ([]types.Balance, error) {
	rows, err := l.sqlDB.QueryContext(ctx,
		`SELECT currency, balance::text FROM balances WHERE account_id = $1 ORDER BY currency`,
		account)
	if err != nil {
		return nil, errors.Storage("failed to list balances", err)
	}
	defer rows.Close()

	var balances []types.Balance
	for rows.Next() {
		bal := types.Balance{AccountID: account}
		var dec string
		if err := rows.Scan(&bal.Currency, &dec); err != nil {
			return nil, errors.Storage("failed to scan balance row", err)
		}
		if bal.Amount, err = parseBalance(dec); err != nil {
			return nil, err
		}
		balances = append(balances, bal)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Storage("failed to list balances", err)
	}
	return balances, nil
}

// lockBalance acquires a row lock and returns the current balance, or
// zero when the row does not exist (only possible for the sender side,
// the receiver row was upserted above).
func lockBalance(ctx context.Context, tx *sql.Tx, row balanceRow) (*uint256.Int, error) {
	var dec string
	err := tx.QueryRowContext(ctx,
		`SELECT balance::text FROM balances WHERE account_id = $1 AND currency = $2 FOR UPDATE`,
		row.accountID, row.currency).Scan(&dec)
	if err == sql.ErrNoRows {
		return uint256.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return parseBalance(dec)
}

func writeBalance(ctx context.Context, tx *sql.Tx, row balanceRow, balance *uint256.Int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE balances SET balance = $3::numeric WHERE account_id = $1 AND currency = $2`,
		row.accountID, row.currency, balance.Dec())
	return err
}

func parseBalance(dec string) (*uint256.Int, error) {
	bal, err := uint256.FromDecimal(dec)
	if err != nil {
		return nil, errors.Storage(fmt.Sprintf("stored balance %q is not a valid amount", dec), err)
	}
	return bal, nil
}
