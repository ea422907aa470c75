package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"notes-dapp/models"
	"notes-dapp/solana"
	"notes-dapp/wallet"
)

const errDuplicateEntry = 1062

// Store keeps sealed wallets and the transaction journal in MySQL.
type Store struct {
	DB *sql.DB
}

// Open connects to dsn. Time columns are always parsed into time.Time.
func Open(dsn string) (*Store, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("DB connection error: %w", err)
	}
	return NewStore(sql.OpenDB(connector)), nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

func (s *Store) Close() error { return s.DB.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

// Migrate creates the tables the store needs.
func (s *Store) Migrate(ctx context.Context) error {
	walletTable := `
	CREATE TABLE IF NOT EXISTS wallets (
		label VARCHAR(64) PRIMARY KEY,
		address VARCHAR(44) NOT NULL,
		pass_hash VARBINARY(72) NOT NULL,
		salt VARBINARY(32) NOT NULL,
		nonce VARBINARY(24) NOT NULL,
		ciphertext VARBINARY(128) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	txTable := `
	CREATE TABLE IF NOT EXISTS transactions (
		id INT AUTO_INCREMENT PRIMARY KEY,
		signature VARCHAR(88) NOT NULL,
		wallet VARCHAR(44) NOT NULL,
		operation VARCHAR(32) NOT NULL,
		note_address VARCHAR(44) NOT NULL,
		status VARCHAR(16) NOT NULL,
		error TEXT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_transactions_wallet (wallet, created_at)
	);`

	if _, err := s.DB.ExecContext(ctx, walletTable); err != nil {
		return fmt.Errorf("Error creating wallets table: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, txTable); err != nil {
		return fmt.Errorf("Error creating transactions table: %w", err)
	}
	return nil
}

func (s *Store) LoadKey(ctx context.Context, label string) (wallet.SealedKey, error) {
	var (
		k    wallet.SealedKey
		addr string
	)
	err := s.DB.QueryRowContext(ctx,
		"SELECT label, address, pass_hash, salt, nonce, ciphertext, created_at FROM wallets WHERE label = ?", label).
		Scan(&k.Label, &addr, &k.PassHash, &k.Salt, &k.Nonce, &k.Ciphertext, &k.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return wallet.SealedKey{}, fmt.Errorf("%w: %q", wallet.ErrKeyNotFound, label)
	}
	if err != nil {
		return wallet.SealedKey{}, err
	}
	if k.Address, err = solana.PublicKeyFromBase58(addr); err != nil {
		return wallet.SealedKey{}, fmt.Errorf("wallet %q: %w", label, err)
	}
	return k, nil
}

func (s *Store) SaveKey(ctx context.Context, k wallet.SealedKey) error {
	if k.Label == "" {
		return wallet.ErrEmptyLabel
	}
	_, err := s.DB.ExecContext(ctx,
		"INSERT INTO wallets (label, address, pass_hash, salt, nonce, ciphertext, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		k.Label, k.Address.String(), k.PassHash, k.Salt, k.Nonce, k.Ciphertext, k.CreatedAt)
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == errDuplicateEntry {
		return fmt.Errorf("%w: %q", wallet.ErrKeyExists, k.Label)
	}
	return err
}

func (s *Store) Labels(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, "SELECT label FROM wallets ORDER BY label ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// RecordTransaction appends rec to the journal.
func (s *Store) RecordTransaction(ctx context.Context, rec models.TxRecord) error {
	var errText sql.NullString
	if rec.Error != "" {
		errText = sql.NullString{String: rec.Error, Valid: true}
	}
	_, err := s.DB.ExecContext(ctx,
		"INSERT INTO transactions (signature, wallet, operation, note_address, status, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		rec.Signature.String(), rec.Wallet.String(), rec.Operation, rec.NoteAddress.String(), rec.Status, errText, rec.CreatedAt)
	return err
}

// RecentTransactions returns the newest journal entries for w.
func (s *Store) RecentTransactions(ctx context.Context, w solana.PublicKey, limit int) ([]models.TxRecord, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT signature, wallet, operation, note_address, status, error, created_at FROM transactions WHERE wallet = ? ORDER BY created_at DESC, id DESC LIMIT ?",
		w.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TxRecord
	for rows.Next() {
		var (
			rec                  models.TxRecord
			sig, owner, noteAddr string
			errText              sql.NullString
		)
		if err := rows.Scan(&sig, &owner, &rec.Operation, &noteAddr, &rec.Status, &errText, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if rec.Signature, err = solana.SignatureFromBase58(sig); err != nil {
			return nil, err
		}
		if rec.Wallet, err = solana.PublicKeyFromBase58(owner); err != nil {
			return nil, err
		}
		if rec.NoteAddress, err = solana.PublicKeyFromBase58(noteAddr); err != nil {
			return nil, err
		}
		rec.Error = errText.String
		out = append(out, rec)
	}
	return out, rows.Err()
}
