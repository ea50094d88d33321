// Package sqlite persists vault records and active pointers in a local
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vault_aggregator/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS per_chain_vaults (
	address          TEXT    NOT NULL,
	chain_id         INTEGER NOT NULL,
	display_name     TEXT    NOT NULL DEFAULT '',
	signer_threshold INTEGER NOT NULL DEFAULT 0,
	version          TEXT    NOT NULL DEFAULT '',
	nonce            INTEGER NOT NULL DEFAULT 0,
	updated_at       TEXT    NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (address, chain_id)
);
CREATE TABLE IF NOT EXISTS active_pointers (
	kind         TEXT    PRIMARY KEY,
	address      TEXT    NOT NULL,
	display_name TEXT    NOT NULL DEFAULT '',
	chain_id     INTEGER NOT NULL DEFAULT 0,
	updated_at   TEXT    NOT NULL DEFAULT (datetime('now'))
);`

const (
	pointerLegacy     = "legacy"
	pointerMultichain = "multichain"
)

// Store implements port.VaultStore and port.VaultImporter on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ListAllPerChainVaults returns records ordered by address then chain id.
func (s *Store) ListAllPerChainVaults(ctx context.Context) ([]entity.PerChainVault, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, chain_id, display_name, signer_threshold, version, nonce
		FROM per_chain_vaults
		ORDER BY address, chain_id`)
	if err != nil {
		return nil, fmt.Errorf("query vaults: %w", err)
	}
	defer rows.Close()

	var out []entity.PerChainVault
	for rows.Next() {
		var (
			addr      string
			chainID   int64
			v         entity.PerChainVault
			threshold int64
			nonce     int64
		)
		if err := rows.Scan(&addr, &chainID, &v.DisplayName, &threshold, &v.Version, &nonce); err != nil {
			return nil, fmt.Errorf("scan vault: %w", err)
		}
		v.Address = common.HexToAddress(addr)
		v.ChainID = uint64(chainID)
		v.SignerThreshold = uint32(threshold)
		v.Nonce = uint64(nonce)
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpsertPerChainVaults inserts or updates records in one transaction.
func (s *Store) UpsertPerChainVaults(ctx context.Context, vaults []entity.PerChainVault) error {
	if len(vaults) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO per_chain_vaults (address, chain_id, display_name, signer_threshold, version, nonce, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT (address, chain_id) DO UPDATE SET
			display_name = excluded.display_name,
			signer_threshold = excluded.signer_threshold,
			version = excluded.version,
			nonce = excluded.nonce,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, v := range vaults {
		if _, err := stmt.ExecContext(ctx, v.Address.Hex(), int64(v.ChainID), v.DisplayName,
			int64(v.SignerThreshold), v.Version, int64(v.Nonce)); err != nil {
			return fmt.Errorf("upsert vault %s on chain %d: %w", v.Address.Hex(), v.ChainID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetLegacyPointer(ctx context.Context) (*entity.LegacyPointer, error) {
	var (
		addr    string
		p       entity.LegacyPointer
		chainID int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT address, display_name, chain_id FROM active_pointers WHERE kind = ?`, pointerLegacy).
		Scan(&addr, &p.DisplayName, &chainID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read legacy pointer: %w", err)
	}
	p.Address = common.HexToAddress(addr)
	p.ChainID = uint64(chainID)
	return &p, nil
}

func (s *Store) SetLegacyPointer(ctx context.Context, p entity.LegacyPointer) error {
	return s.setPointer(ctx, pointerLegacy, p.Address, p.DisplayName, p.ChainID)
}

func (s *Store) GetMultichainPointer(ctx context.Context) (*common.Address, error) {
	var addr string
	err := s.db.QueryRowContext(ctx,
		`SELECT address FROM active_pointers WHERE kind = ?`, pointerMultichain).Scan(&addr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read multichain pointer: %w", err)
	}
	a := common.HexToAddress(addr)
	return &a, nil
}

func (s *Store) SetMultichainPointer(ctx context.Context, addr common.Address) error {
	return s.setPointer(ctx, pointerMultichain, addr, "", 0)
}

func (s *Store) setPointer(ctx context.Context, kind string, addr common.Address, name string, chainID uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO active_pointers (kind, address, display_name, chain_id, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT (kind) DO UPDATE SET
			address = excluded.address,
			display_name = excluded.display_name,
			chain_id = excluded.chain_id,
			updated_at = excluded.updated_at`,
		kind, addr.Hex(), name, int64(chainID))
	if err != nil {
		return fmt.Errorf("write %s pointer: %w", kind, err)
	}
	return nil
}
