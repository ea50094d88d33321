// Package postgres persists vault records and active pointers in Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"vault_aggregator/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS per_chain_vaults (
	address          TEXT        NOT NULL,
	chain_id         BIGINT      NOT NULL,
	display_name     TEXT        NOT NULL DEFAULT '',
	signer_threshold INTEGER     NOT NULL DEFAULT 0,
	version          TEXT        NOT NULL DEFAULT '',
	nonce            BIGINT      NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (address, chain_id)
);
CREATE TABLE IF NOT EXISTS active_pointers (
	kind         TEXT        PRIMARY KEY,
	address      TEXT        NOT NULL,
	display_name TEXT        NOT NULL DEFAULT '',
	chain_id     BIGINT      NOT NULL DEFAULT 0,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Store implements port.VaultStore and port.VaultImporter on Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn and applies the schema.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ListAllPerChainVaults returns records ordered by address then chain id.
func (s *Store) ListAllPerChainVaults(ctx context.Context) ([]entity.PerChainVault, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT address, chain_id, display_name, signer_threshold, version, nonce
		FROM per_chain_vaults
		ORDER BY address, chain_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.PerChainVault
	for rows.Next() {
		var (
			addr      string
			chainID   int64
			threshold int32
			nonce     int64
			v         entity.PerChainVault
		)
		if err := rows.Scan(&addr, &chainID, &v.DisplayName, &threshold, &v.Version, &nonce); err != nil {
			return nil, err
		}
		v.Address = common.HexToAddress(addr)
		v.ChainID = uint64(chainID)
		v.SignerThreshold = uint32(threshold)
		v.Nonce = uint64(nonce)
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpsertPerChainVaults inserts or updates vault records.
func (s *Store) UpsertPerChainVaults(ctx context.Context, vaults []entity.PerChainVault) error {
	if len(vaults) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, v := range vaults {
		batch.Queue(`
			INSERT INTO per_chain_vaults (
				address, chain_id, display_name, signer_threshold, version, nonce, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			ON CONFLICT (address, chain_id)
			DO UPDATE SET
				display_name = EXCLUDED.display_name,
				signer_threshold = EXCLUDED.signer_threshold,
				version = EXCLUDED.version,
				nonce = EXCLUDED.nonce,
				updated_at = now()
		`,
			v.Address.Hex(),
			int64(v.ChainID),
			v.DisplayName,
			int32(v.SignerThreshold),
			v.Version,
			int64(v.Nonce),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range vaults {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetLegacyPointer(ctx context.Context) (*entity.LegacyPointer, error) {
	var (
		addr    string
		chainID int64
		p       entity.LegacyPointer
	)
	row := s.pool.QueryRow(ctx, `SELECT address, display_name, chain_id FROM active_pointers WHERE kind = 'legacy'`)
	if err := row.Scan(&addr, &p.DisplayName, &chainID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.Address = common.HexToAddress(addr)
	p.ChainID = uint64(chainID)
	return &p, nil
}

func (s *Store) SetLegacyPointer(ctx context.Context, p entity.LegacyPointer) error {
	return s.setPointer(ctx, "legacy", p.Address, p.DisplayName, p.ChainID)
}

func (s *Store) GetMultichainPointer(ctx context.Context) (*common.Address, error) {
	var addr string
	row := s.pool.QueryRow(ctx, `SELECT address FROM active_pointers WHERE kind = 'multichain'`)
	if err := row.Scan(&addr); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a := common.HexToAddress(addr)
	return &a, nil
}

func (s *Store) SetMultichainPointer(ctx context.Context, addr common.Address) error {
	return s.setPointer(ctx, "multichain", addr, "", 0)
}

func (s *Store) setPointer(ctx context.Context, kind string, addr common.Address, name string, chainID uint64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO active_pointers (kind, address, display_name, chain_id, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (kind) DO UPDATE
		SET address = EXCLUDED.address,
			display_name = EXCLUDED.display_name,
			chain_id = EXCLUDED.chain_id,
			updated_at = now()
	`, kind, addr.Hex(), name, int64(chainID))
	return err
}
