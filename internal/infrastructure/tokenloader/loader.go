package tokenloader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vault_aggregator/internal/app/port"
	"vault_aggregator/internal/domain/entity"
	"vault_aggregator/internal/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
)

// TokenFileLoader implements the port.TokenProvider interface. Each network
// has an optional <identifier>.json file holding its tracked tokens.
type TokenFileLoader struct {
	tokenDirPath string
	logger       port.Logger
}

// NewTokenLoader creates a new TokenFileLoader.
func NewTokenLoader(tokenDirPath string, l port.Logger) *TokenFileLoader {
	return &TokenFileLoader{tokenDirPath: tokenDirPath, logger: l}
}

// GetTokensByNetwork reads the token files of the active networks and
// returns the valid tokens keyed by chain id. A missing directory yields no
// tokens; unreadable or malformed files are skipped.
func (l *TokenFileLoader) GetTokensByNetwork(activeNetworkDefs []entity.NetworkDefinition) (map[uint64][]entity.TokenInfo, error) {
	tokensByChainID := make(map[uint64][]entity.TokenInfo)

	files, err := os.ReadDir(l.tokenDirPath)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Warn("Token directory does not exist, only native balances will be tracked", "path", l.tokenDirPath)
			return tokensByChainID, nil
		}
		return nil, fmt.Errorf("failed to read token directory %s: %w", l.tokenDirPath, err)
	}

	activeNetworks := make(map[string]entity.NetworkDefinition, len(activeNetworkDefs))
	for _, netDef := range activeNetworkDefs {
		activeNetworks[strings.ToLower(netDef.Identifier)] = netDef
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(strings.ToLower(file.Name()), ".json") {
			continue
		}

		identifier := strings.ToLower(strings.TrimSuffix(file.Name(), filepath.Ext(file.Name())))
		netDef, isActive := activeNetworks[identifier]
		if !isActive {
			l.logger.Debug("Token file found for a non-active network, skipping", "file", file.Name())
			continue
		}

		filePath := filepath.Join(l.tokenDirPath, file.Name())
		tokensInFile, err := utils.LoadTokensFromJSON(filePath)
		if err != nil {
			l.logger.Warn("Failed to load token file, skipping", "path", filePath, "error", err)
			continue
		}

		valid := make([]entity.TokenInfo, 0, len(tokensInFile))
		for _, token := range tokensInFile {
			if token.ChainID != netDef.ChainID {
				l.logger.Warn("Token has mismatched chain id, skipping",
					"file", filePath, "token_symbol", token.Symbol, "token_chain_id", token.ChainID,
					"expected_chain_id", netDef.ChainID)
				continue
			}
			if !common.IsHexAddress(token.Address) {
				l.logger.Warn("Token has invalid address, skipping", "file", filePath, "token_symbol", token.Symbol, "address", token.Address)
				continue
			}
			valid = append(valid, token)
		}

		if len(valid) > 0 {
			tokensByChainID[netDef.ChainID] = append(tokensByChainID[netDef.ChainID], valid...)
			l.logger.Info("Loaded tokens for network", "network", netDef.Identifier, "file", file.Name(), "count", len(valid))
		}
	}

	return tokensByChainID, nil
}
