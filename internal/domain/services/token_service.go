package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/bimakw/dex-client/internal/domain/entities"
	"github.com/bimakw/dex-client/internal/infrastructure/dex"
	"github.com/bimakw/dex-client/internal/infrastructure/storage"
)

// CustomTokensKey holds every chain's user-added tokens in one entry
const CustomTokensKey = "dex.customTokens"

const maxTokenDecimals = 18

var (
	ErrInvalidToken     = errors.New("address is not a valid ERC-20 token")
	ErrTokenNotFound    = errors.New("token not found")
	ErrUnsupportedChain = errors.New("chain not supported")
)

// TokenService serves the default catalog plus user-added tokens
type TokenService struct {
	registry *entities.TokenRegistry
	readers  map[uint64]dex.TokenReader
	store    storage.Store
	logger   *zap.Logger

	// serializes read-modify-write of the shared entry
	mu sync.Mutex
}

// NewTokenService creates the service. readers validates custom tokens per chain.
func NewTokenService(registry *entities.TokenRegistry, readers map[uint64]dex.TokenReader, store storage.Store, logger *zap.Logger) *TokenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenService{
		registry: registry,
		readers:  readers,
		store:    store,
		logger:   logger.With(zap.String("component", "tokens")),
	}
}

// Tokens lists the chain's default tokens followed by its custom tokens
func (s *TokenService) Tokens(ctx context.Context, chainID uint64) ([]entities.Token, error) {
	tokens := s.registry.GetAll(chainID)
	custom, err := s.CustomTokens(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return append(tokens, custom...), nil
}

// CustomTokens returns the user-added tokens of one chain
func (s *TokenService) CustomTokens(ctx context.Context, chainID uint64) ([]entities.Token, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]entities.Token, 0, len(all))
	for _, t := range all {
		if t.ChainID == chainID {
			out = append(out, t)
		}
	}
	return out, nil
}

// Resolve finds a token on a chain by address or by symbol
func (s *TokenService) Resolve(ctx context.Context, chainID uint64, ref string) (entities.Token, error) {
	ref = strings.TrimSpace(ref)
	if common.IsHexAddress(ref) {
		addr := common.HexToAddress(ref)
		if t, ok := s.registry.GetByAddress(chainID, addr); ok {
			return t, nil
		}
		custom, err := s.CustomTokens(ctx, chainID)
		if err != nil {
			return entities.Token{}, err
		}
		for _, t := range custom {
			if t.Address == addr {
				return t, nil
			}
		}
		return entities.Token{}, fmt.Errorf("%w: %s on chain %d", ErrTokenNotFound, addr.Hex(), chainID)
	}

	if t, ok := s.registry.GetBySymbol(chainID, ref); ok {
		return t, nil
	}
	custom, err := s.CustomTokens(ctx, chainID)
	if err != nil {
		return entities.Token{}, err
	}
	for _, t := range custom {
		if strings.EqualFold(t.Symbol, ref) {
			return t, nil
		}
	}
	return entities.Token{}, fmt.Errorf("%w: %q on chain %d", ErrTokenNotFound, ref, chainID)
}

// AddCustomToken validates the contract on-chain and persists it. Adding a
// token that is already known returns the existing entry.
func (s *TokenService) AddCustomToken(ctx context.Context, chainID uint64, address string) (entities.Token, error) {
	if !common.IsHexAddress(strings.TrimSpace(address)) {
		return entities.Token{}, fmt.Errorf("%w: malformed address %q", ErrInvalidToken, address)
	}
	addr := common.HexToAddress(strings.TrimSpace(address))
	if addr == entities.NativeAddress {
		return entities.Token{}, fmt.Errorf("%w: native coin sentinel", ErrInvalidToken)
	}
	if t, ok := s.registry.GetByAddress(chainID, addr); ok {
		return t, nil
	}

	reader, ok := s.readers[chainID]
	if !ok {
		return entities.Token{}, fmt.Errorf("%w: %d", ErrUnsupportedChain, chainID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load(ctx)
	if err != nil {
		return entities.Token{}, err
	}
	for _, t := range all {
		if t.ChainID == chainID && t.Address == addr {
			return t, nil
		}
	}

	md, err := reader.Metadata(ctx, addr)
	if err != nil {
		s.logger.Warn("custom token validation failed",
			zap.String("address", addr.Hex()),
			zap.Uint64("chainId", chainID),
			zap.Error(err))
		return entities.Token{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(md.Symbol) == "" {
		return entities.Token{}, fmt.Errorf("%w: empty symbol", ErrInvalidToken)
	}
	if md.Decimals > maxTokenDecimals {
		return entities.Token{}, fmt.Errorf("%w: %d decimals", ErrInvalidToken, md.Decimals)
	}

	token := entities.Token{
		Name:     md.Name,
		Symbol:   md.Symbol,
		Address:  addr,
		ChainID:  chainID,
		Decimals: md.Decimals,
	}
	if err := s.save(ctx, append(all, token)); err != nil {
		return entities.Token{}, err
	}

	s.logger.Info("custom token added",
		zap.String("symbol", token.Symbol),
		zap.String("address", addr.Hex()),
		zap.Uint64("chainId", chainID))
	return token, nil
}

// RemoveCustomToken deletes a user-added token. Default tokens cannot be removed.
func (s *TokenService) RemoveCustomToken(ctx context.Context, chainID uint64, address string) error {
	if !common.IsHexAddress(strings.TrimSpace(address)) {
		return fmt.Errorf("%w: malformed address %q", ErrTokenNotFound, address)
	}
	addr := common.HexToAddress(strings.TrimSpace(address))

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load(ctx)
	if err != nil {
		return err
	}
	kept := all[:0]
	removed := false
	for _, t := range all {
		if t.ChainID == chainID && t.Address == addr {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	if !removed {
		return fmt.Errorf("%w: %s on chain %d", ErrTokenNotFound, addr.Hex(), chainID)
	}
	return s.save(ctx, kept)
}

func (s *TokenService) load(ctx context.Context) ([]entities.Token, error) {
	data, err := s.store.Get(ctx, CustomTokensKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load custom tokens: %w", err)
	}
	var tokens []entities.Token
	if err := json.Unmarshal(data, &tokens); err != nil {
		// a corrupt entry must not hide the default catalog
		s.logger.Warn("discarding unreadable custom token list", zap.Error(err))
		return nil, nil
	}
	return tokens, nil
}

func (s *TokenService) save(ctx context.Context, tokens []entities.Token) error {
	if tokens == nil {
		tokens = []entities.Token{}
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, CustomTokensKey, data); err != nil {
		return fmt.Errorf("save custom tokens: %w", err)
	}
	return nil
}
