package wallet

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const addressHexLen = 40

// NormalizeAddress sanitizes one address-like value returned by the wallet.
//
// The input is trimmed and must carry a 0x prefix. Exactly 40 hex characters
// are taken as a standard address; longer values keep their last 40 hex
// characters. Anything else is rejected. The result is always checksummed.
func NormalizeAddress(raw any) (common.Address, bool) {
	s, ok := addressString(raw)
	if !ok {
		return common.Address{}, false
	}

	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") {
		return common.Address{}, false
	}

	digits := s[2:]
	if !isHex(digits) {
		return common.Address{}, false
	}

	switch {
	case len(digits) == addressHexLen:
		return common.HexToAddress("0x" + digits), true
	case len(digits) > addressHexLen:
		return common.HexToAddress("0x" + digits[len(digits)-addressHexLen:]), true
	default:
		return common.Address{}, false
	}
}

// NormalizeAddresses applies NormalizeAddress to every entry and drops the
// invalid ones. It accepts a single value or any list shape the wallet uses.
func NormalizeAddresses(raw any) []common.Address {
	var items []any
	switch v := raw.(type) {
	case nil:
		return nil
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case []any:
		items = v
	case []common.Address:
		items = make([]any, len(v))
		for i := range v {
			items[i] = v[i].Hex()
		}
	case map[string]any:
		if accounts, ok := v["accounts"]; ok {
			return NormalizeAddresses(accounts)
		}
		items = []any{v}
	default:
		items = []any{v}
	}

	out := make([]common.Address, 0, len(items))
	for _, item := range items {
		if addr, ok := NormalizeAddress(item); ok {
			out = append(out, addr)
		}
	}
	return out
}

func addressString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case common.Address:
		return v.Hex(), true
	case map[string]any:
		if a, ok := v["address"].(string); ok {
			return a, true
		}
	case fmt.Stringer:
		return v.String(), true
	}
	return "", false
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// NormalizeChainID turns any chain-id shape into a 0x-prefixed hex string.
// Hex strings pass through unchanged; objects with a chainId field, numbers
// and numeric strings are converted; anything else becomes fallback.
func NormalizeChainID(raw any, fallback uint64) string {
	if hex, ok := chainIDHex(raw); ok {
		return hex
	}
	return ChainIDToHex(fallback)
}

func chainIDHex(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		s := strings.TrimSpace(v)
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			if isHex(s[2:]) {
				return v, true
			}
			return "", false
		}
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return "", false
		}
		return ChainIDToHex(n), true
	case map[string]any:
		inner, ok := v["chainId"]
		if !ok {
			return "", false
		}
		if _, nested := inner.(map[string]any); nested {
			return "", false
		}
		return chainIDHex(inner)
	case ChainInfo:
		return chainIDHex(v.ChainID)
	case *ChainInfo:
		if v == nil {
			return "", false
		}
		return chainIDHex(v.ChainID)
	case json.Number:
		return chainIDHex(v.String())
	case *big.Int:
		if v == nil || v.Sign() < 0 || !v.IsUint64() {
			return "", false
		}
		return ChainIDToHex(v.Uint64()), true
	case int:
		return nonNegative(int64(v))
	case int32:
		return nonNegative(int64(v))
	case int64:
		return nonNegative(v)
	case uint:
		return ChainIDToHex(uint64(v)), true
	case uint32:
		return ChainIDToHex(uint64(v)), true
	case uint64:
		return ChainIDToHex(v), true
	case float64:
		if v < 0 || v != float64(uint64(v)) {
			return "", false
		}
		return ChainIDToHex(uint64(v)), true
	}
	return "", false
}

func nonNegative(v int64) (string, bool) {
	if v < 0 {
		return "", false
	}
	return ChainIDToHex(uint64(v)), true
}

// ChainInfo is the object shape some wallets return for chain queries
type ChainInfo struct {
	ChainID any `json:"chainId"`
}

// ChainIDToHex formats a chain id as a 0x-prefixed lowercase hex quantity
func ChainIDToHex(id uint64) string {
	return "0x" + strconv.FormatUint(id, 16)
}

// ParseChainID converts the normalized hex form into the integer used for
// every chain comparison.
func ParseChainID(hex string) (uint64, error) {
	s := strings.TrimSpace(hex)
	if !strings.HasPrefix(s, "0x") {
		return 0, fmt.Errorf("%w: chain id %q is not hex", ErrMalformedResponse, hex)
	}
	n, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: chain id %q: %v", ErrMalformedResponse, hex, err)
	}
	return n, nil
}
