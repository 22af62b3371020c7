// Package domain defines core data structures shared by the reconcilers, evaluators and query surface.
package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// quoteSuffixes are tried longest first when a symbol carries no separator.
var quoteSuffixes = []string{"FDUSD", "USDT", "USDC", "BUSD", "USD", "BTC", "ETH"}

// Pair cryptocurrency trading pair.
type Pair struct {
	// From base currency symbol.
	From string
	// To quote currency symbol.
	To string
}

// ParsePair accepts BTC_USDT, BTC/USDT, BTC-USDT and BTCUSDT.
func ParsePair(s string) (Pair, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	if raw == "" {
		return Pair{}, errors.New("empty pair")
	}

	for _, sep := range []string{"_", "/", "-"} {
		if strings.Contains(raw, sep) {
			parts := strings.Split(raw, sep)
			if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
				return Pair{}, errors.Errorf("invalid pair %q", s)
			}
			return Pair{From: parts[0], To: parts[1]}, nil
		}
	}

	for _, quote := range quoteSuffixes {
		if strings.HasSuffix(raw, quote) && len(raw) > len(quote) {
			return Pair{From: strings.TrimSuffix(raw, quote), To: quote}, nil
		}
	}

	return Pair{}, errors.Errorf("invalid pair %q", s)
}

// BaseAsset returns the base currency of an instrument symbol, or the symbol itself
// when it does not look like a pair.
func BaseAsset(symbol string) string {
	pair, err := ParsePair(symbol)
	if err != nil {
		return strings.ToUpper(strings.TrimSpace(symbol))
	}
	return pair.From
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Symbol returns the concatenated symbol representation.
func (p Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.From, p.To)
}
