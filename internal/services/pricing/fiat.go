// Package pricing assigns fiat prices to asset movements through a
// sequence of inference passes
package pricing

import "strings"

// USD is the reporting currency all final prices converge to.
const USD = "USD"

var fiatCurrencies = map[string]bool{
	"usd": true,
	"eur": true,
	"gbp": true,
	"chf": true,
	"cad": true,
	"aud": true,
	"jpy": true,
	"nzd": true,
	"sek": true,
	"nok": true,
}

var stablecoins = map[string]bool{
	"usdt": true,
	"usdc": true,
	"dai":  true,
	"busd": true,
	"tusd": true,
	"usdp": true,
	"gusd": true,
}

// IsFiat reports whether the symbol names a fiat currency.
func IsFiat(symbol string) bool {
	return fiatCurrencies[strings.ToLower(strings.TrimSpace(symbol))]
}

// IsUSD reports whether the symbol is the US dollar.
func IsUSD(symbol string) bool {
	return strings.EqualFold(strings.TrimSpace(symbol), USD)
}

// IsFiatOrStablecoin reports whether the symbol is fiat or a known
// USD-pegged stablecoin. Used to keep the crypto-crypto ratio override
// from touching trades anchored to a dollar-denominated leg.
func IsFiatOrStablecoin(symbol string) bool {
	s := strings.ToLower(strings.TrimSpace(symbol))
	return fiatCurrencies[s] || stablecoins[s]
}
