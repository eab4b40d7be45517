package symbols

import "strings"

// Canonical converts venue-specific instrument identifiers to the shared
// BASE+QUOTE form (e.g. "BTC-USDT-SWAP" -> "BTCUSDT") so records from
// different exchanges group together. Multiplier-prefixed aliases used by a
// few venues for sub-cent assets are collapsed onto the plain asset.
// Currently supported venues: binance, bybit, okx, htx, mexc, gate, lbank,
// bitget, bingx, kucoin, lighter.
func Canonical(exchange, sym string) string {
	sym = strings.ToUpper(strings.TrimSpace(sym))

	switch strings.ToLower(exchange) {
	case "binance":
		switch sym {
		case "1000BONKUSDT":
			sym = "BONKUSDT"
		case "1000PEPEUSDT":
			sym = "PEPEUSDT"
		case "1000SHIBUSDT":
			sym = "SHIBUSDT"
		}
	case "bybit":
		switch sym {
		case "1000BONKUSDT":
			sym = "BONKUSDT"
		case "1000PEPEUSDT":
			sym = "PEPEUSDT"
		case "SHIB1000USDT":
			sym = "SHIBUSDT"
		}
	case "okx":
		sym = strings.TrimSuffix(sym, "-SWAP")
		sym = strings.ReplaceAll(sym, "-", "")
	case "htx", "bingx":
		sym = strings.ReplaceAll(sym, "-", "")
	case "mexc", "gate", "lbank":
		sym = strings.ReplaceAll(sym, "_", "")
	case "bitget":
		// v1 mix symbols carry a product suffix; v2 already uses the plain form.
		sym = strings.TrimSuffix(sym, "_UMCBL")
		sym = strings.TrimSuffix(sym, "_DMCBL")
	case "kucoin":
		sym = strings.ReplaceAll(sym, "-", "")
		sym = strings.TrimSuffix(sym, "M")
		if strings.HasPrefix(sym, "XBT") {
			sym = "BTC" + sym[3:]
		}
	case "lighter":
		// Lighter markets are bare base-asset tickers quoted in USD stable.
		if !strings.HasSuffix(sym, "USDT") && !strings.HasSuffix(sym, "USD") {
			sym += "USDT"
		}
	default:
		// others already use the desired format
	}
	return sym
}

// StableQuoted reports whether a canonical symbol is quoted in the stable
// asset of interest. Contracts quoted otherwise are not comparable across
// exchanges and are dropped at the adapter boundary.
func StableQuoted(canonical string) bool {
	return strings.HasSuffix(canonical, "USDT")
}
