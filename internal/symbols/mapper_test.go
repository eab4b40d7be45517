package symbols

import "testing"

func TestCanonical(t *testing.T) {
	cases := []struct {
		exchange string
		in       string
		want     string
	}{
		{"binance", "BTCUSDT", "BTCUSDT"},
		{"binance", "1000PEPEUSDT", "PEPEUSDT"},
		{"bybit", "SHIB1000USDT", "SHIBUSDT"},
		{"okx", "BTC-USDT-SWAP", "BTCUSDT"},
		{"htx", "BTC-USDT", "BTCUSDT"},
		{"mexc", "BTC_USDT", "BTCUSDT"},
		{"gate", "ETH_USDT", "ETHUSDT"},
		{"lbank", "btc_usdt", "BTCUSDT"},
		{"bitget", "BTCUSDT_UMCBL", "BTCUSDT"},
		{"bitget", "BTCUSDT", "BTCUSDT"},
		{"bingx", "BTC-USDT", "BTCUSDT"},
		{"kucoin", "XBTUSDTM", "BTCUSDT"},
		{"lighter", "BTC", "BTCUSDT"},
		{"unknown", "BTCUSDT", "BTCUSDT"},
	}
	for _, c := range cases {
		if got := Canonical(c.exchange, c.in); got != c.want {
			t.Errorf("Canonical(%q, %q) = %q, want %q", c.exchange, c.in, got, c.want)
		}
	}
}

func TestStableQuoted(t *testing.T) {
	if !StableQuoted("BTCUSDT") {
		t.Error("BTCUSDT should be stable quoted")
	}
	if StableQuoted("BTCUSD") {
		t.Error("BTCUSD should not be stable quoted")
	}
}
