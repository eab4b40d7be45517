package lighter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"fundingflow/config"
	"fundingflow/internal/intervals"
	"fundingflow/internal/model"
	"fundingflow/internal/symbols"
	"fundingflow/logger"
	"fundingflow/reader"
)

const defaultURL = "https://mainnet.zklighter.elliot.ai/api/v1/funding-rates"

// Reader fetches hourly funding rates from the Lighter perp DEX. The venue
// is additive: its records only supplement symbols the primary exchanges do
// not already cover. The response shape has changed across deployments, so
// the decoder accepts a bare list, several envelope keys, and a
// symbol-keyed object, and probes candidate field names per item.
type Reader struct {
	url       string
	apiKeyEnv string
	client    *reader.Client
	intervals *intervals.Store
	cooldown  *reader.Cooldown
	log       *logger.Log
}

func NewReader(venueCfg config.VenueConfig, readerCfg config.ReaderConfig, store *intervals.Store) *Reader {
	url := venueCfg.URL
	if url == "" {
		url = defaultURL
	}
	return &Reader{
		url:       url,
		apiKeyEnv: venueCfg.APIKeyEnv,
		client:    reader.NewClient(readerCfg),
		intervals: store,
		cooldown:  reader.NewCooldown(venueCfg.Cooldown),
		log:       logger.GetLogger(),
	}
}

func (r *Reader) Name() string { return "lighter" }

func (r *Reader) Additive() bool { return true }

func (r *Reader) Fetch(ctx context.Context) ([]model.FundingRecord, error) {
	if !r.cooldown.Ready() {
		return nil, nil
	}

	var headers map[string]string
	if r.apiKeyEnv != "" {
		if token := os.Getenv(r.apiKeyEnv); token != "" {
			headers = map[string]string{"Authorization": "Bearer " + token}
		}
	}

	var payload any
	if err := r.client.GetJSON(ctx, r.url, headers, &payload); err != nil {
		return nil, fmt.Errorf("funding rates request: %w", err)
	}

	items, err := extractItems(payload)
	if err != nil {
		return nil, err
	}

	records := make([]model.FundingRecord, 0, len(items))
	for _, item := range items {
		symbol := firstString(item, "symbol", "market", "marketId", "market_id", "ticker")
		rate, ok := firstNumber(item, "fundingRate", "funding_rate", "rate")
		if symbol == "" || !ok {
			continue
		}

		canonical := symbols.Canonical("lighter", symbol)
		if !symbols.StableQuoted(canonical) {
			continue
		}

		records = append(records, model.FundingRecord{
			Exchange:      "lighter",
			Symbol:        canonical,
			Rate:          model.Fraction(rate).Percent(),
			IntervalHours: r.intervals.Resolve("lighter", canonical, 0),
			MarginType:    model.MarginStable,
		})
	}
	return records, nil
}

// extractItems pulls the list of funding objects out of the known response
// shapes: a bare list, an envelope under one of several keys, or an object
// keyed by symbol.
func extractItems(payload any) ([]map[string]any, error) {
	if list, ok := payload.([]any); ok {
		return onlyObjects(list), nil
	}

	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected response shape %T", payload)
	}

	for _, key := range []string{"fundingRates", "fundings", "data", "result", "items"} {
		if list, ok := obj[key].([]any); ok {
			return onlyObjects(list), nil
		}
	}

	// Symbol-keyed object form.
	items := make([]map[string]any, 0, len(obj))
	for symbol, v := range obj {
		inner, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected response shape under %q", symbol)
		}
		if _, exists := inner["symbol"]; !exists {
			inner["symbol"] = symbol
		}
		items = append(items, inner)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no funding items in response")
	}
	return items, nil
}

func onlyObjects(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, v := range list {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func firstString(item map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := item[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstNumber(item map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		switch v := item[key].(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
