package models

import "encoding/json"

/////////////////////////////////////////////////////////////////////////////
///////////////////////////////// BINANCE ///////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// BinanceFundingInfoResp mirrors one element of the fundingInfo endpoint,
// which lists per-symbol settlement intervals for contracts that deviate
// from the venue-wide default.
type BinanceFundingInfoResp struct {
	Symbol               string      `json:"symbol"`
	FundingIntervalHours json.Number `json:"fundingIntervalHours"`
}

/////////////////////////////////////////////////////////////////////////////
///////////////////////////////// BYBIT /////////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// BybitTickersResult represents the result object of the v5 market tickers
// response. The SDK surfaces retCode/retMsg itself, so only the payload under
// "result" needs a typed decode.
type BybitTickersResult struct {
	Category string            `json:"category"`
	List     []BybitTickerItem `json:"list"`
}

type BybitTickerItem struct {
	Symbol          string `json:"symbol"`
	FundingRate     string `json:"fundingRate"`
	NextFundingTime string `json:"nextFundingTime"`
}

// BybitInstrumentsResult represents the result object of the v5
// instruments-info response, used to preload per-symbol funding intervals.
// FundingInterval is in minutes.
type BybitInstrumentsResult struct {
	List []BybitInstrumentItem `json:"list"`
}

type BybitInstrumentItem struct {
	Symbol          string      `json:"symbol"`
	FundingInterval json.Number `json:"fundingInterval"`
}

/////////////////////////////////////////////////////////////////////////////
////////////////////////////////// OKX //////////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// OkxInstrumentsResp represents the public instruments envelope.
type OkxInstrumentsResp struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data []OkxInstrument `json:"data"`
}

type OkxInstrument struct {
	InstID    string `json:"instId"`
	InstType  string `json:"instType"`
	SettleCcy string `json:"settleCcy"`
}

// OkxFundingRateResp represents the public funding-rate envelope returned
// per instrument.
type OkxFundingRateResp struct {
	Code string           `json:"code"`
	Msg  string           `json:"msg"`
	Data []OkxFundingRate `json:"data"`
}

type OkxFundingRate struct {
	InstID          string `json:"instId"`
	FundingRate     string `json:"fundingRate"`
	FundingTime     string `json:"fundingTime"`
	NextFundingTime string `json:"nextFundingTime"`
}

/////////////////////////////////////////////////////////////////////////////
////////////////////////////////// HTX //////////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// HtxBatchFundingResp represents the linear-swap batch funding rate envelope.
// Settlement timestamps are epoch milliseconds; the settlement interval is
// derived from next_funding_time - funding_time when both are present.
type HtxBatchFundingResp struct {
	Status string           `json:"status"`
	Data   []HtxFundingItem `json:"data"`
}

type HtxFundingItem struct {
	ContractCode    string      `json:"contract_code"`
	FundingRate     string      `json:"funding_rate"`
	FundingTime     json.Number `json:"funding_time"`
	NextFundingTime json.Number `json:"next_funding_time"`
}

/////////////////////////////////////////////////////////////////////////////
///////////////////////////////// MEXC //////////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// MexcFundingResp represents the contract funding rate envelope.
type MexcFundingResp struct {
	Success bool              `json:"success"`
	Code    int               `json:"code"`
	Data    []MexcFundingItem `json:"data"`
}

type MexcFundingItem struct {
	Symbol         string      `json:"symbol"`
	FundingRate    json.Number `json:"fundingRate"`
	NextSettleTime int64       `json:"nextSettleTime"`
}

/////////////////////////////////////////////////////////////////////////////
///////////////////////////////// GATE //////////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// GateTickerItem represents one element of the usdt futures tickers list.
// Some deployments name the instrument field "name", others "contract", so
// both are captured and Instrument() picks whichever is set.
type GateTickerItem struct {
	Name        string `json:"name"`
	Contract    string `json:"contract"`
	FundingRate string `json:"funding_rate"`
}

func (g GateTickerItem) Instrument() string {
	if g.Name != "" {
		return g.Name
	}
	return g.Contract
}

/////////////////////////////////////////////////////////////////////////////
///////////////////////////////// LBANK /////////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// LbankFundingResp represents the futures fundingRate envelope. The result
// field is ignored because the gateway has shipped it both as a bool and as
// a string; error_code is the reliable failure signal.
type LbankFundingResp struct {
	ErrorCode int                `json:"error_code"`
	Data      []LbankFundingItem `json:"data"`
}

type LbankFundingItem struct {
	Symbol      string      `json:"symbol"`
	FundingRate json.Number `json:"fundingRate"`
}

/////////////////////////////////////////////////////////////////////////////
///////////////////////////////// BITGET ////////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// BitgetFundingResp represents the mix market current-fund-rate envelope.
// A code other than "00000" signals a venue-side error even with HTTP 200.
type BitgetFundingResp struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type BitgetFundingItem struct {
	Symbol              string      `json:"symbol"`
	FundingRate         string      `json:"fundingRate"`
	FundingRateInterval json.Number `json:"fundingRateInterval"`
}

// Items decodes the data payload, tolerating both the documented list form
// and a single-object form some gateway versions return.
func (b BitgetFundingResp) Items() []BitgetFundingItem {
	if len(b.Data) == 0 {
		return nil
	}
	var list []BitgetFundingItem
	if err := json.Unmarshal(b.Data, &list); err == nil {
		return list
	}
	var one BitgetFundingItem
	if err := json.Unmarshal(b.Data, &one); err == nil && one.Symbol != "" {
		return []BitgetFundingItem{one}
	}
	return nil
}

/////////////////////////////////////////////////////////////////////////////
///////////////////////////////// BINGX /////////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// BingxFundingResp represents the swap quote fundingRate envelope. A code
// other than 0 signals a venue-side error.
type BingxFundingResp struct {
	Code int                `json:"code"`
	Msg  string             `json:"msg"`
	Data []BingxFundingItem `json:"data"`
}

type BingxFundingItem struct {
	Symbol      string `json:"symbol"`
	FundingRate string `json:"fundingRate"`
	FundingTime int64  `json:"fundingTime"`
}
