package cex

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// rawLevels is a book side as the exchange sends it: rows of
// [price, size, ...] where each cell may be a JSON string or number.
type rawLevels [][]decimal.Decimal

// futuresDepthResponse is the contract depth payload. Sizes are notional.
type futuresDepthResponse struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		Bids      rawLevels `json:"bids"`
		Asks      rawLevels `json:"asks"`
		Timestamp int64     `json:"timestamp"`
	} `json:"data"`
}

// spotDepthResponse is the spot depth payload. Sizes are base quantities.
type spotDepthResponse struct {
	LastUpdateID int64     `json:"lastUpdateId"`
	Bids         rawLevels `json:"bids"`
	Asks         rawLevels `json:"asks"`
}

// fundingRateResponse is the funding-rate payload.
type fundingRateResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		Symbol         string          `json:"symbol"`
		FundingRate    decimal.Decimal `json:"fundingRate"`
		NextSettleTime int64           `json:"nextSettleTime"`
	} `json:"data"`
}

// wsMessage is one frame on the depth WebSocket.
type wsMessage struct {
	Channel string `json:"channel"`
	Symbol  string `json:"symbol"`
	Data    *struct {
		Bids rawLevels `json:"bids"`
		Asks rawLevels `json:"asks"`
	} `json:"data"`
	TS int64 `json:"ts"`
}

// toLevels converts raw rows to price levels. When quantityIsBase is set the
// second column is a base quantity and is converted to notional.
func (r rawLevels) toLevels(quantityIsBase bool) ([]domain.PriceLevel, error) {
	out := make([]domain.PriceLevel, 0, len(r))
	for i, row := range r {
		if len(row) < 2 {
			return nil, fmt.Errorf("level %d has %d columns", i, len(row))
		}
		price, size := row[0], row[1]
		if quantityIsBase {
			size = size.Mul(price)
		}
		out = append(out, domain.PriceLevel{Price: price, Size: size})
	}
	return out, nil
}

// sides converts both sides and rejects books missing either one.
func sides(bids, asks rawLevels, quantityIsBase bool) ([]domain.PriceLevel, []domain.PriceLevel, error) {
	if len(bids) == 0 || len(asks) == 0 {
		return nil, nil, fmt.Errorf("empty book side (bids=%d asks=%d): %w", len(bids), len(asks), domain.ErrVenueUnavailable)
	}
	b, err := bids.toLevels(quantityIsBase)
	if err != nil {
		return nil, nil, fmt.Errorf("bids: %w: %w", err, domain.ErrVenueUnavailable)
	}
	a, err := asks.toLevels(quantityIsBase)
	if err != nil {
		return nil, nil, fmt.Errorf("asks: %w: %w", err, domain.ErrVenueUnavailable)
	}
	return b, a, nil
}
