package dex

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/arbwatch/internal/domain"
	"github.com/alanyoungcy/arbwatch/internal/platform/rest"
)

// EVMClient quotes swaps on an EVM route aggregator.
type EVMClient struct {
	http    *rest.Getter
	baseURL string
}

// NewEVMClient creates an aggregator client. cfg.BaseURL is the routes
// endpoint, e.g. "https://aggregator-api.kyberswap.com/bsc/api/v1/routes".
func NewEVMClient(cfg Config) *EVMClient {
	return &EVMClient{http: cfg.getter(), baseURL: cfg.BaseURL}
}

type evmRouteResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		RouteSummary *struct {
			AmountIn  string `json:"amountIn"`
			AmountOut string `json:"amountOut"`
		} `json:"routeSummary"`
	} `json:"data"`
}

// Quote returns how many base units of tokenOut the aggregator's best route
// gives for amountIn base units of tokenIn.
func (c *EVMClient) Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("dex/evm: amountIn must be positive")
	}

	params := url.Values{}
	params.Set("tokenIn", tokenIn.Hex())
	params.Set("tokenOut", tokenOut.Hex())
	params.Set("amountIn", amountIn.String())

	body, err := c.http.Get(ctx, c.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("dex/evm: quote %s->%s: %w", tokenIn.Hex(), tokenOut.Hex(), err)
	}

	var resp evmRouteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("dex/evm: decode route: %w: %w", err, domain.ErrVenueUnavailable)
	}
	if resp.Data == nil || resp.Data.RouteSummary == nil {
		return nil, fmt.Errorf("dex/evm: no route (code %d %s): %w", resp.Code, resp.Message, domain.ErrVenueUnavailable)
	}

	out, ok := new(big.Int).SetString(resp.Data.RouteSummary.AmountOut, 10)
	if !ok || out.Sign() < 0 {
		return nil, fmt.Errorf("dex/evm: invalid amountOut %q: %w", resp.Data.RouteSummary.AmountOut, domain.ErrVenueUnavailable)
	}
	return out, nil
}
