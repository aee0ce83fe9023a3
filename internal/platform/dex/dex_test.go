package dex

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

var (
	wbnb = common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c")
	usdt = common.HexToAddress("0x55d398326f99059fF775485246999027B3197955")

	solMint  = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	usdcMint = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
)

func TestEVMClient_Quote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, wbnb.Hex(), q.Get("tokenIn"))
		assert.Equal(t, usdt.Hex(), q.Get("tokenOut"))
		assert.Equal(t, "10000000000000000000", q.Get("amountIn"))
		_, _ = w.Write([]byte(`{"code":0,"message":"successfully","data":{"routeSummary":{"amountIn":"10000000000000000000","amountOut":"6005250000000000000000"}}}`))
	}))
	defer srv.Close()

	c := NewEVMClient(Config{BaseURL: srv.URL, Timeout: time.Second})
	out, err := c.Quote(context.Background(), wbnb, usdt, ToUnits(decimal.NewFromInt(10), 18))
	require.NoError(t, err)
	assert.Equal(t, "6005.25", FromUnits(out, 18).String())
}

func TestEVMClient_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"no route", http.StatusOK, `{"code":4008,"message":"route not found"}`},
		{"bad amount", http.StatusOK, `{"data":{"routeSummary":{"amountOut":"12abc"}}}`},
		{"http error", http.StatusInternalServerError, `oops`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewEVMClient(Config{BaseURL: srv.URL}).Quote(context.Background(), wbnb, usdt, big.NewInt(1))
			require.ErrorIs(t, err, domain.ErrVenueUnavailable)
		})
	}

	_, err := NewEVMClient(Config{BaseURL: "http://unused"}).Quote(context.Background(), wbnb, usdt, big.NewInt(0))
	require.Error(t, err)
}

func TestAMMClient_Quote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, solMint.String(), q.Get("inputMint"))
		assert.Equal(t, usdcMint.String(), q.Get("outputMint"))
		assert.Equal(t, "ExactIn", q.Get("swapMode"))
		assert.Equal(t, "50000000000", q.Get("amount"))
		_, _ = w.Write([]byte(`{"inAmount":"50000000000","outAmount":"7512340000","otherAmountThreshold":"7474778300"}`))
	}))
	defer srv.Close()

	c := NewAMMClient(Config{BaseURL: srv.URL})
	q, err := c.Quote(context.Background(), solMint, usdcMint, 50_000_000_000, ExactIn)
	require.NoError(t, err)
	assert.Equal(t, uint64(50_000_000_000), q.InAmount)
	assert.Equal(t, uint64(7_512_340_000), q.OutAmount)
}

func TestAMMClient_RouterError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Could not find any route"}`))
	}))
	defer srv.Close()

	_, err := NewAMMClient(Config{BaseURL: srv.URL}).Quote(context.Background(), solMint, usdcMint, 1, ExactOut)
	require.ErrorIs(t, err, domain.ErrVenueUnavailable)
	assert.Contains(t, err.Error(), "Could not find any route")
}

func TestUnits(t *testing.T) {
	assert.Equal(t, "1500000", ToUnits(decimal.RequireFromString("1.5"), 6).String())
	assert.Equal(t, "1", ToUnits(decimal.RequireFromString("1.9"), 0).String())
	assert.Equal(t, "0.000123", FromUnits(big.NewInt(123), 6).String())

	p, err := UnitPrice(decimal.NewFromInt(300), decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.Equal(t, "150", p.String())

	_, err = UnitPrice(decimal.NewFromInt(300), decimal.Zero)
	require.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
}
