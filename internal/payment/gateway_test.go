package payment

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGateway() *Gateway {
	return NewGatewayAt(Config{
		PayURL:       "https://pay.example.com/checkout",
		ReturnURL:    "https://cinema.example.com/v1/payment/return",
		MerchantCode: "CINEMA01",
		Secret:       "test-secret",
	}, func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	})
}

func TestBuildRedirect(t *testing.T) {
	g := testGateway()
	raw := g.BuildRedirect("abc-123", 220000, "cinema booking abc-123")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()

	assert.Equal(t, "abc-123", q.Get("vnp_TxnRef"))
	assert.Equal(t, "22000000", q.Get("vnp_Amount"), "amount is cents times 100")
	assert.Equal(t, "CINEMA01", q.Get("vnp_TmnCode"))
	assert.Equal(t, "20250601120000", q.Get("vnp_CreateDate"))
	assert.NotEmpty(t, q.Get("vnp_SecureHash"))
}

func returnQuery(g *Gateway, code string) string {
	params := url.Values{}
	params.Set("vnp_TxnRef", "abc-123")
	params.Set("vnp_ResponseCode", code)
	params.Set("vnp_Amount", "22000000")
	params.Set("vnp_Message", "done")
	params.Set("vnp_SecureHash", g.SignReturn(params))
	return params.Encode()
}

func TestVerifyReturnSuccess(t *testing.T) {
	g := testGateway()
	res, err := g.VerifyReturn(returnQuery(g, "00"))
	require.NoError(t, err)
	assert.True(t, res.Succeeded)
	assert.Equal(t, "abc-123", res.TxnRef)
	assert.Equal(t, uint32(220000), res.AmountCents)
}

func TestVerifyReturnFailureCode(t *testing.T) {
	g := testGateway()
	res, err := g.VerifyReturn(returnQuery(g, "24"))
	require.NoError(t, err)
	assert.False(t, res.Succeeded)
	assert.Equal(t, "24", res.Code)
}

func TestVerifyReturnRejectsTampering(t *testing.T) {
	g := testGateway()
	params := url.Values{}
	params.Set("vnp_TxnRef", "abc-123")
	params.Set("vnp_ResponseCode", "24")
	params.Set("vnp_SecureHash", g.SignReturn(params))
	// flip the declined code to a success after signing
	params.Set("vnp_ResponseCode", "00")

	_, err := g.VerifyReturn(params.Encode())
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyReturnRejectsWrongSecret(t *testing.T) {
	g := testGateway()
	other := NewGateway(Config{Secret: "someone-else"})
	params := url.Values{}
	params.Set("vnp_TxnRef", "abc-123")
	params.Set("vnp_ResponseCode", "00")
	params.Set("vnp_SecureHash", other.SignReturn(params))

	_, err := g.VerifyReturn(params.Encode())
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyReturnMissingParams(t *testing.T) {
	g := testGateway()
	for _, raw := range []string{
		"",
		"vnp_TxnRef=abc-123",
		"vnp_ResponseCode=00&vnp_SecureHash=deadbeef",
	} {
		_, err := g.VerifyReturn(raw)
		assert.ErrorIs(t, err, ErrMissingParams, "query %q", raw)
	}
}

func TestVerifyReturnIsRepeatable(t *testing.T) {
	g := testGateway()
	raw := returnQuery(g, "00")
	first, err := g.VerifyReturn(raw)
	require.NoError(t, err)
	second, err := g.VerifyReturn(raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
