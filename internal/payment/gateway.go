// Package payment adapts the external payment provider's signed-redirect
// protocol.  The provider is opaque to the rest of the system: the booking
// flow only ever builds a redirect URL and later verifies the query string
// the provider sends the customer back with.  The provider's result code is
// the sole authority on whether payment succeeded; URL shape alone proves
// nothing because return parameters travel through the customer's browser.
package payment

import (
    "crypto/hmac"
    "crypto/sha512"
    "encoding/hex"
    "errors"
    "net/url"
    "sort"
    "strconv"
    "strings"
    "time"
)

// ResponseCodeSuccess is the provider's code for a completed payment.
const ResponseCodeSuccess = "00"

// ErrBadSignature is returned when the secure hash on a return URL does
// not match the payload.  Such requests must be treated as forged.
var ErrBadSignature = errors.New("payment: invalid secure hash")

// ErrMissingParams is returned when the return URL lacks the fields needed
// to verify it.
var ErrMissingParams = errors.New("payment: missing return parameters")

// Config carries the merchant credentials issued by the provider.
type Config struct {
    PayURL       string // provider checkout endpoint
    ReturnURL    string // where the provider redirects the customer back to
    MerchantCode string
    Secret       string
}

// Gateway signs outgoing checkout requests and verifies incoming returns.
type Gateway struct {
    cfg Config
    now func() time.Time
}

// NewGateway returns a Gateway using the wall clock.
func NewGateway(cfg Config) *Gateway {
    return &Gateway{cfg: cfg, now: time.Now}
}

// NewGatewayAt returns a Gateway with an injected clock, for tests.
func NewGatewayAt(cfg Config, now func() time.Time) *Gateway {
    return &Gateway{cfg: cfg, now: now}
}

// BuildRedirect constructs the signed URL the customer is sent to.  The
// transaction reference is the booking session's public code, which is how
// the return leg finds its session again.  Amount is in cents; the provider
// wire format multiplies by 100 per its convention.
func (g *Gateway) BuildRedirect(txnRef string, amountCents uint32, orderInfo string) string {
    params := url.Values{}
    params.Set("vnp_Version", "2.1.0")
    params.Set("vnp_Command", "pay")
    params.Set("vnp_TmnCode", g.cfg.MerchantCode)
    params.Set("vnp_TxnRef", txnRef)
    params.Set("vnp_Amount", strconv.FormatUint(uint64(amountCents)*100, 10))
    params.Set("vnp_OrderInfo", orderInfo)
    params.Set("vnp_CreateDate", g.now().UTC().Format("20060102150405"))
    params.Set("vnp_ReturnUrl", g.cfg.ReturnURL)
    params.Set("vnp_SecureHash", g.sign(params))
    return g.cfg.PayURL + "?" + params.Encode()
}

// ReturnResult is the verified outcome of a provider return.
type ReturnResult struct {
    TxnRef      string
    Code        string
    Message     string
    AmountCents uint32
    Succeeded   bool
}

// VerifyReturn validates the signature on a raw provider return query and
// extracts the transaction outcome.  Verification is a pure computation:
// calling it any number of times with the same input yields the same
// result, which is what makes the return endpoint safe against refreshes.
func (g *Gateway) VerifyReturn(rawQuery string) (*ReturnResult, error) {
    params, err := url.ParseQuery(rawQuery)
    if err != nil {
        return nil, ErrMissingParams
    }
    given := params.Get("vnp_SecureHash")
    txnRef := params.Get("vnp_TxnRef")
    code := params.Get("vnp_ResponseCode")
    if given == "" || txnRef == "" || code == "" {
        return nil, ErrMissingParams
    }
    params.Del("vnp_SecureHash")
    params.Del("vnp_SecureHashType")
    if !hmac.Equal([]byte(strings.ToLower(given)), []byte(g.sign(params))) {
        return nil, ErrBadSignature
    }
    var amountCents uint32
    if raw := params.Get("vnp_Amount"); raw != "" {
        if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
            amountCents = uint32(n / 100)
        }
    }
    return &ReturnResult{
        TxnRef:      txnRef,
        Code:        code,
        Message:     params.Get("vnp_Message"),
        AmountCents: amountCents,
        Succeeded:   code == ResponseCodeSuccess,
    }, nil
}

// SignReturn signs a set of return parameters.  The server only ever
// verifies returns; this is exported for tests and for the fake provider
// used in development environments.
func (g *Gateway) SignReturn(params url.Values) string {
    cp := url.Values{}
    for k, vs := range params {
        if k == "vnp_SecureHash" || k == "vnp_SecureHashType" {
            continue
        }
        for _, v := range vs {
            cp.Add(k, v)
        }
    }
    return g.sign(cp)
}

// sign computes the lowercase hex HMAC-SHA512 over the parameters sorted
// by key and URL-encoded, the provider's canonical form.
func (g *Gateway) sign(params url.Values) string {
    keys := make([]string, 0, len(params))
    for k := range params {
        keys = append(keys, k)
    }
    sort.Strings(keys)
    var b strings.Builder
    for i, k := range keys {
        if i > 0 {
            b.WriteByte('&')
        }
        b.WriteString(k)
        b.WriteByte('=')
        b.WriteString(url.QueryEscape(params.Get(k)))
    }
    mac := hmac.New(sha512.New, []byte(g.cfg.Secret))
    mac.Write([]byte(b.String()))
    return hex.EncodeToString(mac.Sum(nil))
}
