package igclient

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// apiVersionPrefix is stripped from the path before signing.
const apiVersionPrefix = "/v1"

// signature computes the enforced-signed-request "sig" parameter:
// HMAC-SHA256 over "<endpoint>|k1=v1|k2=v2..." with keys sorted, hex encoded.
func signature(path string, params url.Values, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "sig" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(strings.TrimPrefix(path, apiVersionPrefix))
	for _, k := range keys {
		for _, v := range params[k] {
			b.WriteString("|")
			b.WriteString(k)
			b.WriteString("=")
			b.WriteString(v)
		}
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}
