package bybitclient

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Request signing for Bybit V5 private GET endpoints:
// sign = hex(HMAC_SHA256(secret, timestamp + apiKey + recvWindow + queryString)).

// encodeQuery renders params as a key-sorted query string. The same string is both
// signed and sent, so the two can never disagree.
func encodeQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(params[k]))
	}
	return sb.String()
}

func signaturePayload(timestampMs int64, apiKey string, recvWindowMs int, query string) string {
	return strconv.FormatInt(timestampMs, 10) + apiKey + strconv.Itoa(recvWindowMs) + query
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
