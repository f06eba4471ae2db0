package bybitclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeQuery_SortsKeys(t *testing.T) {
	got := encodeQuery(map[string]string{
		"symbol":    "BTCUSDT",
		"category":  "linear",
		"startTime": "1000000",
		"limit":     "50",
	})
	assert.Equal(t, "category=linear&limit=50&startTime=1000000&symbol=BTCUSDT", got)
	assert.Equal(t, "", encodeQuery(nil))
}

func TestSign_KnownVector(t *testing.T) {
	payload := signaturePayload(1700000000000, "key", 5000, "category=linear&symbol=BTCUSDT")
	assert.Equal(t, "1700000000000key5000category=linear&symbol=BTCUSDT", payload)
	assert.Equal(t, "3906b813750309cce9879a975510651953382a28592d69104d0b599e3d201f40", sign("secret", payload))
}

func TestSign_DependsOnSecret(t *testing.T) {
	payload := signaturePayload(1, "key", 5000, "a=b")
	assert.NotEqual(t, sign("one", payload), sign("two", payload))
}
