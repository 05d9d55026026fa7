// FilePath: internal/webapp/webapp_test.go
package webapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// signInitData reproduces the documented Telegram WebApp check string
// construction, independent of the implementation under test.
func signInitData(secret string, fields map[string]string) string {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(secret))
	secretKey := mac.Sum(nil)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+fields[k])
	}
	dataCheckString := strings.Join(pairs, "\n")

	sigMac := hmac.New(sha256.New, secretKey)
	sigMac.Write([]byte(dataCheckString))
	hash := hex.EncodeToString(sigMac.Sum(nil))

	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	values.Set("hash", hash)
	return values.Encode()
}

func TestHMACValidatorAcceptsCorrectlySignedPayload(t *testing.T) {
	v := NewHMACValidator("shared-secret")
	initData := signInitData("shared-secret", map[string]string{
		"user":      `{"id":123}`,
		"auth_date": "1700000000",
	})

	fields, err := v.Validate(initData)
	require.NoError(t, err)
	require.Equal(t, "1700000000", fields["auth_date"])
}

func TestHMACValidatorRejectsTamperedPayload(t *testing.T) {
	v := NewHMACValidator("shared-secret")
	initData := signInitData("shared-secret", map[string]string{"auth_date": "1700000000"})
	tampered := strings.Replace(initData, "1700000000", "1700000001", 1)

	_, err := v.Validate(tampered)
	require.Error(t, err)
}

func TestHMACValidatorRejectsWrongSecret(t *testing.T) {
	v := NewHMACValidator("shared-secret")
	initData := signInitData("a-different-secret", map[string]string{"auth_date": "1700000000"})

	_, err := v.Validate(initData)
	require.Error(t, err)
}

func TestHMACValidatorRejectsMissingHash(t *testing.T) {
	v := NewHMACValidator("shared-secret")

	_, err := v.Validate("auth_date=1700000000")
	require.Error(t, err)
}
