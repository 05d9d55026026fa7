// FilePath: internal/webapp/webapp.go
package webapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// InitDataValidator checks a Telegram WebApp init_data payload against the
// shared secret configured for the deployment.
type InitDataValidator interface {
	Validate(initData string) (map[string]string, error)
}

// HMACValidator implements the documented WebApp init_data check: every
// field except "hash" is sorted key=value, newline-joined, and HMAC-SHA256'd
// against a secret key derived from WEBAPP_SHARED_SECRET.
type HMACValidator struct {
	secretKey []byte
}

// NewHMACValidator derives the secret key from the configured shared secret.
func NewHMACValidator(sharedSecret string) *HMACValidator {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(sharedSecret))
	return &HMACValidator{secretKey: mac.Sum(nil)}
}

// Validate parses and checks initData, returning its fields on success.
func (v *HMACValidator) Validate(initData string) (map[string]string, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, fmt.Errorf("error parsing init_data: %w", err)
	}

	receivedHash := values.Get("hash")
	if receivedHash == "" {
		return nil, fmt.Errorf("init_data missing hash")
	}

	fields := make(map[string]string, len(values))
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
		fields[k] = values.Get(k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+fields[k])
	}
	dataCheckString := strings.Join(pairs, "\n")

	mac := hmac.New(sha256.New, v.secretKey)
	mac.Write([]byte(dataCheckString))
	computed := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computed), []byte(receivedHash)) {
		return nil, fmt.Errorf("init_data signature mismatch")
	}
	return fields, nil
}
