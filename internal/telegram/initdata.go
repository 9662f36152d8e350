package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

var (
	ErrMissingCredentials = errors.New("telegram init data is missing")
	ErrInvalidSignature   = errors.New("telegram init data signature is invalid")
	ErrMalformedIdentity  = errors.New("telegram init data is malformed")
)

const unknownField = "unknown"

// Principal is a caller whose identity was proven by a valid init data
// signature.
type Principal struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// Verifier checks Mini App init data against the bot token.
type Verifier struct {
	secretKey []byte
}

// NewVerifier derives the WebAppData secret from the bot token once.
func NewVerifier(botToken string) *Verifier {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	return &Verifier{secretKey: mac.Sum(nil)}
}

// Sign returns the lowercase hex HMAC of a data-check string.
func (v *Verifier) Sign(dataCheck string) string {
	mac := hmac.New(sha256.New, v.secretKey)
	mac.Write([]byte(dataCheck))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify validates raw init data (as sent in the X-Telegram-Init-Data
// header) and returns the signed-in user.
//
// The whole string is unescaped before splitting, the hash pair is
// removed and the remaining "key=value" items are sorted and joined
// with newlines to form the data-check string.
func (v *Verifier) Verify(initData string) (*Principal, error) {
	if strings.TrimSpace(initData) == "" {
		return nil, ErrMissingCredentials
	}

	decoded := unescape(initData)

	var (
		hash  string
		user  string
		pairs []string
	)
	for _, item := range strings.Split(decoded, "&") {
		key, value, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("%w: item %q has no value", ErrMalformedIdentity, item)
		}
		switch key {
		case "hash":
			hash = value
			continue
		case "user":
			user = value
		}
		pairs = append(pairs, item)
	}
	if hash == "" {
		return nil, ErrInvalidSignature
	}

	sort.Strings(pairs)
	expected := v.Sign(strings.Join(pairs, "\n"))
	if !hmac.Equal([]byte(expected), []byte(hash)) {
		return nil, ErrInvalidSignature
	}

	return parseUser(user)
}

// unescape decodes %XX sequences and keeps any malformed escape as
// literal text, so a bad escape ends in a signature mismatch.
func unescape(s string) string {
	if decoded, err := url.PathUnescape(s); err == nil {
		return decoded
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			n, _ := hex.DecodeString(s[i+1 : i+3])
			b.Write(n)
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func parseUser(raw string) (*Principal, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: user field is missing", ErrMalformedIdentity)
	}

	var u struct {
		ID        *int64 `json:"id"`
		Username  string `json:"username"`
		FirstName string `json:"first_name"`
	}
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedIdentity, err)
	}
	if u.ID == nil {
		return nil, fmt.Errorf("%w: user id is missing", ErrMalformedIdentity)
	}

	p := &Principal{ID: *u.ID, Username: u.Username, DisplayName: u.FirstName}
	if p.Username == "" {
		p.Username = unknownField
	}
	if p.DisplayName == "" {
		p.DisplayName = unknownField
	}
	return p, nil
}
