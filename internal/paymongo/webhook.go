package paymongo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const SignatureHeader = "Paymongo-Signature"

// Signature is a parsed Paymongo-Signature header.
type Signature struct {
	Timestamp int64
	Test      string
	Live      string
}

func ParseSignature(header string) (Signature, error) {
	var sig Signature
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return sig, fmt.Errorf("%w: bad timestamp %q", ErrInvalidSignature, value)
			}
			sig.Timestamp = ts
		case "te":
			sig.Test = value
		case "li":
			sig.Live = value
		}
	}
	if sig.Timestamp == 0 {
		return sig, fmt.Errorf("%w: missing timestamp", ErrInvalidSignature)
	}
	return sig, nil
}

// Sign computes hex(HMAC_SHA256(secret, t + "." + body)).
func Sign(secret string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verifier checks webhook deliveries against the endpoint secret.
type Verifier struct {
	Secret    string
	LiveMode  bool
	Tolerance time.Duration
	Now       func() time.Time
}

func (v Verifier) Verify(header string, body []byte) error {
	sig, err := ParseSignature(header)
	if err != nil {
		return err
	}

	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	if v.Tolerance > 0 {
		age := now().Sub(time.Unix(sig.Timestamp, 0))
		if age > v.Tolerance || age < -v.Tolerance {
			return ErrStaleSignature
		}
	}

	got := sig.Test
	if v.LiveMode {
		got = sig.Live
	}
	if got == "" {
		return fmt.Errorf("%w: no signature for mode", ErrInvalidSignature)
	}
	want := Sign(v.Secret, sig.Timestamp, body)
	if !hmac.Equal([]byte(got), []byte(want)) {
		return ErrInvalidSignature
	}
	return nil
}
