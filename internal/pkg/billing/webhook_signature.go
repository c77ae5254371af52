package billing

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
)

// Header names Payrexx and common proxies use for the webhook signature, in
// lookup order.
var signatureHeaders = []string{
	"X-Payrexx-Signature",
	"Payrexx-Signature",
	"X-Webhook-Signature",
	"X-Signature",
	"Signature",
}

// Payload fields checked when no header carries a signature.
var signaturePayloadFields = []string{"signature", "payrexx_signature", "payrexxSignature"}

// SignatureResult distinguishes "nothing presented" (Provided == 0) from
// "presented but wrong".
type SignatureResult struct {
	Verified bool
	Provided int
}

// VerifyWebhookSignature checks HMAC-SHA256 signatures over the raw body and
// over the canonical JSON of the parsed payload, in hex and base64.
func VerifyWebhookSignature(raw []byte, header http.Header, payload map[string]any, secret string) SignatureResult {
	provided := presentedSignatures(header, payload)
	res := SignatureResult{Provided: len(provided)}

	secret = strings.TrimSpace(secret)
	if secret == "" || len(provided) == 0 {
		return res
	}

	expected := expectedSignatures(raw, payload, []byte(secret))
	for _, got := range provided {
		for _, want := range expected {
			if constantTimeEqual(got, want) {
				res.Verified = true
				return res
			}
		}
	}
	return res
}

func expectedSignatures(raw []byte, payload map[string]any, secret []byte) []string {
	bodies := [][]byte{raw}
	if canonical, ok := canonicalPayload(payload); ok {
		bodies = append(bodies, canonical)
	}

	out := make([]string, 0, len(bodies)*2)
	for _, body := range bodies {
		mac := hmac.New(sha256.New, secret)
		mac.Write(body)
		sum := mac.Sum(nil)
		out = append(out,
			hex.EncodeToString(sum),
			strings.ToLower(base64.StdEncoding.EncodeToString(sum)),
		)
	}
	return out
}

// canonicalPayload re-serializes the payload with sorted keys and without the
// embedded signature fields, which cannot be part of what was signed. HTML
// characters stay literal so texts such as "Math & Co" match the sender.
func canonicalPayload(payload map[string]any) ([]byte, bool) {
	if payload == nil {
		return nil, false
	}
	stripped := make(map[string]any, len(payload))
	for k, v := range payload {
		stripped[k] = v
	}
	for _, f := range signaturePayloadFields {
		delete(stripped, f)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(stripped); err != nil {
		return nil, false
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), true
}

func presentedSignatures(header http.Header, payload map[string]any) []string {
	var out []string
	for _, name := range signatureHeaders {
		for _, value := range header.Values(name) {
			out = append(out, normalizeSignatureHeader(value)...)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, f := range signaturePayloadFields {
		if s, ok := payload[f].(string); ok {
			out = append(out, normalizeSignatureHeader(s)...)
		}
	}
	return out
}

// normalizeSignatureHeader turns "sha256=ABC", "t=1,v1=abc" or a plain token
// into lower-cased bare tokens. Timestamp parts are dropped.
func normalizeSignatureHeader(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if k, v, ok := strings.Cut(part, "="); ok && isSignatureLabel(k) && strings.Trim(v, "=") != "" {
			switch strings.ToLower(k) {
			case "t", "ts", "timestamp":
				continue
			}
			part = v
		}
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// isSignatureLabel keeps base64 padding like "abc==" from being read as a
// key=value pair.
func isSignatureLabel(k string) bool {
	if k == "" || len(k) > 16 {
		return false
	}
	for _, r := range strings.ToLower(k) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
