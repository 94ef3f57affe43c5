package tokensmith

import (
	"context"
	"strings"
	"unicode"
)

type clientIPContextKey struct{}
type userAgentContextKey struct{}

const (
	maxIPLength        = 45 // longest textual IPv6 form
	maxUserAgentLength = 255
	unknownMetaValue   = "unknown"
)

// WithClientIP attaches the caller's IP address to ctx. The engine uses it
// for per-IP rate limiting and session metadata.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the caller's User-Agent string to ctx. It is stored
// on the refresh session record for audit purposes.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}

// requestMeta extracts sanitized client metadata. Both values fall back to
// "unknown" so stored records never carry empty audit fields.
func requestMeta(ctx context.Context) (ip, userAgent string) {
	ip = strings.TrimSpace(clientIPFromContext(ctx))
	if len(ip) > maxIPLength {
		ip = ip[:maxIPLength]
	}
	if ip == "" {
		ip = unknownMetaValue
	}

	userAgent = sanitizeUserAgent(userAgentFromContext(ctx))
	return ip, userAgent
}

// sanitizeUserAgent strips markup and control characters and caps length.
// User-Agent is attacker-controlled input headed for storage and logs.
func sanitizeUserAgent(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r == '<' || r == '>' || unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}

	cleaned := strings.TrimSpace(b.String())
	if len(cleaned) > maxUserAgentLength {
		cleaned = cleaned[:maxUserAgentLength]
	}
	if cleaned == "" {
		return unknownMetaValue
	}
	return cleaned
}
