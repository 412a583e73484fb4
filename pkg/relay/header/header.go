// Package header provides header filtering for the advisor relay.
//
// The relay sits between the chat client and an OpenAI-compatible upstream:
//
//	Client <--> Relay <--> Upstream model gateway
//
// and each leg negotiates auth, compression and hops independently.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RequestIDHeader carries the relay request ID to the client and the upstream.
const RequestIDHeader = fiber.HeaderXRequestID

// Handler manages headers between relay connections.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// forwardRequest is the set of client request headers passed on to the
// upstream. Everything else, notably the client's Authorization, stays on the
// client leg.
var forwardRequest = map[string]struct{}{
	"Accept-Language":                       {},
	"User-Agent":                            {},
	http.CanonicalHeaderKey(RequestIDHeader): {},
}

// skipResponse is the set of upstream response headers (client <-- relay <-- upstream)
// that are not copied back to the client.
var skipResponse = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},

	// fasthttp manages chunked transfer encoding for the client-facing
	// response independently.
	"Transfer-Encoding": {},

	// Go's http.Transport strips Content-Encoding after decompressing, so the
	// upstream value no longer describes the body.
	"Content-Encoding": {},
	"Content-Length":   {},

	// Upstream credentials and cookies never reach the client.
	"Set-Cookie": {},
}

// SetUpstreamRequestHeaders copies allowed request headers from the Fiber
// context to the outgoing http.Request and sets the upstream bearer token.
func (h *Handler) SetUpstreamRequestHeaders(c *fiber.Ctx, req *http.Request, upstreamKey string) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := http.CanonicalHeaderKey(string(key))
		if _, ok := forwardRequest[k]; ok {
			req.Header.Set(k, string(value))
		}
	})

	if rid := c.GetRespHeader(RequestIDHeader); rid != "" {
		req.Header.Set(RequestIDHeader, rid)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if upstreamKey != "" {
		req.Header.Set("Authorization", "Bearer "+upstreamKey)
	}
}

// SetClientResponseHeaders copies response headers from the upstream
// http.Response to the Fiber context, filtering headers that the relay should
// not forward back down to the client.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	for k, v := range resp.Header {
		if _, skip := skipResponse[k]; !skip {
			c.Set(k, strings.Join(v, ", "))
		}
	}
}

// BearerToken returns the token of an "Authorization: Bearer <token>" header,
// or false when the header is missing or uses another scheme.
func BearerToken(c *fiber.Ctx) (string, bool) {
	auth := c.Get(fiber.HeaderAuthorization)
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
