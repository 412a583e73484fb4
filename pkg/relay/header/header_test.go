package header

import (
	"net/http"
	"net/http/httptest"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SetUpstreamRequestHeaders", func() {
	var (
		app *fiber.App
		hh  *Handler
		got http.Header
	)

	BeforeEach(func() {
		app = fiber.New()
		hh = NewHandler()
		got = nil

		app.Post("/test", func(c *fiber.Ctx) error {
			c.Set(RequestIDHeader, "rid-1")
			req, _ := http.NewRequest(http.MethodPost, "http://upstream/chat/completions", nil)
			hh.SetUpstreamRequestHeaders(c, req, "sk-upstream")
			got = req.Header
			return c.SendStatus(fiber.StatusOK)
		})
	})

	AfterEach(func() {
		app.Shutdown()
	})

	send := func(headers map[string]string) {
		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
	}

	It("replaces the client credential with the upstream key", func() {
		send(map[string]string{"Authorization": "Bearer anon-key"})
		Expect(got.Get("Authorization")).To(Equal("Bearer sk-upstream"))
	})

	It("sets the streaming content negotiation headers", func() {
		send(map[string]string{"Content-Type": "text/plain", "Accept": "*/*"})
		Expect(got.Get("Content-Type")).To(Equal("application/json"))
		Expect(got.Get("Accept")).To(Equal("text/event-stream"))
	})

	It("forwards allowed headers only", func() {
		send(map[string]string{
			"User-Agent":      "advisor-test",
			"Accept-Language": "hi-IN",
			"Cookie":          "session=1",
			"Connection":      "keep-alive",
			"X-Api-Key":       "secret",
		})
		Expect(got.Get("User-Agent")).To(Equal("advisor-test"))
		Expect(got.Get("Accept-Language")).To(Equal("hi-IN"))
		Expect(got.Get("Cookie")).To(BeEmpty())
		Expect(got.Get("Connection")).To(BeEmpty())
		Expect(got.Get("X-Api-Key")).To(BeEmpty())
	})

	It("propagates the request ID", func() {
		send(nil)
		Expect(got.Get(RequestIDHeader)).To(Equal("rid-1"))
	})

	It("omits Authorization without an upstream key", func() {
		app2 := fiber.New()
		var h http.Header
		app2.Post("/test", func(c *fiber.Ctx) error {
			req, _ := http.NewRequest(http.MethodPost, "http://upstream", nil)
			hh.SetUpstreamRequestHeaders(c, req, "")
			h = req.Header
			return c.SendStatus(fiber.StatusOK)
		})

		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		req.Header.Set("Authorization", "Bearer anon-key")
		resp, err := app2.Test(req)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()

		Expect(h.Get("Authorization")).To(BeEmpty())
	})
})

var _ = Describe("SetClientResponseHeaders", func() {
	It("copies upstream headers except hop-by-hop and encoding headers", func() {
		app := fiber.New()
		defer app.Shutdown()

		hh := NewHandler()
		app.Get("/test", func(c *fiber.Ctx) error {
			upstream := &http.Response{Header: http.Header{
				"Content-Type":      {"text/event-stream"},
				"Cache-Control":     {"no-cache"},
				"Content-Encoding":  {"gzip"},
				"Transfer-Encoding": {"chunked"},
				"Set-Cookie":        {"a=b"},
				"X-Custom":          {"one", "two"},
			}}
			hh.SetClientResponseHeaders(c, upstream)
			return c.SendString("ok")
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))
		Expect(resp.Header.Get("Cache-Control")).To(Equal("no-cache"))
		Expect(resp.Header.Get("X-Custom")).To(Equal("one, two"))
		Expect(resp.Header.Get("Content-Encoding")).To(BeEmpty())
		Expect(resp.Header.Get("Set-Cookie")).To(BeEmpty())
	})
})

var _ = Describe("BearerToken", func() {
	DescribeTable("extracts the token",
		func(value, want string, wantOK bool) {
			app := fiber.New()
			defer app.Shutdown()

			var token string
			var ok bool
			app.Get("/", func(c *fiber.Ctx) error {
				token, ok = BearerToken(c)
				return c.SendStatus(fiber.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if value != "" {
				req.Header.Set("Authorization", value)
			}
			resp, err := app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			Expect(ok).To(Equal(wantOK))
			Expect(token).To(Equal(want))
		},
		Entry("bearer", "Bearer abc", "abc", true),
		Entry("lower-case scheme", "bearer abc", "abc", true),
		Entry("missing", "", "", false),
		Entry("basic", "Basic dXNlcg==", "", false),
		Entry("empty token", "Bearer ", "", false),
	)
})
