package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/advisor/pkg/chat"
	"github.com/papercomputeco/advisor/pkg/eventstream"
	"github.com/papercomputeco/advisor/pkg/transport"
)

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.TurnCompletedEvent
}

func (r *recordingPublisher) PublishTurn(_ context.Context, event *eventstream.TurnCompletedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) Close() error {
	return nil
}

func (r *recordingPublisher) published() []*eventstream.TurnCompletedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]*eventstream.TurnCompletedEvent(nil), r.events...)
}

// capturedRequest is what the fake upstream saw.
type capturedRequest struct {
	Path   string
	Header http.Header
	Body   upstreamRequest
}

var openAIEvents = []string{
	"data: {\"id\":\"chatcmpl-1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\",\"content\":\"Hello\"}}]}\n\n",
	": keep-alive\n\n",
	"data: {\"id\":\"chatcmpl-1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\" world\"}}]}\n\n",
	"data: {\"id\":\"chatcmpl-1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"!\"}}]}\n\n",
	"data: [DONE]\n\n",
}

func chatBody(messages ...chat.Message) io.Reader {
	b, err := json.Marshal(map[string]any{"messages": messages})
	Expect(err).NotTo(HaveOccurred())
	return strings.NewReader(string(b))
}

func postChat(r *Relay, path string, body io.Reader, headers map[string]string) *http.Response {
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := r.server.Test(req, -1)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func readError(resp *http.Response) string {
	defer resp.Body.Close()

	var body ErrorResponse
	Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
	return body.Error
}

var _ = Describe("Relay", func() {
	var (
		r        *Relay
		pub      *recordingPublisher
		upstream *httptest.Server
		captured chan capturedRequest
		respond  func(w http.ResponseWriter)
		cfg      Config
		newRelay func()
	)

	BeforeEach(func() {
		pub = &recordingPublisher{}
		captured = make(chan capturedRequest, 1)
		respond = func(w http.ResponseWriter) {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			flusher := w.(http.Flusher)
			for _, event := range openAIEvents {
				fmt.Fprint(w, event)
				flusher.Flush()
			}
		}

		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			var body upstreamRequest
			_ = json.NewDecoder(req.Body).Decode(&body)
			captured <- capturedRequest{Path: req.URL.Path, Header: req.Header.Clone(), Body: body}
			respond(w)
		}))

		cfg = Config{
			ListenAddr:   ":0",
			UpstreamURL:  upstream.URL + "/v1/",
			UpstreamKey:  "sk-upstream",
			Model:        "test-model",
			SystemPrompt: "You are a career advisor.",
		}

		newRelay = func() {
			var err error
			r, err = New(cfg, pub, nil)
			Expect(err).NotTo(HaveOccurred())
		}
		newRelay()
	})

	AfterEach(func() {
		if r != nil {
			r.Close()
		}
		upstream.Close()
	})

	Describe("New", func() {
		It("requires an upstream and a model", func() {
			_, err := New(Config{Model: "m"}, pub, nil)
			Expect(err).To(HaveOccurred())

			_, err = New(Config{UpstreamURL: "http://localhost"}, pub, nil)
			Expect(err).To(HaveOccurred())
		})

		It("requires a publisher", func() {
			_, err := New(Config{UpstreamURL: "http://localhost", Model: "m"}, nil, nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("streaming", func() {
		It("forwards the upstream stream byte for byte", func() {
			resp := postChat(r, ChatPath, chatBody(chat.NewUserMessage("Say hello")), nil)
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/event-stream"))
			Expect(resp.Header.Get("Cache-Control")).To(Equal("no-cache"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal(strings.Join(openAIEvents, "")))
		})

		It("sends the system prompt, model and stream flag upstream", func() {
			history := []chat.Message{
				chat.NewUserMessage("Which stream after 10th?"),
				chat.NewAssistantMessage("Science, Commerce or Arts."),
				chat.NewUserMessage("Tell me about Science."),
			}
			resp := postChat(r, ChatPath, chatBody(history...), map[string]string{"Authorization": "Bearer anon-key"})
			resp.Body.Close()

			var got capturedRequest
			Eventually(captured).Should(Receive(&got))
			Expect(got.Path).To(Equal("/v1/chat/completions"))
			Expect(got.Header.Get("Authorization")).To(Equal("Bearer sk-upstream"))
			Expect(got.Header.Get("X-Request-Id")).NotTo(BeEmpty())
			Expect(got.Body.Model).To(Equal("test-model"))
			Expect(got.Body.Stream).To(BeTrue())
			Expect(got.Body.Messages).To(HaveLen(4))
			Expect(got.Body.Messages[0]).To(Equal(chat.Message{Role: "system", Content: "You are a career advisor."}))
			Expect(got.Body.Messages[1:]).To(Equal(history))
		})

		It("publishes the assembled turn", func() {
			resp := postChat(r, ChatAliasPath, chatBody(chat.NewUserMessage("Say hello")), nil)
			requestID := resp.Header.Get("X-Request-Id")
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			Eventually(pub.published).Should(HaveLen(1))
			event := pub.published()[0]
			Expect(event.EventType).To(Equal(eventstream.EventTypeTurnCompleted))
			Expect(event.Source.Model).To(Equal("test-model"))
			Expect(event.RequestMeta.Path).To(Equal(ChatAliasPath))
			Expect(event.RequestMeta.RequestID).To(Equal(requestID))
			Expect(event.RequestMeta.HTTPStatus).To(Equal(http.StatusOK))
			Expect(event.RequestMeta.Terminated).To(BeTrue())
			Expect(event.Turn.Messages).To(Equal([]chat.Message{chat.NewUserMessage("Say hello")}))
			Expect(event.Turn.Response).To(Equal(chat.NewAssistantMessage("Hello world!")))
		})

		It("passes through bytes that follow [DONE]", func() {
			respond = func(w http.ResponseWriter) {
				w.Header().Set("Content-Type", "text/event-stream")
				flusher := w.(http.Flusher)
				fmt.Fprint(w, "data: [DONE]\n\n")
				flusher.Flush()
				fmt.Fprint(w, ": trailer\n\n")
			}

			resp := postChat(r, ChatPath, chatBody(chat.NewUserMessage("hi")), nil)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal("data: [DONE]\n\n: trailer\n\n"))
		})

		It("defaults the content type for untyped upstream streams", func() {
			respond = func(w http.ResponseWriter) {
				w.Header()["Content-Type"] = nil
				fmt.Fprint(w, "data: [DONE]\n\n")
			}

			resp := postChat(r, ChatPath, chatBody(chat.NewUserMessage("hi")), nil)
			resp.Body.Close()
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))
		})
	})

	Describe("authorization", func() {
		BeforeEach(func() {
			r.Close()
			cfg.Credential = "relay-secret"
			newRelay()
		})

		DescribeTable("rejects requests without the relay credential",
			func(headers map[string]string) {
				resp := postChat(r, ChatPath, chatBody(chat.NewUserMessage("hi")), headers)
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				Expect(readError(resp)).To(Equal("Unauthorized"))
				Expect(captured).NotTo(Receive())
			},
			Entry("missing", nil),
			Entry("wrong token", map[string]string{"Authorization": "Bearer nope"}),
			Entry("wrong scheme", map[string]string{"Authorization": "Basic cmVsYXktc2VjcmV0"}),
		)

		It("accepts the relay credential", func() {
			resp := postChat(r, ChatPath, chatBody(chat.NewUserMessage("hi")), map[string]string{"Authorization": "Bearer relay-secret"})
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("validation", func() {
		DescribeTable("rejects requests without messages",
			func(body string) {
				resp := postChat(r, ChatPath, strings.NewReader(body), nil)
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(readError(resp)).To(Equal("messages are required"))
				Expect(captured).NotTo(Receive())
			},
			Entry("empty body", ""),
			Entry("not JSON", "hello"),
			Entry("missing field", `{}`),
			Entry("empty list", `{"messages":[]}`),
		)
	})

	Describe("upstream errors", func() {
		DescribeTable("maps the upstream status",
			func(status, wantStatus int, wantMessage string) {
				respond = func(w http.ResponseWriter) {
					w.WriteHeader(status)
					fmt.Fprint(w, `{"error":{"message":"upstream detail"}}`)
				}

				resp := postChat(r, ChatPath, chatBody(chat.NewUserMessage("hi")), nil)
				Expect(resp.StatusCode).To(Equal(wantStatus))
				Expect(readError(resp)).To(Equal(wantMessage))
				Expect(pub.published()).To(BeEmpty())
			},
			Entry("rate limited", http.StatusTooManyRequests, http.StatusTooManyRequests, "Rate limits exceeded, please try again later."),
			Entry("payment required", http.StatusPaymentRequired, http.StatusPaymentRequired, "Payment required, please add funds to your workspace."),
			Entry("server error", http.StatusBadGateway, http.StatusInternalServerError, "AI gateway error"),
			Entry("bad request", http.StatusBadRequest, http.StatusInternalServerError, "AI gateway error"),
		)

		It("returns a gateway error when the upstream is unreachable", func() {
			upstream.Close()

			resp := postChat(r, ChatPath, chatBody(chat.NewUserMessage("hi")), nil)
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(readError(resp)).To(Equal("AI gateway error"))
		})
	})

	It("answers health checks", func() {
		resp, err := r.server.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		Expect(string(body)).To(Equal("pong"))
	})

	Describe("with the transport client", func() {
		It("streams an advisor answer end to end", func() {
			listener, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			go func() {
				defer GinkgoRecover()
				_ = r.RunWithListener(listener)
			}()

			client, err := transport.New(transport.Config{
				Endpoint: "http://" + listener.Addr().String() + ChatPath,
			})
			Expect(err).NotTo(HaveOccurred())

			session := chat.NewSession(client)
			Expect(session.Submit(context.Background(), "Say hello")).To(Succeed())

			last, ok := session.Conversation().Last()
			Expect(ok).To(BeTrue())
			Expect(last).To(Equal(chat.NewAssistantMessage("Hello world!")))
		})

		It("surfaces the relay error message to the client", func() {
			respond = func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusTooManyRequests)
			}

			listener, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			go func() {
				defer GinkgoRecover()
				_ = r.RunWithListener(listener)
			}()

			client, err := transport.New(transport.Config{
				Endpoint: "http://" + listener.Addr().String() + ChatPath,
			})
			Expect(err).NotTo(HaveOccurred())

			err = client.Stream(context.Background(), []chat.Message{chat.NewUserMessage("hi")}, func(string) {})
			var terr *transport.Error
			Expect(err).To(BeAssignableToTypeOf(terr))
			Expect(err.(*transport.Error).Message).To(Equal("Rate limits exceeded, please try again later."))
			Expect(err.(*transport.Error).StatusCode).To(Equal(http.StatusTooManyRequests))
		})
	})
})
