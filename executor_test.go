package crudclient_test

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	crudclient "github.com/JohnPlummer/jp-go-crudclient"
)

var _ = Describe("Executor", func() {
	var (
		ctx       context.Context
		cancel    context.CancelFunc
		transport *mockTransport
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		transport = &mockTransport{}
	})

	AfterEach(func() {
		cancel()
	})

	Describe("successful request", func() {
		It("decodes a JSON payload on the first attempt", func() {
			transport.executeFunc = func(ctx context.Context, req *crudclient.TransportRequest) (*crudclient.TransportResponse, error) {
				return jsonResponse(200, `{"a":1}`), nil
			}
			exec := newTestExecutor(transport)

			resp, err := crudclient.Execute(ctx, exec, crudclient.RequestDescriptor[map[string]int]{
				URL:        "/things",
				RetryCount: 3,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp).To(Equal(map[string]int{"a": 1}))
			Expect(transport.getCallCount()).To(Equal(1))

			stats := exec.GetStats()
			Expect(stats.TotalAttempts).To(Equal(int64(1)))
			Expect(stats.TotalRetries).To(Equal(int64(0)))
			Expect(stats.TotalSuccesses).To(Equal(int64(1)))
			Expect(stats.TotalFailures).To(Equal(int64(0)))
		})

		It("resolves relative URLs against the base URL and passes absolute ones through", func() {
			transport.executeFunc = func(ctx context.Context, req *crudclient.TransportRequest) (*crudclient.TransportResponse, error) {
				return jsonResponse(200, `{}`), nil
			}
			exec := newTestExecutor(transport, crudclient.WithBaseURL("https://api.test/v1/"))

			_, err := exec.Do(ctx, crudclient.RequestDescriptor[any]{URL: "/ideas"})
			Expect(err).NotTo(HaveOccurred())
			_, err = exec.Do(ctx, crudclient.RequestDescriptor[any]{URL: "https://other.test/x"})
			Expect(err).NotTo(HaveOccurred())

			requests := transport.getRequests()
			Expect(requests[0].URL).To(Equal("https://api.test/v1/ideas"))
			Expect(requests[1].URL).To(Equal("https://other.test/x"))
		})

		It("attaches standard headers, descriptor headers and a JSON body", func() {
			transport.executeFunc = func(ctx context.Context, req *crudclient.TransportRequest) (*crudclient.TransportResponse, error) {
				return jsonResponse(201, `{"id":"X-1"}`), nil
			}
			exec := newTestExecutor(transport,
				crudclient.WithDefaultHeaders(map[string]string{"X-Client": "web"}),
				crudclient.WithIDGenerator(func() string { return "tx-1" }),
			)

			_, err := exec.Do(ctx, crudclient.RequestDescriptor[any]{
				URL:     "/ideas",
				Method:  "post",
				Body:    map[string]string{"title": "t"},
				Headers: map[string]string{"Authorization": "Bearer abc"},
			})
			Expect(err).NotTo(HaveOccurred())

			req := transport.getRequests()[0]
			Expect(req.Method).To(Equal(http.MethodPost))
			Expect(req.Headers.Get("X-Client")).To(Equal("web"))
			Expect(req.Headers.Get("Authorization")).To(Equal("Bearer abc"))
			Expect(req.Headers.Get("Accept")).To(Equal("application/json"))
			Expect(req.Headers.Get("Content-Type")).To(Equal("application/json"))
			Expect(req.Headers.Get(crudclient.DefaultTransactionHeader)).To(Equal("tx-1"))
			Expect(req.Body).To(MatchJSON(`{"title":"t"}`))
		})

		It("reuses one transaction id across attempts and generates a new one per call", func() {
			var attempt atomic.Int32
			transport.executeFunc = func(ctx context.Context, req *crudclient.TransportRequest) (*crudclient.TransportResponse, error) {
				if attempt.Add(1) == 1 {
					return jsonResponse(503, `{}`), nil
				}
				return jsonResponse(200, `{}`), nil
			}
			exec := newTestExecutor(transport)

			_, err := exec.Do(ctx, crudclient.RequestDescriptor[any]{URL: "/a", RetryCount: 2})
			Expect(err).NotTo(HaveOccurred())
			_, err = exec.Do(ctx, crudclient.RequestDescriptor[any]{URL: "/a", RetryCount: 2})
			Expect(err).NotTo(HaveOccurred())

			requests := transport.getRequests()
			Expect(requests).To(HaveLen(3))
			first := requests[0].Headers.Get(crudclient.DefaultTransactionHeader)
			Expect(first).NotTo(BeEmpty())
			Expect(requests[1].Headers.Get(crudclient.DefaultTransactionHeader)).To(Equal(first))
			Expect(requests[2].Headers.Get(crudclient.DefaultTransactionHeader)).NotTo(Equal(first))
		})

		It("merges query values keeping their order", func() {
			transport.executeFunc = func(ctx context.Context, req *crudclient.TransportRequest) (*crudclient.TransportResponse, error) {
				return jsonResponse(200, `{}`), nil
			}
			exec := newTestExecutor(transport)

			params := crudclient.PaginationParams{
				Page: 1,
				Size: 20,
				Sort: []crudclient.SortDirective{
					{Field: "votes", Direction: crudclient.Descending},
					{Field: "title", Direction: crudclient.Ascending},
				},
			}
			_, err := exec.Do(ctx, crudclient.RequestDescriptor[any]{URL: "/ideas?lang=en", Query: params.Query()})
			Expect(err).NotTo(HaveOccurred())

			Expect(transport.getRequests()[0].URL).To(Equal(
				"https://api.test/ideas?lang=en&page=1&size=20&sort=votes%2Cdesc&sort=title%2Casc"))
		})

		It("returns raw text when the response is not JSON", func() {
			transport.executeFunc = func(ctx context.Context, req *crudclient.TransportRequest) (*crudclient.TransportResponse, error) {
				return textResponse(200, "pong"), nil
			}
			exec := newTestExecutor(transport)

			text, err := crudclient.Execute(ctx, exec, crudclient.RequestDescriptor[string]{URL: "/ping"})
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("pong"))

			untyped, err := exec.Do(ctx, crudclient.RequestDescriptor[any]{URL: "/ping"})
			Expect(err).NotTo(HaveOccurred())
			Expect(untyped).To(Equal("pong"))
		})

		It("returns the zero value for an empty body", func() {
			transport.executeFunc = func(ctx context.Context, req *crudclient.TransportRequest) (*crudclient.TransportResponse, error) {
				return &crudclient.TransportResponse{StatusCode: 204}, nil
			}
			exec := newTestExecutor(transport)

			resp, err := crudclient.Execute(ctx, exec, crudclient.RequestDescriptor[item]{URL: "/x", Method: http.MethodDelete})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp).To(Equal(item{}))
		})

		It("does not retry a payload that cannot be decoded", func() {
			transport.executeFunc = func(ctx context.Context, req *crudclient.TransportRequest) (*crudclient.TransportResponse, error) {
				return jsonResponse(200, `{"id":`), nil
			}
			exec := newTestExecutor(transport)

			_, err := crudclient.Execute(ctx, exec, crudclient.RequestDescriptor[item]{URL: "/x", RetryCount: 3})
			Expect(err).To(MatchError(crudclient.ErrInvalidResponse))
			Expect(transport.getCallCount()).To(Equal(1))
		})
	})

	Describe("retries", func() {
		It("resolves after a 503 followed by a 200 without consulting the fallback", func() {
			var attempt atomic.Int32
			transport.executeFunc = func(ctx context.Context, req *crudclient.TransportRequest) (*crudclient.TransportResponse, error) {
				if attempt.Add(1) == 1 {
					return jsonResponse(503, `{"message":"busy"}`), nil
				}
				return jsonResponse(200, `{"a":1}`), nil
			}
			exec := newTestExecutor(transport, crudclient.WithFallbackEnabled(true))

			fallbackCalled := false
			resp, err := crudclient.Execute(ctx, exec, crudclient.RequestDescriptor[map[string]int]{
				URL:        "/things",
				RetryCount: 3,
				Fallback: func(context.Context) (map[string]int, error) {
					fallbackCalled = true
					return nil, nil
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp).To(Equal(map[string]int{"a": 1}))
			Expect(fallbackCalled).To(BeFalse())
			Expect(transport.getCallCount()).To(Equal(2))

			stats := exec.GetStats()
			Expect(stats.TotalRetries).To(Equal(int64(1)))
			Expect(stats.TotalFallbacks).To(Equal(int64(0)))
		})

		DescribeTable("makes retryCount+1 attempts against a failing server",
			func(retryCount int) {
				transport.executeFunc = func(ctx context.Context, req *crudclient.TransportRequest) (*crudclient.TransportResponse, error) {
					return jsonResponse(502, `{"code":"UPSTREAM"}`), nil
				}
				exec := newTestExecutor(transport)

				_, err := exec.Do(ctx, crudclient.RequestDescriptor[any]{URL: "/x", RetryCount: retryCount})
				Expect(transport.getCallCount()).To(Equal(retryCount + 1))

				var nerr *crudclient.NormalizedError
				Expect(errors.As(err, &nerr)).To(BeTrue())
				Expect(nerr.Status).To(Equal(500))
				Expect(nerr.IsNetworkError).To(BeTrue())
				Expect(nerr.Attempts).To(Equal(retryCount + 1))
				Expect(err).To(MatchError(crudclient.ErrNetwork))
				Expect(err).To(MatchError(crudclient.ErrServer))
			},
			Entry("no retries", 0),
			Entry("one retry", 1),
			Entry("three retries", 3),
			Entry("five retries", 5),
		)

		It("treats a negative retry count as a single attempt", func() {
			transport.executeFunc = func(ctx context.Context, req *crudclient.TransportRequest) (*crudclient.TransportResponse, error) {
				return jsonResponse(500, `{}`), nil
			}
			exec := newTestExecutor(transport)

			_, err := exec.Do(ctx, crudclient.RequestDescriptor[any]{URL: "/x", RetryCount: -2})
			Expect(err).To(HaveOccurred())
			Expect(transport.getCallCount()).To(Equal(1))
		})

		It("converts transport failures into network errors", func() {
			transport.executeFunc = func(ctx context.Context, req *crudclient.TransportRequest) (*crudclient.TransportResponse, error) {
				return nil, errors.New("connection refused")
			}
			exec := newTestExecutor(transport)

			_, err := exec.Do(ctx, crudclient.RequestDescriptor[any]{URL: "/x", RetryCount: 2})
			Expect(transport.getCallCount()).To(Equal(3))

			var nerr *crudclient.NormalizedError
			Expect(errors.As(err, &nerr)).To(BeTrue())
			Expect(nerr.Status).To(Equal(500))
			Expect(nerr.IsNetworkError).To(BeTrue())
			Expect(nerr.Code).To(Equal(crudclient.CodeNetwork))
			Expect(nerr.Message).To(ContainSubstring("connection refused"))
		})

		It("reports timeouts as 504 without the network flag after every attempt expires", func() {
			transport.executeFunc = func(ctx context.Context, req *crudclient.TransportRequest) (*crudclient.TransportResponse, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			exec := newTestExecutor(transport, crudclient.WithTimeout(20*time.Millisecond))

			_, err := exec.Do(ctx, crudclient.RequestDescriptor[any]{URL: "/slow", RetryCount: 3})
			Expect(transport.getCallCount()).To(Equal(4))

			var nerr *crudclient.NormalizedError
			Expect(errors.As(err, &nerr)).To(BeTrue())
			Expect(nerr.Status).To(Equal(504))
			Expect(nerr.IsNetworkError).To(BeFalse())
			Expect(nerr.Code).To(Equal(crudclient.CodeTimeout))
			Expect(crudclient.IsTimeout(err)).To(BeTrue())
		})

		It("never arms the timer when the timeout is disabled", func() {
			transport.executeFunc = func(ctx context.Context, req *crudclient.TransportRequest) (*crudclient.TransportResponse, error) {
				_, hasDeadline := ctx.Deadline()
				return jsonResponse(200, `{"deadline":`+strconv.FormatBool(hasDeadline)+`}`), nil
			}
			exec := newTestExecutor(transport, crudclient.WithTimeout(0))

			resp, err := crudclient.Execute(context.Background(), exec, crudclient.RequestDescriptor[map[string]bool]{URL: "/x"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp["deadline"]).To(BeFalse())
		})
	})

	Describe("client errors", func() {
		DescribeTable("fails after exactly one attempt and keeps the status and payload fields",
			func(retryCount int) {
				transport.executeFunc = func(ctx context.Context, req *crudclient.TransportRequest) (*crudclient.TransportResponse, error) {
					return jsonResponse(422, `{"message":"title is required","code":"VALIDATION","userMessage":"Please add a title.","field":"title"}`), nil
				}
				exec := newTestExecutor(transport, crudclient.WithFallbackEnabled(true))

				fallbackCalled := false
				_, err := crudclient.Execute(ctx, exec, crudclient.RequestDescriptor[item]{
					URL:        "/ideas",
					Method:     http.MethodPost,
					RetryCount: retryCount,
					Fallback: func(context.Context) (item, error) {
						fallbackCalled = true
						return item{}, nil
					},
				})
				Expect(transport.getCallCount()).To(Equal(1))
				Expect(fallbackCalled).To(BeFalse())

				var nerr *crudclient.NormalizedError
				Expect(errors.As(err, &nerr)).To(BeTrue())
				Expect(nerr.Status).To(Equal(422))
				Expect(nerr.Message).To(Equal("title is required"))
				Expect(nerr.Code).To(Equal("VALIDATION"))
				Expect(nerr.UserMessage).To(Equal("Please add a title."))
				Expect(nerr.IsNetworkError).To(BeFalse())
				Expect(nerr.Data).To(HaveKeyWithValue("field", "title"))
				Expect(err).To(MatchError(crudclient.ErrClient))
			},
			Entry("no retries", 0),
			Entry("one retry", 1),
			Entry("three retries", 3),
			Entry("five retries", 5),
		)

		It("applies the default fields when the payload omits them", func() {
			transport.executeFunc = func(ctx context.Context, req *crudclient.TransportRequest) (*crudclient.TransportResponse, error) {
				return &crudclient.TransportResponse{
					StatusCode: 404,
					Status:     "404 Not Found",
					Headers:    http.Header{"Content-Type": []string{"text/html"}},
					Body:       []byte("<h1>nope</h1>"),
				}, nil
			}
			exec := newTestExecutor(transport)

			_, err := exec.Do(ctx, crudclient.RequestDescriptor[any]{URL: "/missing", RetryCount: 3})
			Expect(transport.getCallCount()).To(Equal(1))

			var nerr *crudclient.NormalizedError
			Expect(errors.As(err, &nerr)).To(BeTrue())
			Expect(nerr.Status).To(Equal(404))
			Expect(nerr.Message).To(Equal("API Error: Not Found"))
			Expect(nerr.Code).To(Equal(crudclient.DefaultErrorCode))
			Expect(nerr.UserMessage).To(Equal(crudclient.DefaultUserMessage))
			Expect(nerr.Data).To(Equal("<h1>nope</h1>"))
		})
	})

	Describe("fallback", func() {
		var failing func(ctx context.Context, req *crudclient.TransportRequest) (*crudclient.TransportResponse, error)

		BeforeEach(func() {
			failing = func(ctx context.Context, req *crudclient.TransportRequest) (*crudclient.TransportResponse, error) {
				return jsonResponse(503, `{}`), nil
			}
		})

		It("serves the fallback result once every attempt has failed", func() {
			transport.executeFunc = failing
			exec := newTestExecutor(transport, crudclient.WithFallbackEnabled(true))

			resp, err := crudclient.Execute(ctx, exec, crudclient.RequestDescriptor[string]{
				URL:        "/x",
				RetryCount: 2,
				Fallback: func(context.Context) (string, error) {
					return "local", nil
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp).To(Equal("local"))
			Expect(transport.getCallCount()).To(Equal(3))
			Expect(exec.GetStats().TotalFallbacks).To(Equal(int64(1)))
		})

		It("ignores the fallback when fallback mode is disabled", func() {
			transport.executeFunc = failing
			exec := newTestExecutor(transport)

			_, err := crudclient.Execute(ctx, exec, crudclient.RequestDescriptor[string]{
				URL:        "/x",
				RetryCount: 1,
				Fallback: func(context.Context) (string, error) {
					return "local", nil
				},
			})
			Expect(err).To(MatchError(crudclient.ErrNetwork))
		})

		It("propagates the fallback's own error unchanged", func() {
			transport.executeFunc = failing
			exec := newTestExecutor(transport, crudclient.WithFallbackEnabled(true))
			notFound := crudclient.NewFallbackNotFoundError("X-9")

			_, err := crudclient.Execute(ctx, exec, crudclient.RequestDescriptor[string]{
				URL: "/x",
				Fallback: func(context.Context) (string, error) {
					return "", notFound
				},
			})
			Expect(err).To(BeIdenticalTo(notFound))
			Expect(err).To(MatchError(crudclient.ErrFallbackNotFound))
		})
	})

	Describe("cancellation", func() {
		It("stops without retrying when the caller cancels", func() {
			callCtx, callCancel := context.WithCancel(ctx)
			transport.executeFunc = func(ctx context.Context, req *crudclient.TransportRequest) (*crudclient.TransportResponse, error) {
				callCancel()
				<-ctx.Done()
				return nil, ctx.Err()
			}
			exec := newTestExecutor(transport, crudclient.WithFallbackEnabled(true))

			_, err := crudclient.Execute(callCtx, exec, crudclient.RequestDescriptor[string]{
				URL:        "/x",
				RetryCount: 3,
				Fallback: func(context.Context) (string, error) {
					return "local", nil
				},
			})
			Expect(err).To(MatchError(crudclient.ErrCanceled))
			Expect(transport.getCallCount()).To(Equal(1))

			var nerr *crudclient.NormalizedError
			Expect(errors.As(err, &nerr)).To(BeTrue())
			Expect(nerr.Status).To(Equal(crudclient.StatusClientClosedRequest))
		})

		It("makes no attempt when the context is already done", func() {
			done, doneCancel := context.WithCancel(ctx)
			doneCancel()
			transport.executeFunc = func(ctx context.Context, req *crudclient.TransportRequest) (*crudclient.TransportResponse, error) {
				return jsonResponse(200, `{}`), nil
			}
			exec := newTestExecutor(transport)

			_, err := exec.Do(done, crudclient.RequestDescriptor[any]{URL: "/x"})
			Expect(err).To(MatchError(crudclient.ErrCanceled))
			Expect(transport.getCallCount()).To(Equal(0))
		})
	})

	Describe("Health", func() {
		It("reports ok without a circuit breaker", func() {
			transport.executeFunc = func(ctx context.Context, req *crudclient.TransportRequest) (*crudclient.TransportResponse, error) {
				return jsonResponse(200, `{}`), nil
			}
			exec := newTestExecutor(transport)
			_, err := exec.Do(ctx, crudclient.RequestDescriptor[any]{URL: "/x"})
			Expect(err).NotTo(HaveOccurred())

			health := exec.Health()
			Expect(health.Healthy).To(BeTrue())
			Expect(health.Status).To(Equal("ok"))
			Expect(health.Breaker).To(BeNil())
			Expect(health.TotalAttempts).To(Equal(int64(1)))
			Expect(health.LastAttempt).NotTo(BeEmpty())
		})
	})
})
