package healthcheck_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/akoutsou/pipegate/internal/healthcheck"
	"github.com/akoutsou/pipegate/internal/upstream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(GinkgoWriter, nil))
}

var _ = Describe("Watch", func() {
	var (
		healthy atomic.Bool
		server  *httptest.Server
		up      *upstream.Upstream
		ctx     context.Context
		cancel  context.CancelFunc
	)

	BeforeEach(func() {
		healthy.Store(true)

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/health" {
				http.NotFound(w, r)
				return
			}
			if healthy.Load() {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusInternalServerError)
			}
		}))

		u, err := url.Parse(server.URL)
		Expect(err).NotTo(HaveOccurred())
		up = upstream.New(u, testLogger())

		ctx, cancel = context.WithCancel(context.Background())
		go healthcheck.Watch(ctx, "orders", up, 20*time.Millisecond, testLogger(), nil)
	})

	AfterEach(func() {
		cancel()
		server.Close()
	})

	It("should keep a responsive upstream healthy", func() {
		Consistently(up.IsHealthy, 100*time.Millisecond).Should(BeTrue())
	})

	It("should mark the upstream down when the probe fails", func() {
		healthy.Store(false)
		Eventually(up.IsHealthy).Should(BeFalse())
	})

	It("should mark the upstream back up when the probe recovers", func() {
		healthy.Store(false)
		Eventually(up.IsHealthy).Should(BeFalse())

		healthy.Store(true)
		Eventually(up.IsHealthy).Should(BeTrue())
	})

	It("should mark the upstream down when it is unreachable", func() {
		server.Close()
		Eventually(up.IsHealthy).Should(BeFalse())
	})
})
