package lifecycle_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/akoutsou/pipegate/internal/lifecycle"
)

var _ = Describe("Controller", func() {
	It("should start in the runnable phase", func() {
		Expect(lifecycle.NewController().IsRunAllowed()).To(BeTrue())
	})

	It("should refuse work after BeginShutdown", func() {
		control := lifecycle.NewController()
		control.BeginShutdown()
		Expect(control.IsRunAllowed()).To(BeFalse())
	})

	It("should tolerate repeated BeginShutdown calls", func() {
		control := lifecycle.NewController()
		control.BeginShutdown()
		control.BeginShutdown()
		Expect(control.IsRunAllowed()).To(BeFalse())
	})

	It("should be safe to query concurrently with shutdown", func() {
		control := lifecycle.NewController()

		var wg sync.WaitGroup
		wg.Add(50)
		for i := 0; i < 50; i++ {
			go func() {
				defer wg.Done()
				_ = control.IsRunAllowed()
			}()
		}
		control.BeginShutdown()
		wg.Wait()

		Expect(control.IsRunAllowed()).To(BeFalse())
	})
})

var _ = Describe("GateFunc", func() {
	It("should adapt a function to the Gate interface", func() {
		allowed := true
		gate := lifecycle.GateFunc(func() bool { return allowed })

		Expect(gate.IsRunAllowed()).To(BeTrue())
		allowed = false
		Expect(gate.IsRunAllowed()).To(BeFalse())
	})
})
