package task

import (
	"context"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/pipewatch/task-health-monitor/pkg/check"
)

func okTask(name string) *Task {
	return New(name, name, "", []check.Check{
		&stubCheck{name: "probe", result: check.NewOKResult("probe", "ok")},
	})
}

func TestRegistry_OrderPreserved(t *testing.T) {
	g := NewWithT(t)
	r := NewRegistry()
	r.Register(okTask("c"))
	r.Register(okTask("a"))
	r.Register(okTask("b"))

	g.Expect(r.Names()).To(Equal([]string{"c", "a", "b"}))

	reports := r.RunAll(context.Background())
	g.Expect(reports).To(HaveLen(3))
	g.Expect(reports[0].TaskName).To(Equal("c"))
	g.Expect(reports[1].TaskName).To(Equal("a"))
	g.Expect(reports[2].TaskName).To(Equal("b"))
}

func TestRegistry_DuplicateOverwritesSilently(t *testing.T) {
	g := NewWithT(t)
	r := NewRegistry()
	r.Register(New("docs", "First", "", nil))
	r.Register(okTask("other"))
	r.Register(New("docs", "Second", "", nil))

	g.Expect(r.Names()).To(Equal([]string{"docs", "other"}))
	g.Expect(r.Get("docs").DisplayName()).To(Equal("Second"))
}

func TestRegistry_GetUnknownReturnsNil(t *testing.T) {
	g := NewWithT(t)
	r := NewRegistry()
	g.Expect(r.Get("missing")).To(BeNil())
	g.Expect(r.RunAll(context.Background())).To(BeEmpty())
}
