package gputelemetry

import (
	"context"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/pipewatch/task-health-monitor/pkg/check"
)

func TestParseRows(t *testing.T) {
	g := NewWithT(t)

	out := "0, NVIDIA A100, 34, 8192, 81920, 52\n1, NVIDIA A100, 99, 40960, 81920, 78\n"
	gpus := ParseRows(out)

	g.Expect(gpus).To(HaveLen(2))
	g.Expect(gpus[0].Index).To(Equal(0))
	g.Expect(gpus[0].Name).To(Equal("NVIDIA A100"))
	g.Expect(*gpus[0].Utilization).To(Equal(34))
	g.Expect(*gpus[0].MemoryUsedMB).To(Equal(8192))
	g.Expect(*gpus[0].MemoryTotalMB).To(Equal(81920))
	g.Expect(*gpus[0].Temperature).To(Equal(52))
	g.Expect(*gpus[1].Temperature).To(Equal(78))
}

func TestParseRows_UnavailableFields(t *testing.T) {
	g := NewWithT(t)

	gpus := ParseRows("0, Apple M2, [N/A], [N/A], [N/A], [N/A]\n")

	g.Expect(gpus).To(HaveLen(1))
	g.Expect(gpus[0].Name).To(Equal("Apple M2"))
	g.Expect(gpus[0].Utilization).To(BeNil())
	g.Expect(gpus[0].MemoryUsedMB).To(BeNil())
	g.Expect(gpus[0].Temperature).To(BeNil())
}

func TestParseRows_SkipsMalformedRows(t *testing.T) {
	g := NewWithT(t)

	out := "garbage line\n" +
		"x, Bad Index, 10, 1, 2, 30\n" +
		"0, Good GPU, 10, 1024, 2048, 40\n"
	gpus := ParseRows(out)

	g.Expect(gpus).To(HaveLen(1))
	g.Expect(gpus[0].Name).To(Equal("Good GPU"))
}

func TestParseRows_Empty(t *testing.T) {
	g := NewWithT(t)
	g.Expect(ParseRows("")).To(BeEmpty())
	g.Expect(ParseRows("\n\n")).To(BeEmpty())
}

func TestStatusFromTemps(t *testing.T) {
	probe := &GPUTelemetryProbe{name: "gpu", warningTemp: 80}

	temp := func(v int) []GPUStat {
		return []GPUStat{{Index: 0, Name: "dev", Temperature: &v}}
	}

	tests := []struct {
		name string
		gpus []GPUStat
		want check.Status
	}{
		{name: "well below warning", gpus: temp(52), want: check.StatusOK},
		{name: "at warning threshold", gpus: temp(80), want: check.StatusOK},
		{name: "above warning", gpus: temp(85), want: check.StatusWarning},
		{name: "at critical threshold", gpus: temp(90), want: check.StatusWarning},
		{name: "above critical", gpus: temp(91), want: check.StatusCritical},
		{name: "no temperature reading", gpus: []GPUStat{{Index: 0, Name: "dev"}}, want: check.StatusOK},
		{
			name: "hottest device wins",
			gpus: append(temp(52), temp(91)...),
			want: check.StatusCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			g.Expect(probe.statusFromTemps(tt.gpus)).To(Equal(tt.want))
		})
	}
}

func TestFormatLines(t *testing.T) {
	g := NewWithT(t)

	util, used, total, temp := 34, 8192, 81920, 52
	full := GPUStat{Index: 0, Name: "NVIDIA A100", Utilization: &util, MemoryUsedMB: &used, MemoryTotalMB: &total, Temperature: &temp}
	bare := GPUStat{Index: 1, Name: "Apple M2"}

	lines := formatLines([]GPUStat{full, bare})

	g.Expect(lines).To(ContainSubstring("GPU0: 34% | 8192/81920MB (10%) | 52°C"))
	g.Expect(lines).To(ContainSubstring("GPU1: util N/A | mem N/A | temp N/A"))
}

func TestRun_ToolMissing(t *testing.T) {
	g := NewWithT(t)

	probe := &GPUTelemetryProbe{name: "gpu", warningTemp: 80, tool: "definitely-not-a-real-tool-xyz"}
	result, err := probe.Run(context.Background())

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(result.Status).To(Equal(check.StatusUnknown))
	g.Expect(result.Message).To(ContainSubstring("not found"))
}
