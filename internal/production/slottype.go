package production

import (
	"strings"

	"github.com/hfmnet/wuhistory/internal/workunit"
)

var gpuCores = map[string]bool{
	"0x11": true, "0x15": true, "0x16": true, "0x17": true, "0x18": true,
	"0x21": true, "0x22": true, "0x23": true, "0x24": true,
}

var cpuCores = map[string]bool{
	"0x78": true, "0x7a": true, "0x7b": true, "0x7c": true,
	"0xa0": true, "0xa1": true, "0xa2": true, "0xa3": true, "0xa4": true,
	"0xa5": true, "0xa6": true, "0xa7": true, "0xa8": true, "0xa9": true,
}

// SlotTypeFromCore classifies a core identifier ("0xa7", "GRO-A5",
// "OPENMMGPU") as CPU, GPU or Unknown.
func SlotTypeFromCore(core string) workunit.SlotType {
	c := strings.ToLower(strings.TrimSpace(core))
	if c == "" {
		return workunit.SlotUnknown
	}
	if gpuCores[c] {
		return workunit.SlotGPU
	}
	if cpuCores[c] {
		return workunit.SlotCPU
	}
	switch {
	case strings.HasPrefix(c, "openmm"),
		strings.HasPrefix(c, "grogpu"),
		strings.HasPrefix(c, "gro-gpu"),
		strings.HasPrefix(c, "zeta"),
		strings.Contains(c, "-dev") && (strings.HasPrefix(c, "ati") || strings.HasPrefix(c, "nvidia")):
		return workunit.SlotGPU
	case strings.HasPrefix(c, "gro"),
		strings.HasPrefix(c, "dgromacs"),
		strings.HasPrefix(c, "amber"),
		strings.HasPrefix(c, "qmd"),
		strings.HasPrefix(c, "tinker"):
		return workunit.SlotCPU
	}
	return workunit.SlotUnknown
}
