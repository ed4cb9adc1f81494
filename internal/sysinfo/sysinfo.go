// Package sysinfo reports the host CPU so startup logs show which vector
// extensions the DSP kernels can use.
package sysinfo

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"

	"github.com/tphakala/audioroute/internal/logger"
)

// simdFeatures are the extensions the FFT and vector kernels dispatch on.
var simdFeatures = []struct {
	id   cpuid.FeatureID
	name string
}{
	{cpuid.SSE2, "sse2"},
	{cpuid.SSE4, "sse4.1"},
	{cpuid.AVX, "avx"},
	{cpuid.AVX2, "avx2"},
	{cpuid.FMA3, "fma3"},
	{cpuid.AVX512F, "avx512f"},
	{cpuid.ASIMD, "neon"},
}

// CPU describes the processor the engine runs on.
type CPU struct {
	BrandName     string
	Vendor        string
	PhysicalCores int
	LogicalCores  int
	CacheLineSize int
	SIMD          []string
	OS            string
	Arch          string
}

// Detect returns the CPU description of this machine.
func Detect() CPU {
	return describe(&cpuid.CPU)
}

func describe(c *cpuid.CPUInfo) CPU {
	info := CPU{
		BrandName:     c.BrandName,
		Vendor:        c.VendorString,
		PhysicalCores: c.PhysicalCores,
		LogicalCores:  c.LogicalCores,
		CacheLineSize: c.CacheLine,
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	}
	for _, f := range simdFeatures {
		if c.Supports(f.id) {
			info.SIMD = append(info.SIMD, f.name)
		}
	}
	if info.LogicalCores == 0 {
		info.LogicalCores = runtime.NumCPU()
	}
	return info
}

// HasSIMD reports whether any vector extension was detected.
func (c CPU) HasSIMD() bool { return len(c.SIMD) > 0 }

// Log writes the CPU description at info level.
func (c CPU) Log(log logger.Logger) {
	log.Info("host cpu",
		logger.String("brand", c.BrandName),
		logger.String("vendor", c.Vendor),
		logger.Int("physical_cores", c.PhysicalCores),
		logger.Int("logical_cores", c.LogicalCores),
		logger.Int("cache_line", c.CacheLineSize),
		logger.Any("simd", c.SIMD),
		logger.String("os", c.OS),
		logger.String("arch", c.Arch))
	if !c.HasSIMD() {
		log.Warn("no vector extensions detected, DSP kernels use scalar code")
	}
}
