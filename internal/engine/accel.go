package engine

import (
	"os"
	"os/exec"
)

// acceleratorProbe detects whether the externally-installed accelerated
// runtime is present. Its absence is a recoverable condition handled by the
// CPU fallback, never a hard failure.
type acceleratorProbe struct {
	getenv   func(string) string
	lookPath func(string) (string, error)
}

// defaultAcceleratorProbe builds a probe using real OS dependencies.
func defaultAcceleratorProbe() acceleratorProbe {
	return acceleratorProbe{
		getenv:   os.Getenv,
		lookPath: exec.LookPath,
	}
}

// Available reports whether a CUDA runtime appears to be installed, judged
// by the CUDA_PATH environment variable or an nvidia-smi binary on PATH.
func (p acceleratorProbe) Available() bool {
	if p.getenv("CUDA_PATH") != "" {
		return true
	}
	if _, err := p.lookPath("nvidia-smi"); err == nil {
		return true
	}
	return false
}
