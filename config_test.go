// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package pixelgen

import (
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/pixelgen/grid"
	"github.com/gogpu/pixelgen/shader"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Title != "pixelgen" || cfg.Width != 1024 || cfg.Height != 768 {
		t.Errorf("DefaultConfig() = %q %dx%d, want pixelgen 1024x768", cfg.Title, cfg.Width, cfg.Height)
	}
	if cfg.IncreaseKey != gpucontext.KeyQ || cfg.DecreaseKey != gpucontext.KeyE {
		t.Errorf("keys = %v/%v, want Q/E", cfg.IncreaseKey, cfg.DecreaseKey)
	}
	if cfg.AngleStep != 0.1 {
		t.Errorf("AngleStep = %v, want 0.1", cfg.AngleStep)
	}
	if cfg.Program.Label != shader.Fill.Label {
		t.Errorf("Program = %q, want %q", cfg.Program.Label, shader.Fill.Label)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestConfigWithDoesNotMutate(t *testing.T) {
	base := DefaultConfig()
	cfg := base.WithTitle("t").WithSize(64, 32).WithAngleStep(0.5).
		WithKeys(gpucontext.KeySpace, gpucontext.KeyQ).WithProgram(shader.Direction)
	if base.Width != 1024 || base.Title != "pixelgen" {
		t.Error("With* mutated the receiver")
	}
	if cfg.Title != "t" || cfg.Width != 64 || cfg.Height != 32 || cfg.AngleStep != 0.5 ||
		cfg.IncreaseKey != gpucontext.KeySpace || cfg.Program.Label != "direction" {
		t.Errorf("With* result = %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		target error
	}{
		{"zero width", DefaultConfig().WithSize(0, 768), grid.ErrZeroExtent},
		{"negative height", DefaultConfig().WithSize(4, -2), grid.ErrZeroExtent},
		{"too wide", DefaultConfig().WithSize(grid.MaxWorkgroupsPerDimension+1, 2), grid.ErrExtentTooLarge},
		{"same keys", DefaultConfig().WithKeys(gpucontext.KeyQ, gpucontext.KeyQ), nil},
		{"zero step", DefaultConfig().WithAngleStep(0), nil},
		{"empty program", DefaultConfig().WithProgram(shader.Program{}), shader.ErrInvalidProgram},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("Validate() = %v, want %v", err, tt.target)
			}
		})
	}
}
