package rec

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds translation options.
type Config struct {
	// CycleMultiplier scales guest instruction counts into cycles, in
	// 8.8 fixed point. Default: 0x100 (one cycle per instruction). The
	// dispatcher may override it at runtime through HostState.
	CycleMultiplier uint32 `json:"cycle_multiplier"`

	// MaxBlockInstructions ends a block with a continuation exit once this
	// many guest instructions have been translated. Default: 128.
	MaxBlockInstructions int `json:"max_block_instructions"`

	// DirectMemAccess allows inline loads and stores through the mapped
	// guest memory window when the host reports it as mapped. Default: true.
	DirectMemAccess bool `json:"direct_mem_access"`

	// GTEMemPipelining emits LWC2/SWC2 runs through the four-entry queue
	// instead of one load-use pair at a time. Default: true.
	GTEMemPipelining bool `json:"gte_mem_pipelining"`

	// SkipMFC2Writeback omits storing the sign/zero-extended value back
	// into the GTE data register after an MFC2. Default: true.
	SkipMFC2Writeback bool `json:"skip_mfc2_writeback"`

	// HostMIPS32R2 enables EXT, INS, SEB and SEH. Default: false.
	HostMIPS32R2 bool `json:"host_mips32r2"`

	// MappedMemBase is the host address of guest physical address 0 in the
	// mapped window. Its low 29 bits must be zero. Default: 0x20000000.
	MappedMemBase uint32 `json:"mapped_mem_base"`
}

// DefaultConfig returns a Config with the default options.
func DefaultConfig() *Config {
	return &Config{
		CycleMultiplier:      0x100,
		MaxBlockInstructions: 128,
		DirectMemAccess:      true,
		GTEMemPipelining:     true,
		SkipMFC2Writeback:    true,
		HostMIPS32R2:         false,
		MappedMemBase:        0x20000000,
	}
}

// LoadConfig loads a Config from a JSON file. Missing fields keep their
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recompiler config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse recompiler config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize recompiler config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write recompiler config file: %w", err)
	}

	return nil
}

// Validate checks the option values.
func (c *Config) Validate() error {
	if c.CycleMultiplier == 0 {
		return fmt.Errorf("cycle_multiplier must be > 0")
	}
	if c.MaxBlockInstructions < 2 {
		return fmt.Errorf("max_block_instructions must be >= 2")
	}
	if c.MappedMemBase&0x1fffffff != 0 {
		return fmt.Errorf("mapped_mem_base 0x%08x must have its low 29 bits clear", c.MappedMemBase)
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
