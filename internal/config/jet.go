package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/banshee-data/jetsub/internal/cluster"
	"github.com/banshee-data/jetsub/internal/engine"
	"github.com/banshee-data/jetsub/internal/pruning"
	"github.com/banshee-data/jetsub/internal/volatility"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/jetsub.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// JetConfig is the on-disk configuration for a pruning and volatility run.
// Keys follow the analysis plugin parameter names so existing job cards can be
// reused. Omitted fields fall back to the Get* defaults.
type JetConfig struct {
	// Pruning
	PruningJetAlg  *string  `json:"pruning_jet_alg,omitempty"` // "KT", "CA" or "AK"
	PruningJetSize *float64 `json:"pruning_jet_size,omitempty"`
	ZCut           *float64 `json:"z_cut,omitempty"`
	RCutFactor     *float64 `json:"r_cut_factor,omitempty"`

	// Volatility
	ComputeVolatility *bool    `json:"compute_volatility,omitempty"`
	NTrial            *int     `json:"ntrial,omitempty"`
	Cutoff            *float64 `json:"cutoff,omitempty"`
	ExpMin            *float64 `json:"exp_min,omitempty"`
	ExpMax            *float64 `json:"exp_max,omitempty"`
	Rigidity          *float64 `json:"rigidity,omitempty"`
	Seed              *uint64  `json:"seed,omitempty"`
	Preclustering     *int     `json:"preclustering,omitempty"`
	ConvergenceWindow *int     `json:"convergence_window,omitempty"`

	Workers *int `json:"workers,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrUint64(v uint64) *uint64    { return &v }

// EmptyJetConfig returns a JetConfig with all fields set to nil.
func EmptyJetConfig() *JetConfig {
	return &JetConfig{}
}

// DefaultJetConfig returns a JetConfig with every field populated from the
// package defaults.
func DefaultJetConfig() *JetConfig {
	return &JetConfig{
		PruningJetAlg:     ptrString(cluster.CA.String()),
		PruningJetSize:    ptrFloat64(pruning.DefaultJetSize),
		ZCut:              ptrFloat64(pruning.DefaultZCut),
		RCutFactor:        ptrFloat64(pruning.DefaultRCutFactor),
		ComputeVolatility: ptrBool(false),
		NTrial:            ptrInt(volatility.DefaultTrials),
		Cutoff:            ptrFloat64(volatility.DefaultCutoff),
		ExpMin:            ptrFloat64(0),
		ExpMax:            ptrFloat64(0),
		Rigidity:          ptrFloat64(volatility.DefaultRigidity),
		Seed:              ptrUint64(volatility.DefaultSeed),
		Preclustering:     ptrInt(volatility.DefaultPreclustering),
		ConvergenceWindow: ptrInt(volatility.DefaultWindow),
		Workers:           ptrInt(0),
	}
}

// LoadJetConfig loads a JetConfig from a JSON file.
// The file must have a .json extension and be at most 1MB. Partial files are
// fine: missing keys keep their defaults.
func LoadJetConfig(path string) (*JetConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyJetConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended for
// test setup.
func MustLoadDefaultConfig() *JetConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadJetConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the fields that are set. Cross-field checks use the
// effective values, so a lone exp_min is compared against the default exp_max.
func (c *JetConfig) Validate() error {
	if c.PruningJetAlg != nil {
		if _, err := cluster.ParseAlgorithm(*c.PruningJetAlg); err != nil {
			return fmt.Errorf("pruning_jet_alg: %w", err)
		}
	}
	if c.PruningJetSize != nil && !(*c.PruningJetSize > 0) {
		return fmt.Errorf("pruning_jet_size must be positive, got %g", *c.PruningJetSize)
	}
	if c.ZCut != nil && !(*c.ZCut >= 0 && *c.ZCut <= 1) {
		return fmt.Errorf("z_cut must be between 0 and 1, got %g", *c.ZCut)
	}
	if c.RCutFactor != nil && !(*c.RCutFactor > 0) {
		return fmt.Errorf("r_cut_factor must be positive, got %g", *c.RCutFactor)
	}

	if c.NTrial != nil && *c.NTrial <= 0 {
		return fmt.Errorf("ntrial must be positive, got %d", *c.NTrial)
	}
	if c.Cutoff != nil && !(*c.Cutoff > 0 && *c.Cutoff <= 1) {
		return fmt.Errorf("cutoff must be in (0, 1], got %g", *c.Cutoff)
	}
	for name, v := range map[string]*float64{"exp_min": c.ExpMin, "exp_max": c.ExpMax} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return fmt.Errorf("%s must be finite, got %g", name, *v)
		}
	}
	if c.GetExpMin() > c.GetExpMax() {
		return fmt.Errorf("exp_min (%g) must not exceed exp_max (%g)", c.GetExpMin(), c.GetExpMax())
	}
	if c.Rigidity != nil && !(*c.Rigidity > 0) {
		return fmt.Errorf("rigidity must be positive, got %g", *c.Rigidity)
	}
	if c.Preclustering != nil && *c.Preclustering < 0 {
		return fmt.Errorf("preclustering must be non-negative, got %d", *c.Preclustering)
	}
	if c.ConvergenceWindow != nil && *c.ConvergenceWindow < 1 {
		return fmt.Errorf("convergence_window must be at least 1, got %d", *c.ConvergenceWindow)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	return nil
}

// GetPruningJetAlg returns the parsed pruning_jet_alg or CA when unset. An
// unparseable value yields cluster.UnknownAlgorithm, which every clustering
// entry point rejects.
func (c *JetConfig) GetPruningJetAlg() cluster.Algorithm {
	if c.PruningJetAlg == nil {
		return cluster.CA
	}
	alg, _ := cluster.ParseAlgorithm(*c.PruningJetAlg)
	return alg
}

// GetPruningJetSize returns the pruning_jet_size value or the default.
func (c *JetConfig) GetPruningJetSize() float64 {
	if c.PruningJetSize == nil {
		return pruning.DefaultJetSize
	}
	return *c.PruningJetSize
}

// GetZCut returns the z_cut value or the default.
func (c *JetConfig) GetZCut() float64 {
	if c.ZCut == nil {
		return pruning.DefaultZCut
	}
	return *c.ZCut
}

// GetRCutFactor returns the r_cut_factor value or the default.
func (c *JetConfig) GetRCutFactor() float64 {
	if c.RCutFactor == nil {
		return pruning.DefaultRCutFactor
	}
	return *c.RCutFactor
}

// GetComputeVolatility returns the compute_volatility value or false.
func (c *JetConfig) GetComputeVolatility() bool {
	if c.ComputeVolatility == nil {
		return false
	}
	return *c.ComputeVolatility
}

// GetNTrial returns the ntrial value or the default.
func (c *JetConfig) GetNTrial() int {
	if c.NTrial == nil {
		return volatility.DefaultTrials
	}
	return *c.NTrial
}

// GetCutoff returns the cutoff value or the default.
func (c *JetConfig) GetCutoff() float64 {
	if c.Cutoff == nil {
		return volatility.DefaultCutoff
	}
	return *c.Cutoff
}

// GetExpMin returns the exp_min value or 0.
func (c *JetConfig) GetExpMin() float64 {
	if c.ExpMin == nil {
		return 0
	}
	return *c.ExpMin
}

// GetExpMax returns the exp_max value or 0.
func (c *JetConfig) GetExpMax() float64 {
	if c.ExpMax == nil {
		return 0
	}
	return *c.ExpMax
}

// GetRigidity returns the rigidity value or the default.
func (c *JetConfig) GetRigidity() float64 {
	if c.Rigidity == nil {
		return volatility.DefaultRigidity
	}
	return *c.Rigidity
}

// GetSeed returns the seed value or the default.
func (c *JetConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return volatility.DefaultSeed
	}
	return *c.Seed
}

// GetPreclustering returns the preclustering value or the default.
func (c *JetConfig) GetPreclustering() int {
	if c.Preclustering == nil {
		return volatility.DefaultPreclustering
	}
	return *c.Preclustering
}

// GetConvergenceWindow returns the convergence_window value or the default.
func (c *JetConfig) GetConvergenceWindow() int {
	if c.ConvergenceWindow == nil {
		return volatility.DefaultWindow
	}
	return *c.ConvergenceWindow
}

// GetWorkers returns the workers value, 0 meaning GOMAXPROCS.
func (c *JetConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// PruningParams resolves the pruning section.
func (c *JetConfig) PruningParams() pruning.Params {
	return pruning.Params{
		Algorithm:  c.GetPruningJetAlg(),
		R:          c.GetPruningJetSize(),
		ZCut:       c.GetZCut(),
		RCutFactor: c.GetRCutFactor(),
	}
}

// VolatilityParams resolves the volatility section on top of PruningParams.
func (c *JetConfig) VolatilityParams() volatility.Params {
	return volatility.Params{
		Pruning:       c.PruningParams(),
		Trials:        c.GetNTrial(),
		Cutoff:        c.GetCutoff(),
		Window:        c.GetConvergenceWindow(),
		ExpMin:        c.GetExpMin(),
		ExpMax:        c.GetExpMax(),
		Rigidity:      c.GetRigidity(),
		Seed:          c.GetSeed(),
		Preclustering: c.GetPreclustering(),
		Workers:       c.GetWorkers(),
	}
}

// EngineConfig resolves the full batch configuration.
func (c *JetConfig) EngineConfig() engine.Config {
	return engine.Config{
		Pruning:           c.PruningParams(),
		Volatility:        c.VolatilityParams(),
		ComputeVolatility: c.GetComputeVolatility(),
		Workers:           c.GetWorkers(),
	}
}

// Effective returns a copy with every field set to its resolved value, for
// recording alongside stored results.
func (c *JetConfig) Effective() *JetConfig {
	alg := c.GetPruningJetAlg().String()
	if !c.GetPruningJetAlg().Valid() {
		alg = *c.PruningJetAlg
	}
	return &JetConfig{
		PruningJetAlg:     ptrString(alg),
		PruningJetSize:    ptrFloat64(c.GetPruningJetSize()),
		ZCut:              ptrFloat64(c.GetZCut()),
		RCutFactor:        ptrFloat64(c.GetRCutFactor()),
		ComputeVolatility: ptrBool(c.GetComputeVolatility()),
		NTrial:            ptrInt(c.GetNTrial()),
		Cutoff:            ptrFloat64(c.GetCutoff()),
		ExpMin:            ptrFloat64(c.GetExpMin()),
		ExpMax:            ptrFloat64(c.GetExpMax()),
		Rigidity:          ptrFloat64(c.GetRigidity()),
		Seed:              ptrUint64(c.GetSeed()),
		Preclustering:     ptrInt(c.GetPreclustering()),
		ConvergenceWindow: ptrInt(c.GetConvergenceWindow()),
		Workers:           ptrInt(c.GetWorkers()),
	}
}
