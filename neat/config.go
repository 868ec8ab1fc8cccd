package neat

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/baldhumanity/neat4go/neat/nn"
)

// ErrInvalidConfig is returned when a configuration value is out of range or
// when a resize request cannot be honoured.
var ErrInvalidConfig = errors.New("invalid config")

// Config stores the configuration parameters for the NEAT algorithm.
// Each field maps to one INI section; YAML and TOML files use the same
// section names as top-level keys.
type Config struct {
	Neat         NeatConfig         `yaml:"NEAT" toml:"NEAT"`
	Genome       GenomeConfig       `yaml:"DefaultGenome" toml:"DefaultGenome"`
	Mutation     MutationConfig     `yaml:"DefaultMutation" toml:"DefaultMutation"`
	SpeciesSet   SpeciesSetConfig   `yaml:"DefaultSpeciesSet" toml:"DefaultSpeciesSet"`
	Reproduction ReproductionConfig `yaml:"DefaultReproduction" toml:"DefaultReproduction"`
	Stagnation   StagnationConfig   `yaml:"DefaultStagnation" toml:"DefaultStagnation"`
}

// NeatConfig holds population-wide parameters.
type NeatConfig struct {
	PopSize int   `ini:"pop_size" yaml:"pop_size" toml:"pop_size"`
	Seed    int64 `ini:"seed" yaml:"seed" toml:"seed"` // 0 seeds from the clock
}

// GenomeConfig holds parameters specific to the structure of genomes and the
// genetic distance between them.
type GenomeConfig struct {
	NumInputs      int     `ini:"num_inputs" yaml:"num_inputs" toml:"num_inputs"`
	NumOutputs     int     `ini:"num_outputs" yaml:"num_outputs" toml:"num_outputs"`
	UseBiasNode    bool    `ini:"use_bias_node" yaml:"use_bias_node" toml:"use_bias_node"`
	FullNetwork    bool    `ini:"full_network" yaml:"full_network" toml:"full_network"`
	WeightMinValue float64 `ini:"weight_min_value" yaml:"weight_min_value" toml:"weight_min_value"`
	WeightMaxValue float64 `ini:"weight_max_value" yaml:"weight_max_value" toml:"weight_max_value"`
	Activation     string  `ini:"activation" yaml:"activation" toml:"activation"`

	CompatibilityDisjointCoefficient float64 `ini:"compatibility_disjoint_coefficient" yaml:"compatibility_disjoint_coefficient" toml:"compatibility_disjoint_coefficient"`
	CompatibilityExcessCoefficient   float64 `ini:"compatibility_excess_coefficient" yaml:"compatibility_excess_coefficient" toml:"compatibility_excess_coefficient"`
	CompatibilityWeightCoefficient   float64 `ini:"compatibility_weight_coefficient" yaml:"compatibility_weight_coefficient" toml:"compatibility_weight_coefficient"`
}

// MutationConfig holds the trigger chances and strengths of the mutation
// operators.
type MutationConfig struct {
	ConnAddProb          float64 `ini:"conn_add_prob" yaml:"conn_add_prob" toml:"conn_add_prob"`
	NodeAddProb          float64 `ini:"node_add_prob" yaml:"node_add_prob" toml:"node_add_prob"`
	WeightMutateRate     float64 `ini:"weight_mutate_rate" yaml:"weight_mutate_rate" toml:"weight_mutate_rate"`
	WeightShiftRate      float64 `ini:"weight_shift_rate" yaml:"weight_shift_rate" toml:"weight_shift_rate"`
	WeightShiftPower     float64 `ini:"weight_shift_power" yaml:"weight_shift_power" toml:"weight_shift_power"`
	WeightRandomizePower float64 `ini:"weight_randomize_power" yaml:"weight_randomize_power" toml:"weight_randomize_power"`
	ToggleEnabled        bool    `ini:"toggle_enabled" yaml:"toggle_enabled" toml:"toggle_enabled"`
	ToggleRate           float64 `ini:"toggle_rate" yaml:"toggle_rate" toml:"toggle_rate"`
	ToggleConnectionRate float64 `ini:"toggle_connection_rate" yaml:"toggle_connection_rate" toml:"toggle_connection_rate"`
}

// SpeciesSetConfig holds parameters related to speciation.
type SpeciesSetConfig struct {
	CompatibilityThreshold float64 `ini:"compatibility_threshold" yaml:"compatibility_threshold" toml:"compatibility_threshold"`
	TargetSpeciesCount     int     `ini:"target_species_count" yaml:"target_species_count" toml:"target_species_count"`
	ThresholdMaxMultiplier float64 `ini:"threshold_max_multiplier" yaml:"threshold_max_multiplier" toml:"threshold_max_multiplier"`
}

// ReproductionConfig holds parameters related to reproduction.
type ReproductionConfig struct {
	KillPercentage         float64 `ini:"kill_percentage" yaml:"kill_percentage" toml:"kill_percentage"`
	SpeciesGracePeriod     int     `ini:"species_grace_period" yaml:"species_grace_period" toml:"species_grace_period"`
	InterspeciesMatingRate float64 `ini:"interspecies_mating_rate" yaml:"interspecies_mating_rate" toml:"interspecies_mating_rate"`
}

// StagnationConfig holds parameters related to species stagnation.
type StagnationConfig struct {
	MaxStagnation int `ini:"max_stagnation" yaml:"max_stagnation" toml:"max_stagnation"`
}

// DefaultConfig returns the parameters a population uses when a config file
// leaves an option out.
func DefaultConfig() *Config {
	return &Config{
		Neat: NeatConfig{
			PopSize: 150,
		},
		Genome: GenomeConfig{
			NumInputs:                        2,
			NumOutputs:                       1,
			UseBiasNode:                      true,
			FullNetwork:                      true,
			WeightMinValue:                   -30,
			WeightMaxValue:                   30,
			Activation:                       "sigmoid",
			CompatibilityDisjointCoefficient: 1.0,
			CompatibilityExcessCoefficient:   1.0,
			CompatibilityWeightCoefficient:   0.4,
		},
		Mutation: MutationConfig{
			ConnAddProb:          0.05,
			NodeAddProb:          0.03,
			WeightMutateRate:     0.8,
			WeightShiftRate:      0.9,
			WeightShiftPower:     0.15,
			WeightRandomizePower: 1.0,
			ToggleEnabled:        false,
			ToggleRate:           0.01,
			ToggleConnectionRate: 0.1,
		},
		SpeciesSet: SpeciesSetConfig{
			CompatibilityThreshold: 3.0,
			TargetSpeciesCount:     10,
			ThresholdMaxMultiplier: 2.0,
		},
		Reproduction: ReproductionConfig{
			KillPercentage:         0.75,
			SpeciesGracePeriod:     1,
			InterspeciesMatingRate: 0.001,
		},
		Stagnation: StagnationConfig{
			MaxStagnation: 15,
		},
	}
}

// LoadConfig loads configuration parameters from a file on top of
// DefaultConfig. Files ending in .yaml/.yml are read as YAML, .toml as TOML
// and anything else as INI.
func LoadConfig(filePath string) (*Config, error) {
	config := DefaultConfig()

	var err error
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		err = loadYAML(filePath, config)
	case ".toml":
		err = loadTOML(filePath, config)
	default:
		err = loadINI(filePath, config)
	}
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func loadINI(filePath string, config *Config) error {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		SpaceBeforeInlineComment: true, // "a#b" stays a value, "a #b" is a comment
	}, filePath)
	if err != nil {
		return fmt.Errorf("failed to load config file '%s': %w", filePath, err)
	}

	// Keys missing from a section keep their default value.
	sections := []struct {
		name   string
		target any
	}{
		{"NEAT", &config.Neat},
		{"DefaultGenome", &config.Genome},
		{"DefaultMutation", &config.Mutation},
		{"DefaultSpeciesSet", &config.SpeciesSet},
		{"DefaultReproduction", &config.Reproduction},
		{"DefaultStagnation", &config.Stagnation},
	}
	for _, s := range sections {
		if err := cfg.Section(s.name).MapTo(s.target); err != nil {
			return fmt.Errorf("failed to map [%s] section: %w", s.name, err)
		}
	}
	config.Genome.Activation = strings.TrimSpace(config.Genome.Activation)
	return nil
}

func loadYAML(filePath string, config *Config) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open config file '%s': %w", filePath, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode yaml config '%s': %w", filePath, err)
	}
	return nil
}

func loadTOML(filePath string, config *Config) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open config file '%s': %w", filePath, err)
	}
	defer f.Close()

	md, err := toml.NewDecoder(f).Decode(config)
	if err != nil {
		return fmt.Errorf("failed to decode toml config '%s': %w", filePath, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%w: unknown key %q in '%s'", ErrInvalidConfig, undecoded[0].String(), filePath)
	}
	return nil
}

// Validate reports the first out-of-range parameter, wrapped in
// ErrInvalidConfig.
func (c *Config) Validate() error {
	probabilities := []struct {
		name  string
		value float64
	}{
		{"conn_add_prob", c.Mutation.ConnAddProb},
		{"node_add_prob", c.Mutation.NodeAddProb},
		{"weight_mutate_rate", c.Mutation.WeightMutateRate},
		{"weight_shift_rate", c.Mutation.WeightShiftRate},
		{"toggle_rate", c.Mutation.ToggleRate},
		{"toggle_connection_rate", c.Mutation.ToggleConnectionRate},
		{"kill_percentage", c.Reproduction.KillPercentage},
		{"interspecies_mating_rate", c.Reproduction.InterspeciesMatingRate},
	}
	for _, p := range probabilities {
		if p.value < 0 || p.value > 1 {
			return fmt.Errorf("%w: %s must be between 0 and 1", ErrInvalidConfig, p.name)
		}
	}

	switch {
	case c.Neat.PopSize <= 0:
		return fmt.Errorf("%w: pop_size must be positive", ErrInvalidConfig)
	case c.Genome.NumInputs <= 0:
		return fmt.Errorf("%w: num_inputs must be positive", ErrInvalidConfig)
	case c.Genome.NumOutputs <= 0:
		return fmt.Errorf("%w: num_outputs must be positive", ErrInvalidConfig)
	case c.Genome.WeightMaxValue < c.Genome.WeightMinValue:
		return fmt.Errorf("%w: weight_max_value cannot be less than weight_min_value", ErrInvalidConfig)
	case c.Genome.CompatibilityDisjointCoefficient < 0,
		c.Genome.CompatibilityExcessCoefficient < 0,
		c.Genome.CompatibilityWeightCoefficient < 0:
		return fmt.Errorf("%w: compatibility coefficients cannot be negative", ErrInvalidConfig)
	case c.Mutation.WeightShiftPower < 0 || c.Mutation.WeightRandomizePower < 0:
		return fmt.Errorf("%w: weight mutation powers cannot be negative", ErrInvalidConfig)
	case c.SpeciesSet.CompatibilityThreshold <= 0:
		return fmt.Errorf("%w: compatibility_threshold must be positive", ErrInvalidConfig)
	case c.SpeciesSet.TargetSpeciesCount <= 0:
		return fmt.Errorf("%w: target_species_count must be positive", ErrInvalidConfig)
	case c.SpeciesSet.ThresholdMaxMultiplier < 1:
		return fmt.Errorf("%w: threshold_max_multiplier must be at least 1", ErrInvalidConfig)
	case c.Reproduction.SpeciesGracePeriod < 0:
		return fmt.Errorf("%w: species_grace_period cannot be negative", ErrInvalidConfig)
	case c.Stagnation.MaxStagnation <= 0:
		return fmt.Errorf("%w: max_stagnation must be positive", ErrInvalidConfig)
	}

	if _, err := nn.GetActivation(c.Genome.Activation); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// InputNodeCount is the number of input nodes of every genome, including the
// bias node when one is used.
func (gc *GenomeConfig) InputNodeCount() int {
	if gc.UseBiasNode {
		return gc.NumInputs + 1
	}
	return gc.NumInputs
}

// OutputNodeCount is the number of output nodes of every genome.
func (gc *GenomeConfig) OutputNodeCount() int {
	return gc.NumOutputs
}

// NodeRole derives the role of a node from its id. Inputs come first, then
// outputs, and every id above them is a hidden node.
func (gc *GenomeConfig) NodeRole(id int) nn.Role {
	in := gc.InputNodeCount()
	switch {
	case id < in:
		return nn.RoleInput
	case id < in+gc.NumOutputs:
		return nn.RoleOutput
	default:
		return nn.RoleHidden
	}
}

// isBiasConnection reports whether a connection leaves the bias node.
func (gc *GenomeConfig) isBiasConnection(key ConnectionKey) bool {
	return gc.UseBiasNode && key.InNodeID == biasNodeID
}
