package config

import (
	"fmt"

	"github.com/ghodss/yaml"
)

// Unset marks integer options the engine should default.
const Unset = -1

// Parameters obtained from the YAML input file. A zero Tolerance and Unset
// integers mean "engine picks default"; Dt is used as given.
type Parameters struct {
	Title         string    `yaml:"Title"`
	PDE           string    `yaml:"PDE"`
	Degree        int       `yaml:"Degree"`
	Levels        []int     `yaml:"Levels"`
	MaxLevel      int       `yaml:"MaxLevel"`
	UseFullGrid   bool      `yaml:"UseFullGrid"`
	NumTimeSteps  int       `yaml:"NumTimeSteps"`
	Dt            float64   `yaml:"Dt"`
	Solver        string    `yaml:"Solver"`
	Restart       int       `yaml:"Restart"`
	MaxIterations int       `yaml:"MaxIterations"`
	Tolerance     float64   `yaml:"Tolerance"`
	Domain        []float64 `yaml:"Domain"`
}

// NewParameters carries the unset sentinels so that absent YAML keys read
// as "engine default".
func NewParameters() *Parameters {
	return &Parameters{
		Degree:        2,
		MaxLevel:      Unset,
		NumTimeSteps:  Unset,
		Restart:       Unset,
		MaxIterations: Unset,
		Solver:        "gmres",
	}
}

func (p *Parameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, p); err != nil {
		return err
	}
	return p.Validate()
}

// Validate applies the engine preconditions before any solve begins.
func (p *Parameters) Validate() error {
	if p.Degree < 1 || p.Degree > 10 {
		return fmt.Errorf("degree %d outside the supported range 1..10", p.Degree)
	}
	if len(p.Levels) > 6 {
		return fmt.Errorf("%d dimensions requested, at most 6 supported", len(p.Levels))
	}
	for d, l := range p.Levels {
		if l < 0 {
			return fmt.Errorf("negative refinement level %d in dimension %d", l, d)
		}
		if p.MaxLevel != Unset && l > p.MaxLevel {
			return fmt.Errorf("level %d in dimension %d exceeds max level %d", l, d, p.MaxLevel)
		}
	}
	if p.NumTimeSteps != Unset && p.NumTimeSteps < 0 {
		return fmt.Errorf("negative number of time steps %d", p.NumTimeSteps)
	}
	if p.Dt < 0 {
		return fmt.Errorf("negative time step %g", p.Dt)
	}
	if p.Restart != Unset && p.Restart <= 0 {
		return fmt.Errorf("number of inner iterations %d must be positive", p.Restart)
	}
	if p.MaxIterations != Unset && p.MaxIterations <= 0 {
		return fmt.Errorf("iteration budget %d must be positive", p.MaxIterations)
	}
	switch p.Solver {
	case "", "gmres", "bicgstab":
	default:
		return fmt.Errorf("unknown solver %q", p.Solver)
	}
	return nil
}

func (p *Parameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", p.Title)
	fmt.Printf("[%s]\t\t\t= PDE\n", p.PDE)
	fmt.Printf("[%d]\t\t\t\t= Degree\n", p.Degree)
	fmt.Printf("%v\t\t\t= Levels\n", p.Levels)
	fmt.Printf("[%v]\t\t\t= UseFullGrid\n", p.UseFullGrid)
	fmt.Printf("%8.5g\t\t= Dt\n", p.Dt)
	fmt.Printf("[%d]\t\t\t\t= NumTimeSteps\n", p.NumTimeSteps)
	fmt.Printf("[%s]\t\t\t= Solver\n", p.Solver)
}
