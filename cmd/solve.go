/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"math"
	"os"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/statmech/kronwave/config"
	"github.com/statmech/kronwave/connect"
	"github.com/statmech/kronwave/grid"
	"github.com/statmech/kronwave/interp"
	"github.com/statmech/kronwave/operators"
	"github.com/statmech/kronwave/timestep"
)

// SolveCmd represents the solve command
var SolveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Advance the anisotropic decay model on a sparse grid",
	Long: `
Builds the level-limited sparse grid, assembles the per-dimension operator
terms and advances the solution with the selected time integrator,

kronwave solve -d 2 -l 5`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
			ip  = config.NewParameters()
		)
		if file, _ := cmd.Flags().GetString("inputFile"); len(file) != 0 {
			var data []byte
			if data, err = os.ReadFile(file); err != nil {
				fmt.Printf("error: %s\n", err.Error())
				os.Exit(1)
			}
			if err = ip.Parse(data); err != nil {
				fmt.Printf("error: %s\n", err.Error())
				os.Exit(1)
			}
		} else {
			dims, _ := cmd.Flags().GetInt("dims")
			level, _ := cmd.Flags().GetInt("level")
			ip.Levels = make([]int, dims)
			for d := range ip.Levels {
				ip.Levels[d] = level
			}
			ip.Degree, _ = cmd.Flags().GetInt("degree")
			ip.Dt, _ = cmd.Flags().GetFloat64("dt")
			ip.NumTimeSteps, _ = cmd.Flags().GetInt("steps")
			ip.Solver, _ = cmd.Flags().GetString("solver")
			ip.UseFullGrid, _ = cmd.Flags().GetBool("fullGrid")
			if err = ip.Validate(); err != nil {
				fmt.Printf("error: %s\n", err.Error())
				os.Exit(1)
			}
		}
		ip.Print()
		if prof, _ := cmd.Flags().GetBool("profile"); prof {
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
		}
		RunSolve(ip)
	},
}

func init() {
	rootCmd.AddCommand(SolveCmd)
	SolveCmd.Flags().StringP("inputFile", "I", "", "YAML input parameters file")
	SolveCmd.Flags().IntP("dims", "d", 2, "number of dimensions, 1..6")
	SolveCmd.Flags().IntP("level", "l", 4, "max sparse grid refinement level")
	SolveCmd.Flags().IntP("degree", "n", 2, "polynomial degree per dimension")
	SolveCmd.Flags().IntP("steps", "s", 10, "number of time steps")
	SolveCmd.Flags().Float64("dt", 1.e-3, "time step size")
	SolveCmd.Flags().String("solver", "gmres", "implicit solver: gmres or bicgstab")
	SolveCmd.Flags().Bool("fullGrid", false, "use the full tensor grid instead of the sparse one")
	SolveCmd.Flags().Bool("profile", false, "write a CPU profile for this run")
}

// RunSolve advances the anisotropic decay model problem
// du/dt = sum_d lambda_d u, a separable stand-in with one operator term
// per dimension, and reports the solver diagnostics per step.
func RunSolve(ip *config.Parameters) {
	var (
		dims     = len(ip.Levels)
		maxLevel = 0
	)
	for _, l := range ip.Levels {
		if l > maxLevel {
			maxLevel = l
		}
	}
	conn := connect.New(maxLevel, connect.Volume)
	var set *grid.IndexSet
	if ip.UseFullGrid {
		set = grid.NewFullSet(ip.Levels)
	} else {
		set = grid.NewLevelSet(dims, maxLevel)
	}
	fmt.Printf("grid: %d cells, %d unknowns\n", set.NumCells(),
		set.NumCells()*pow(ip.Degree, dims))

	var (
		n     = ip.Degree
		terms = make([]operators.Term[float64], dims)
	)
	for d := range terms {
		lambda := -1. / float64(d+1)
		vals := make([]float64, conn.NumConnections()*n*n)
		for r := 0; r < conn.NumCells(); r++ {
			off := conn.GetOffset(r, r)
			for a := 0; a < n; a++ {
				vals[off*n*n+a*n+a] = lambda
			}
		}
		term := operators.Term[float64]{Vals: make([][]float64, dims)}
		term.Vals[d] = vals
		terms[d] = term
	}
	ops, err := operators.NewKronOps(n, set, conn, terms)
	if err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}

	x := initialCondition(ip, set, conn, ops.Size())

	var (
		stepper = timestep.NewStepper(ops, ip.Dt)
		steps   = ip.NumTimeSteps
	)
	stepper.Solver = timestep.SolverKind(ip.Solver)
	stepper.Restart = ip.Restart
	stepper.MaxIter = ip.MaxIterations
	stepper.Tolerance = ip.Tolerance
	if steps == config.Unset {
		steps = 10
	}
	for i := 0; i < steps; i++ {
		info, err := stepper.ImplicitEuler(float64(i)*ip.Dt, x)
		if err != nil {
			fmt.Printf("step %d failed: %s\n", i, err.Error())
			os.Exit(1)
		}
		fmt.Printf("step %4d  residual %10.3e  iterations %d\n",
			i, float64(info.Residual), info.Iterations)
	}
	fmt.Printf("final norm: %10.6e\n", nrm2(x))
}

// initialCondition projects exp(-8|x - 1/2|^2) onto the wavelet basis via
// the interpolation engine when the degree supports it, else starts from
// the constant state.
func initialCondition(ip *config.Parameters, set *grid.IndexSet,
	conn *connect.Connect1D, size int) (x []float64) {
	x = make([]float64, size)
	if ip.Degree > 2 {
		x[0] = 1
		return
	}
	engine, err := interp.NewInterpolation[float64](ip.Degree, conn)
	if err != nil {
		x[0] = 1
		return
	}
	var (
		ds    = grid.NewDimensionSort(set)
		nodes = engine.GetNodes(set)
		dims  = set.NumDims
		vals  = make([]float64, size)
	)
	for i := 0; i < size; i++ {
		r2 := 0.0
		for d := 0; d < dims; d++ {
			dx := nodes[i*dims+d] - 0.5
			r2 += dx * dx
		}
		vals[i] = math.Exp(-8 * r2)
	}
	if err = engine.ComputeHierarchicalCoeffs(set, ds, vals); err == nil {
		err = engine.GetProjectionCoeffs(set, ds, vals, x)
	}
	if err != nil {
		x[0] = 1
	}
	return
}

func pow(base, exp int) (r int) {
	r = 1
	for i := 0; i < exp; i++ {
		r *= base
	}
	return
}

func nrm2(x []float64) (r float64) {
	for _, v := range x {
		r += v * v
	}
	return math.Sqrt(r)
}
