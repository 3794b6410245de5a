package cmd

import (
	"testing"

	"github.com/statmech/kronwave/config"

	"github.com/stretchr/testify/assert"
)

func TestRunSolveSmoke(t *testing.T) {
	ip := config.NewParameters()
	ip.Levels = []int{2, 2}
	ip.Dt = 1.e-3
	ip.NumTimeSteps = 2
	assert.NoError(t, ip.Validate())
	RunSolve(ip)
}

func TestRunSolveBiCGStabFullGrid(t *testing.T) {
	ip := config.NewParameters()
	ip.Levels = []int{2}
	ip.Dt = 1.e-3
	ip.NumTimeSteps = 1
	ip.Solver = "bicgstab"
	ip.UseFullGrid = true
	assert.NoError(t, ip.Validate())
	RunSolve(ip)
}
