package main

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

// Aggregate builds the CLI and runs a full aggregation over results/ with
// the shipped registry and rules, storing the run in amrscope.db.
func Aggregate() error {
	mg.Deps(Build)

	cmd := exec.Command(filepath.Join(binDir, binName), "aggregate", "--store", "amrscope.db")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Validate builds the CLI and lint-checks the shipped gene registry.
func Validate() error {
	mg.Deps(Build)

	cmd := exec.Command(filepath.Join(binDir, binName), "kb", "validate")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
