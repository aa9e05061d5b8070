package main

import (
	"fmt"
	"os"

	"fjacquet/budget-recon/cmd/categorize"
	"fjacquet/budget-recon/cmd/importcmd"
	"fjacquet/budget-recon/cmd/match"
	"fjacquet/budget-recon/cmd/project"
	"fjacquet/budget-recon/cmd/reconcilecmd"
	"fjacquet/budget-recon/cmd/recurring"
	"fjacquet/budget-recon/cmd/reportcmd"
	"fjacquet/budget-recon/cmd/root"
)

func init() {
	root.Cmd.AddCommand(recurring.Cmd)
	root.Cmd.AddCommand(importcmd.Cmd)
	root.Cmd.AddCommand(project.Cmd)
	root.Cmd.AddCommand(reconcilecmd.Cmd)
	root.Cmd.AddCommand(match.Cmd)
	root.Cmd.AddCommand(reportcmd.Cmd)
	root.Cmd.AddCommand(categorize.Cmd)
}

func main() {
	if err := root.Cmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
