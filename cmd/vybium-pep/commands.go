package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath  string
	logLevel    string
	storePath   string
	paramFlags  []string
	scenarioArg string
	showProof   bool
	proofCutoff float64
	metricsAddr string
	jsonOutput  bool

	rootCmd = &cobra.Command{
		Use:   "vybium-pep",
		Short: "Worst-case guarantees of first-order methods by performance estimation",
		Long: `vybium-pep builds the performance estimation problem of a first-order
method, solves it and reports the tight worst-case bound with its proof.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// --- Solving ---
	runCmd = &cobra.Command{
		Use:   "run [method]",
		Short: "Solve the worst case of a catalog method",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMethod, // Defined in cmd_run.go
	}

	// --- Catalogs ---
	methodsCmd = &cobra.Command{
		Use:   "methods",
		Short: "List the catalog methods and their parameters",
		Args:  cobra.NoArgs,
		RunE:  listMethods, // Defined in cmd_catalog.go
	}
	classesCmd = &cobra.Command{
		Use:   "classes",
		Short: "List the function and operator classes",
		Args:  cobra.NoArgs,
		RunE:  listClasses, // Defined in cmd_catalog.go
	}

	// --- Archive ---
	showCmd = &cobra.Command{
		Use:   "show [digest]",
		Short: "Print an archived result, or list the archive without a digest",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showResult, // Defined in cmd_show.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "result archive directory")

	runCmd.Flags().StringArrayVarP(&paramFlags, "param", "p", nil, "method parameter as name=value, repeatable")
	runCmd.Flags().StringVar(&scenarioArg, "scenario", "", "YAML scenario naming a method, its parameters and a config section")
	runCmd.Flags().BoolVar(&showProof, "proof", false, "print the certificate")
	runCmd.Flags().Float64Var(&proofCutoff, "proof-threshold", 1e-6, "smallest certificate weight printed")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")

	showCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the archived record as JSON")

	rootCmd.AddCommand(runCmd, methodsCmd, classesCmd, showCmd)
}
