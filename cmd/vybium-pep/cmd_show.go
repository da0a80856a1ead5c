package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	vybiumpep "github.com/vybium/vybium-pep/pkg/vybium-pep"
)

func showResult(cmd *cobra.Command, args []string) error {
	return executeShow(cmd.OutOrStdout(), args, storePath, jsonOutput)
}

func executeShow(out io.Writer, args []string, dir string, asJSON bool) error {
	if dir == "" {
		return errors.New("--store is required")
	}
	archive, err := vybiumpep.OpenArchive(dir, nil)
	if err != nil {
		return err
	}
	defer archive.Close()

	if len(args) == 0 {
		recs, err := archive.List()
		if err != nil {
			return err
		}
		for _, rec := range recs {
			fmt.Fprintf(out, "%s  %-10s %.9g  %s\n", rec.Digest, rec.Status, rec.Bound, rec.SolvedAt.Format(time.RFC3339))
		}
		return nil
	}

	rec, err := archive.Get(args[0])
	if err != nil {
		return err
	}
	if asJSON {
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		_, err = fmt.Fprintf(out, "%s\n", data)
		return err
	}
	printRecord(out, rec)
	return nil
}

func printRecord(out io.Writer, rec *vybiumpep.Record) {
	fmt.Fprintf(out, "digest:      %s\n", rec.Digest)
	fmt.Fprintf(out, "problem:     %s\n", rec.ProblemID)
	fmt.Fprintf(out, "solved at:   %s\n", rec.SolvedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "status:      %s (solver: %s)\n", rec.Status, rec.SolverStatus)
	if rec.Reason != "" {
		fmt.Fprintf(out, "reason:      %s\n", rec.Reason)
	}
	fmt.Fprintf(out, "bound:       %.9g\n", rec.Bound)
	fmt.Fprintf(out, "dual bound:  %.9g\n", rec.DualBound)
	fmt.Fprintf(out, "rank:        %d\n", rec.Rank)
	fmt.Fprintf(out, "iterations:  %d\n", rec.Iterations)
	fmt.Fprintf(out, "proof:       verified=%t\n", rec.Verified)
	if rec.Commitment != "" {
		fmt.Fprintf(out, "commitment:  %s\n", rec.Commitment)
	}
	for _, w := range rec.Weights {
		fmt.Fprintf(out, "  weight %-40s %.6g\n", w.Name, w.Value)
	}
	for _, w := range rec.Warnings {
		fmt.Fprintf(out, "warning:     %s\n", w)
	}
}
