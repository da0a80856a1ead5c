package main

import (
	"fmt"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	vybiumpep "github.com/vybium/vybium-pep/pkg/vybium-pep"
)

func listMethods(cmd *cobra.Command, _ []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, name := range vybiumpep.MethodNames() {
		m, err := vybiumpep.LookupMethod(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", m.Name, m.Description)
		for _, p := range m.Params {
			def := "derived"
			if !math.IsNaN(p.Default) {
				def = fmt.Sprintf("%g", p.Default)
			}
			fmt.Fprintf(w, "  %s\t%s (default %s)\n", p.Name, p.Doc, def)
		}
	}
	return w.Flush()
}

func listClasses(cmd *cobra.Command, _ []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, name := range vybiumpep.ClassNames() {
		params := vybiumpep.ClassParamNames(name)
		if len(params) == 0 {
			fmt.Fprintf(w, "%s\t-\n", name)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", name, strings.Join(params, ", "))
	}
	return w.Flush()
}
