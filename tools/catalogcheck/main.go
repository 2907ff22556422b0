// Command catalogcheck compiles a keyword rule catalog and prints what it contains.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/lcalzada-xor/certmap/internal/core/services/keywords"
)

func main() {
	path := flag.String("rules", "", "Path to rule catalog YAML (empty checks the built-in catalog)")
	verbose := flag.Bool("verbose", false, "List every rule")
	flag.Parse()

	catalog, err := keywords.LoadCatalog(*path)
	if err != nil {
		log.Fatalf("Catalog is invalid: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "GROUP\tRULES\n")
	for _, g := range catalog.Groups() {
		fmt.Fprintf(w, "%s\t%d\n", g.Name, len(g.Rules))
		if *verbose {
			for _, r := range g.Rules {
				fmt.Fprintf(w, "  %s\t%s\n", r.Name, r.Pattern)
			}
		}
	}
	w.Flush()

	fmt.Println()
	for _, s := range catalog.Schemes() {
		fmt.Printf("header %-4s %s\n", s, strings.Join(catalog.Variants(s), ", "))
	}

	fmt.Printf("\nversion %d: %d groups, %d rules, %d header layouts\n",
		catalog.Version, len(catalog.Groups()), catalog.RuleCount(), len(catalog.Headers()))
}
