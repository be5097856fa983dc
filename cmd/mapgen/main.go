package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kjelba/bombfest/internal/arena"
	"github.com/kjelba/bombfest/pkg/arenagen"
)

var (
	outputDir string
	width     int
	height    int
	spawns    int
	density   float64
	seed      uint32
	count     int
	name      string
)

var rootCmd = &cobra.Command{
	Use:   "mapgen",
	Short: "generate arena map files",
	Run:   runGenerate,
}

func init() {
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "maps", "output directory for map files")
	rootCmd.Flags().IntVar(&width, "width", 0, "arena width (default 15)")
	rootCmd.Flags().IntVar(&height, "height", 0, "arena height (default 13)")
	rootCmd.Flags().IntVar(&spawns, "spawns", 4, "starting positions (2-4)")
	rootCmd.Flags().Float64Var(&density, "density", 0.55, "crate density (0-1)")
	rootCmd.Flags().Uint32Var(&seed, "seed", 1, "first seed")
	rootCmd.Flags().IntVar(&count, "count", 1, "number of maps to generate, seeds counting up")
	rootCmd.Flags().StringVar(&name, "name", "", "map display name (default derived from seed)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runGenerate(cmd *cobra.Command, args []string) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	failed := 0
	for i := 0; i < count; i++ {
		s := seed + uint32(i)

		source, err := arenagen.Generate(arenagen.Options{
			Width:        width,
			Height:       height,
			Spawns:       spawns,
			CrateDensity: density,
			Seed:         s,
			Name:         name,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "FAIL seed %d: %v\n", s, err)
			failed++
			continue
		}

		// round-trip through the arena parser so a bad layout never
		// lands on disk
		if _, err := arena.Parse(source, arena.Options{}); err != nil {
			fmt.Fprintf(os.Stderr, "FAIL seed %d: generated layout rejected: %v\n", s, err)
			failed++
			continue
		}

		outputPath := filepath.Join(outputDir, fmt.Sprintf("gen_%d.map", s))
		if err := os.WriteFile(outputPath, source, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "FAIL seed %d: %v\n", s, err)
			failed++
			continue
		}

		fmt.Printf("OK   %s\n", outputPath)
	}

	if failed > 0 {
		os.Exit(1)
	}
}
