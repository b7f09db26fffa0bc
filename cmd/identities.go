package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/camden-git/faceattend/config"
	"github.com/camden-git/faceattend/recognition"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "Build the gallery and list enrolled identities",
	Long: `Scans KNOWN_FACES_PATH exactly like the server does at startup and
prints each identity with the number of usable embeddings.`,
	RunE: runIdentities,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)
}

func runIdentities(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.service.Ready() {
		return recognition.ErrNotInitialized
	}
	if _, err := a.service.Reload(cmd.Context()); err != nil {
		return err
	}

	counts := a.service.ListIdentities()
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	for _, name := range names {
		fmt.Fprintf(out, "%-30s %d\n", name, counts[name])
	}
	g := a.service.Gallery()
	fmt.Fprintf(out, "\nPeople: %d\nEmbeddings: %d\n", g.Len(), g.TotalEmbeddings())
	if a.cache != nil {
		if n, err := a.cache.Count(); err == nil {
			fmt.Fprintf(out, "Cached verdicts: %d\n", n)
		}
	}
	return nil
}
