// Command pffinfo is a thin consumer of pkg/pff: it opens a PFF store
// and prints a summary of its header, descriptor index, and (optionally)
// its recovered orphans. It contains no parsing logic of its own —
// spec.md §1 names pffinfo as an external tool the storage-engine core
// stays out of, and this command is exactly that: a caller of the public
// API, not part of it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-pff/internal/config"
	"github.com/deploymenttheory/go-pff/pkg/pff"
)

var (
	recoverOrphans bool
	showSubNode    bool
)

var rootCmd = &cobra.Command{
	Use:   "pffinfo [store-path]",
	Short: "Print a summary of a PST/OST/PAB store",
	Long: `pffinfo opens a Microsoft Personal Folders File (PST, OST, or PAB)
and prints its header fields, descriptor-index size, and, on request, any
descriptors recovered from unallocated space.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(args[0])
	},
}

func init() {
	rootCmd.Flags().BoolVar(&recoverOrphans, "recover", false, "scan unallocated space for orphaned descriptors")
	rootCmd.Flags().BoolVar(&showSubNode, "subnodes", false, "count sub-node entries on the root descriptor")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pffinfo: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	opts, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := pff.Open(path, opts, nil)
	if err != nil {
		return fmt.Errorf("opening %q: %w", path, err)
	}
	defer store.Close()

	fmt.Printf("store:           %s\n", path)
	fmt.Printf("dialect:         %s\n", store.Dialect())
	fmt.Printf("encryption type: %s\n", store.EncryptionType())

	descCount := 0
	it := store.Descriptors()
	for {
		_, ok, err := it.Next()
		if err != nil {
			return fmt.Errorf("walking descriptor index: %w", err)
		}
		if !ok {
			break
		}
		descCount++
	}
	fmt.Printf("descriptors:     %d\n", descCount)

	root, err := store.RootDescriptor()
	if err != nil {
		return fmt.Errorf("opening root descriptor: %w", err)
	}
	fmt.Printf("root stream:     %d bytes\n", root.Stream().Size())
	if showSubNode {
		fmt.Printf("root sub-nodes:  %d\n", len(root.SubNodeIDs()))
	}

	if recoverOrphans {
		orphans, err := store.RecoveredDescriptors()
		if err != nil {
			return fmt.Errorf("recovering orphans: %w", err)
		}
		fmt.Printf("recovered:       %d orphan descriptor(s)\n", len(orphans))
		for _, o := range orphans {
			fmt.Printf("  - synthetic id %d, data_id %d, offset %d, size %d\n",
				o.SyntheticDescriptorID, o.DataID, o.FileOffset, o.Size)
		}
	}

	return nil
}
