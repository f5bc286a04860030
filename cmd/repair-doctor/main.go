// repair-doctor inspects a reserved repair directory left behind by a
// repair run with PreserveClonedFilesOnFailure or BackupOriginalFiles
// set, and can install the rebuilt files it finds into a target data
// path without re-running the whole repair.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dbrepair/dbrepair/pkg/fileops"
)

func main() {
	reservedDir := flag.String("dir", "", "Reserved repair directory to inspect (required)")
	targetDir := flag.String("target-dir", "", "Data directory to install rebuilt files into")
	install := flag.Bool("install", false, "Move rebuilt (non-.bak) files from -dir into -target-dir")
	flag.Parse()

	if *reservedDir == "" {
		fmt.Println("Usage: repair-doctor -dir <reserved_path> [-install -target-dir <data_path>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	entries, err := os.ReadDir(*reservedDir)
	if err != nil {
		fmt.Printf("error: cannot read %s: %v\n", *reservedDir, err)
		os.Exit(1)
	}

	fmt.Printf("reserved repair directory: %s\n", *reservedDir)
	fmt.Println(strings.Repeat("-", 44))

	var bakFiles, rebuiltFiles []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".bak") {
			bakFiles = append(bakFiles, e.Name())
		} else {
			rebuiltFiles = append(rebuiltFiles, e.Name())
		}
	}

	fmt.Printf("original files retained (.bak): %d\n", len(bakFiles))
	for _, name := range bakFiles {
		fmt.Printf("  %s\n", name)
	}
	fmt.Printf("rebuilt files ready to install: %d\n", len(rebuiltFiles))
	for _, name := range rebuiltFiles {
		fmt.Printf("  %s\n", name)
	}

	if !*install {
		if len(rebuiltFiles) > 0 {
			fmt.Printf("\nrun with -install -target-dir <path> to install the rebuilt files\n")
		}
		return
	}

	if *targetDir == "" {
		fmt.Println("error: -install requires -target-dir")
		os.Exit(1)
	}
	if err := installFiles(*reservedDir, *targetDir, rebuiltFiles); err != nil {
		fmt.Printf("error: install failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\ninstalled %d file(s) into %s\n", len(rebuiltFiles), *targetDir)
}

// installFiles mirrors repair.Coordinator.installRebuiltFiles: move
// every rebuilt file into targetDir, falling back to copy+remove
// across filesystem boundaries.
func installFiles(reservedDir, targetDir string, rebuiltFiles []string) error {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return err
	}
	for _, name := range rebuiltFiles {
		from := filepath.Join(reservedDir, name)
		to := filepath.Join(targetDir, name)
		if _, err := fileops.RenameWithFallback(from, to); err != nil {
			return fmt.Errorf("installing %s: %w", name, err)
		}
	}
	return nil
}
