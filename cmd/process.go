package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hsa-ledger/internal/extract"
	"github.com/sells-group/hsa-ledger/internal/reconcile"
)

var (
	processPath    string
	processDirPath string
	processPatient string
	processDryRun  bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Extract and reconcile one document or a directory of documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if processPath == "" && processDirPath == "" {
			return eris.New("cmd: specify --file or --dir")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		paths, err := collectPaths()
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			fmt.Println("No processable documents found.")
			return nil
		}

		for _, path := range paths {
			if processDryRun {
				if err := dryRunFile(ctx, env, path); err != nil {
					return err
				}
				continue
			}

			ext, batch, err := env.processFile(ctx, path, processPatient)
			if err != nil {
				zap.L().Error("processing failed", zap.String("file", path), zap.Error(err))
				fmt.Printf("  FAIL   %s: %v\n", filepath.Base(path), err)
				continue
			}

			status := "OK"
			if ext.Confidence < cfg.Processing.AutoThreshold {
				status = "REVIEW"
			}
			fmt.Printf("  %-6s %s: %d added, %d linked, %d duplicates\n",
				status, filepath.Base(path),
				batch.Count(reconcile.OutcomeAdded),
				batch.Count(reconcile.OutcomeLinked),
				batch.Count(reconcile.OutcomeDuplicate))
		}
		return nil
	},
}

func collectPaths() ([]string, error) {
	if processPath != "" {
		return []string{processPath}, nil
	}
	entries, err := os.ReadDir(processDirPath)
	if err != nil {
		return nil, eris.Wrapf(err, "cmd: read dir %s", processDirPath)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if extract.Supported(name) || ext == ".xlsx" || ext == ".csv" {
			paths = append(paths, filepath.Join(processDirPath, name))
		}
	}
	return paths, nil
}

func dryRunFile(ctx context.Context, env *appEnv, path string) error {
	ext, err := env.extractFile(ctx, path, processPatient)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(ext, "", "  ")
	if err != nil {
		return eris.Wrap(err, "cmd: marshal extraction")
	}
	fmt.Printf("%s\n%s\n", filepath.Base(path), out)
	return nil
}

func init() {
	processCmd.Flags().StringVar(&processPath, "file", "", "document to process")
	processCmd.Flags().StringVar(&processDirPath, "dir", "", "directory of documents to process")
	processCmd.Flags().StringVar(&processPatient, "patient", "", "patient name for claims the extractor cannot attribute")
	processCmd.Flags().BoolVar(&processDryRun, "dry-run", false, "extract and print without writing to the ledger")
	rootCmd.AddCommand(processCmd)
}
