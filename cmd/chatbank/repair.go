package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"chatbank/internal/codeblock"
	"chatbank/internal/config"
	"chatbank/internal/engine"
	"chatbank/internal/logger"
)

var (
	repairErrText string
	repairWrite   bool
	repairSandbox bool
)

// repairCmd feeds a broken artifact through the restoration engineer persona.
var repairCmd = &cobra.Command{
	Use:   "repair <file>",
	Short: "Repair a broken code artifact",
	Long: `Send a code file to the repair engine and print the fixed version.
When the engine fails or returns nothing usable, the original code is kept
unchanged. Pass --error to include the runtime error that the fix should
address.`,
	Args: cobra.ExactArgs(1),
	Run:  runRepair,
}

func init() {
	repairCmd.Flags().StringVar(&repairErrText, "error", "", "Runtime error message to fix")
	repairCmd.Flags().BoolVarP(&repairWrite, "write", "w", false, "Write the repaired code back to the file")
	repairCmd.Flags().BoolVar(&repairSandbox, "sandbox", false, "Wrap the result in a standalone preview document")
}

func runRepair(cmd *cobra.Command, args []string) {
	path := args[0]
	original, err := os.ReadFile(path)
	if err != nil {
		logger.Fatal("failed to read file", "path", path, "error", err)
	}

	cfg := config.Load()
	if err := cfg.RequireCredential(); err != nil {
		logger.Fatal("repair needs a cloud credential", "error", err)
	}

	gen := engine.NewGeminiBackend(cfg.GeminiAPIKey)
	repaired := codeblock.Repair(cmd.Context(), gen, string(original), repairErrText)

	out := repaired
	if repairSandbox {
		out = codeblock.SandboxDocument(repaired)
	}

	if repairWrite {
		info, err := os.Stat(path)
		mode := os.FileMode(0644)
		if err == nil {
			mode = info.Mode()
		}
		if err := os.WriteFile(path, []byte(out), mode); err != nil {
			logger.Fatal("failed to write repaired file", "path", path, "error", err)
		}
		fmt.Printf("Repaired %s.\n", path)
		return
	}
	fmt.Print(out)
}
