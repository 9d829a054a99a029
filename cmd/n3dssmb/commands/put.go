package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:   "put <local-path> <remote-path>",
	Short: "Upload a single file to the console's microSD card",
	Args:  cobra.ExactArgs(2),
	RunE:  runPut,
}

func runPut(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	client, err := connectTarget(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer f.Close()

	n, err := client.PutFile(args[1], f)
	if err != nil {
		return fmt.Errorf("put %s: %w", args[1], err)
	}
	fmt.Printf("uploaded %d bytes to %s\n", n, args[1])
	return nil
}
