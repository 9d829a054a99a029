package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <remote-path> <local-path>",
	Short: "Download a single file from the console's microSD card",
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
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

	f, err := os.Create(args[1])
	if err != nil {
		return fmt.Errorf("create %s: %w", args[1], err)
	}
	defer f.Close()

	n, err := client.GetFile(args[0], f)
	if err != nil {
		return fmt.Errorf("get %s: %w", args[0], err)
	}
	fmt.Printf("downloaded %d bytes to %s\n", n, args[1])
	return nil
}
