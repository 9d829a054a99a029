package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JohnDeved/n3ds-smb/internal/cliout"
)

var lsCmd = &cobra.Command{
	Use:   "ls [remote-dir]",
	Short: "List a directory on the console's microSD card",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLs,
}

func runLs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dir := `\`
	if len(args) == 1 {
		dir = args[0]
	}

	ctx := context.Background()
	client, err := connectTarget(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	entries, err := client.Listdir(dir)
	if err != nil {
		return fmt.Errorf("ls %s: %w", dir, err)
	}

	table := cliout.NewTableData("Type", "Size", "Name")
	for _, e := range entries {
		kind := "f"
		if e.IsDir {
			kind = "d"
		}
		table.AddRow(kind, strconv.FormatUint(e.Size, 10), e.Name)
	}
	cliout.PrintTable(os.Stdout, table)
	return nil
}
