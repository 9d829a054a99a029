package commands

import (
	"context"
	"fmt"

	"github.com/JohnDeved/n3ds-smb/internal/cliprompt"
	"github.com/JohnDeved/n3ds-smb/internal/config"
	"github.com/JohnDeved/n3ds-smb/internal/discovery"
	"github.com/JohnDeved/n3ds-smb/internal/logger"
	"github.com/JohnDeved/n3ds-smb/internal/smb1"
)

// connectTarget runs the discovery pipeline and returns a connected smb1
// client against whatever console it finds, using cfg's target defaults.
// Callers own the returned client and must Close it.
func connectTarget(ctx context.Context, cfg *config.Config) (*smb1.Client, error) {
	result, err := discovery.Discover(promptForName)
	if err != nil {
		return nil, err
	}
	logger.Info("console located", "method", result.Method, "ip", result.IP, "name", result.Name)

	target := smb1.DefaultTarget(result.IP, result.Name)
	target.Share = cfg.Target.Share
	target.Port = cfg.Target.Port
	target.ClientName = cfg.Target.ClientName
	target.ConnectTimeout = int(cfg.Target.ConnectTimeout.Seconds())

	client := smb1.NewClient(target)
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", target.IP, err)
	}
	return client, nil
}

// promptForName asks the user for the console's NetBIOS name on the
// terminal when discovery could not auto-detect it.
func promptForName(ip string) (string, error) {
	return cliprompt.InputRequired(fmt.Sprintf("Console found at %s, enter its NetBIOS name", ip))
}
