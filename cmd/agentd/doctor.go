package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/opslane/agentd/internal/config"
	"github.com/opslane/agentd/internal/transport"
	"github.com/opslane/agentd/pkg/protocol"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and environment health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("agentd doctor")
	fmt.Printf("  Version:  %s (protocol %d)\n", Version, protocol.ProtocolVersion)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND)")
		return
	}
	fmt.Println(" (OK)")

	mgr, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}
	cfg := mgr.Get()

	override := socket
	if override == "" {
		override = cfg.Daemon.SocketPath
	}
	fmt.Printf("  Socket:   %s\n", transport.SocketPath(override))

	fmt.Println()
	fmt.Println("  Channels:")
	if cfg.Telegram.Token != "" {
		fmt.Println("    telegram: configured")
	} else {
		fmt.Println("    telegram: not configured (no token)")
	}

	fmt.Println()
	fmt.Printf("  Scheduler jobs: %d\n", len(cfg.Scheduler))
}
