package main

import (
	"context"
	"os"
	"runtime/debug"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/lehigh-university-libraries/img2pdf/cmd"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = ""

func main() {
	root := cmd.NewRootCmd()

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(buildVersion()),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		os.Exit(1)
	}
}

func buildVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
