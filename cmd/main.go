package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/brettbedarf/treefs/adapters"
	"github.com/brettbedarf/treefs/config"
	"github.com/brettbedarf/treefs/device"
	"github.com/brettbedarf/treefs/internal/util"
	"github.com/brettbedarf/treefs/requests"
	"github.com/brettbedarf/treefs/server"
	"github.com/brettbedarf/treefs/shell"
)

func main() {
	// Parse command line arguments
	var (
		configPath string
		devicePath string
		verbose    int
		nodesDef   string
		mnt        string
		umount     bool
	)
	flag.StringVar(&configPath, "config", "", "Path to config file (.yaml, .json or .env)")
	flag.StringVar(&configPath, "c", "", "--config (shorthand)")
	flag.StringVar(&devicePath, "device", "", "Path of the save file. Overrides the config value.")
	flag.StringVar(&devicePath, "d", "", "--device (shorthand)")
	flag.StringVar(&nodesDef, "nodes", "", "Path to nodes def file applied on start-up")
	flag.StringVar(&nodesDef, "n", "", "--nodes (shorthand)")
	flag.StringVar(&mnt, "mount", "", "Also serve the store over FUSE at this mount point")
	flag.StringVar(&mnt, "m", "", "--mount (shorthand)")
	flag.BoolVar(&umount, "umount", false,
		"Unmount the fs first if needed before mounting again. Useful for debuggers that don't exit properly.")
	flag.BoolVar(&umount, "u", false, "--umount (shorthand)")
	flag.IntVar(&verbose, "verbose", 3, "Log verbosity level between 1 (error) and 5 (trace). Default is 3 (info).")
	flag.IntVar(&verbose, "v", 3, "--verbose (shorthand)")
	flag.Parse()

	// Initialize logger; logs go to stderr so they never mix with the shell
	logLvl := util.VerboseToLevel(verbose)
	util.InitializeLogger(logLvl)
	logger := util.GetLogger("main")

	// Load config
	cfg := config.NewDefaultConfig()
	if configPath != "" {
		fileCfg, err := config.NewConfigFromFile(configPath)
		if err != nil {
			logger.Fatal().Err(err).Str("config", configPath).Msg("Failed to load config file")
		}
		cfg = fileCfg
	}
	if flagSet("verbose", "v") {
		cfg.LogLvl = logLvl
	} else if cfg.LogLvl != logLvl {
		util.InitializeLogger(cfg.LogLvl)
		logger = util.GetLogger("main")
	}
	if devicePath != "" {
		cfg.DevicePath = devicePath
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid config")
	}
	logger.Info().Int("verbose", verbose).Str("device", cfg.DevicePath).Str("nodes", nodesDef).
		Str("mnt", mnt).Msg("treefs initializing")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	fs := server.New(cfg)
	dev := device.NewOSFile(cfg.DevicePath, cfg.ReadSize)

	// Restore the last save
	if cfg.AutoLoad {
		if err := fs.Restore(ctx, dev); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logger.Info().Str("device", cfg.DevicePath).Msg("No save file yet, starting empty")
			} else {
				logger.Warn().Err(err).Str("device", cfg.DevicePath).Msg("Failed to load save file, starting empty")
			}
		}
	}

	// Load node definitions
	if nodesDef != "" {
		defData, err := os.ReadFile(nodesDef)
		if err != nil {
			logger.Fatal().Err(err).Str("nodes", nodesDef).Msg("Failed to read nodes file")
		}
		adapters.RegisterBuiltins()
		reqs, err := requests.UnmarshalNodeRequests(defData)
		if err != nil {
			logger.Fatal().Err(err).Str("nodes", nodesDef).Msg("Failed to unmarshal nodes")
		}
		reqs.Apply(ctx, fs)
	}

	// Serve
	if mnt != "" {
		// Try unmount if requested
		if umount { // send cli command
			cmd := exec.Command("fusermount", "-u", mnt)
			// we ignore error here if not already mounted
			cmd.Run() // nolint:errcheck
		}
		if err := fs.Serve(mnt); err != nil {
			logger.Fatal().Err(err).Msg("Failed to mount filesystem")
		}
		defer func() {
			// Unmount the filesystem
			if err := fs.Unmount(); err != nil {
				logger.Error().Err(err).Msg("Failed to unmount filesystem")
			} else {
				logger.Info().Msg("Filesystem unmounted successfully")
			}
		}()
	}

	// The shell blocks on stdin so it runs aside and a signal can end it
	session := shell.NewSession(fs.FileSystem, dev)
	done := make(chan error, 1)
	go func() {
		done <- session.Run(ctx, os.Stdin, os.Stdout)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Shell stopped")
		}
	case <-ctx.Done():
		logger.Info().Msg("Received signal, shutting down")
	}
}

// flagSet reports whether any of the named flags was given on the command line
func flagSet(names ...string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				found = true
			}
		}
	})
	return found
}
