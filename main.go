package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/debug"

	"github.com/integrii/flaggy"
	"github.com/jlkiri/ikki/pkg/app"
	"github.com/jlkiri/ikki/pkg/config"
	"github.com/jlkiri/ikki/pkg/ikkierr"
	"github.com/samber/lo"
)

const DEFAULT_VERSION = "unversioned"

var (
	commit      string
	version     = DEFAULT_VERSION
	date        string
	buildSource = "unknown"

	debuggingFlag = false
	configFile    = config.DefaultConfigFile
	watchFlag     = false
	buildName     string
)

func main() {
	updateBuildInfo()

	info := fmt.Sprintf(
		"%s\nDate: %s\nBuildSource: %s\nCommit: %s",
		version,
		date,
		buildSource,
		commit,
	)

	flaggy.SetName("ikki")
	flaggy.SetDescription("Declarative Docker image builds and container launches")
	flaggy.DefaultParser.AdditionalHelpPrepend = "https://github.com/jlkiri/ikki"

	flaggy.String(&configFile, "f", "file", "Path to the ikki configuration file")
	flaggy.Bool(&debuggingFlag, "d", "debug", "a boolean")
	flaggy.SetVersion(info)

	buildCmd := flaggy.NewSubcommand("build")
	buildCmd.Description = "Build one image and everything downstream, or every image if none is given"
	buildCmd.AddPositionalValue(&buildName, "name", 1, false, "image to build")
	flaggy.AttachSubcommand(buildCmd, 1)

	upCmd := flaggy.NewSubcommand("up")
	upCmd.Description = "Build (or pull) every image and start the services"
	upCmd.Bool(&watchFlag, "w", "watch", "watch for source changes and rebuild/restart automatically")
	flaggy.AttachSubcommand(upCmd, 1)

	explainCmd := flaggy.NewSubcommand("explain")
	explainCmd.Description = "Print the docker commands ikki would run"
	flaggy.AttachSubcommand(explainCmd, 1)

	flaggy.Parse()

	projectDir, err := os.Getwd()
	if err != nil {
		log.Fatal(err.Error())
	}

	appConfig, err := config.NewAppConfig("ikki", version, commit, date, buildSource, debuggingFlag, configFile, projectDir)
	if err != nil {
		log.Fatal(err.Error())
	}

	a, err := app.NewApp(appConfig)
	if err != nil {
		log.Fatal(err.Error())
	}
	defer a.Close()

	cfg, err := a.LoadConfig(configFile)
	if err != nil {
		reportAndExit(a, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	switch {
	case buildCmd.Used:
		err = a.Build(ctx, cfg, buildName)
	case upCmd.Used:
		err = a.Up(ctx, cfg, watchFlag)
	case explainCmd.Used:
		err = a.Explain(cfg)
	default:
		flaggy.ShowHelp("no subcommand given")
		os.Exit(1)
	}

	if err != nil {
		reportAndExit(a, err)
	}
}

func reportAndExit(a *app.App, err error) {
	if msg, known := a.KnownError(err); known {
		fmt.Fprintln(os.Stderr, msg)
		os.Exit(1)
	}
	a.Log.Error(ikkierr.WrapTop(err))
	os.Exit(1)
}

func updateBuildInfo() {
	if version == DEFAULT_VERSION {
		if buildInfo, ok := debug.ReadBuildInfo(); ok {
			revision, ok := lo.Find(buildInfo.Settings, func(setting debug.BuildSetting) bool {
				return setting.Key == "vcs.revision"
			})
			if ok {
				commit = revision.Value
				// if ikki was built from source we'll show the version as the
				// abbreviated commit hash
				version = commit
				if len(version) > 7 {
					version = version[:7]
				}
			}

			// if version hasn't been set we assume that neither has the date
			buildTime, ok := lo.Find(buildInfo.Settings, func(setting debug.BuildSetting) bool {
				return setting.Key == "vcs.time"
			})
			if ok {
				date = buildTime.Value
			}
		}
	}
}
