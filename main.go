package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/akamensky/argparse"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/r0lh/rlinject/locator"
	"github.com/r0lh/rlinject/notify"
	"github.com/r0lh/rlinject/payload"
	"github.com/r0lh/rlinject/pinjector"
	"github.com/r0lh/rlinject/winsys"
)

const defaultProcess = "RocketLeague.exe"

type config struct {
	Process         string
	DllPath         string
	Timeout         time.Duration
	Enumerator      string
	VerifyImage     bool
	SkipLoaderCheck bool
	Quiet           bool
	LogLevel        log.Level
}

func parseConfig(args []string) (config, error) {
	parser := argparse.NewParser("rlinject", "Loads the BakkesMod DLL into a running Rocket League process")
	process := parser.String("p", "process", &argparse.Options{Default: defaultProcess, Help: "executable name of the target process"})
	dll := parser.String("d", "dll", &argparse.Options{Help: "dll to inject, defaults to the BakkesMod install under roaming app data"})
	timeout := parser.String("t", "timeout", &argparse.Options{Default: "0s", Help: "how long to wait for the remote loader thread, 0 waits forever"})
	enumerator := parser.Selector("e", "enumerator", []string{"go-ps", "gopsutil"}, &argparse.Options{Default: "go-ps", Help: "process enumeration backend"})
	verifyImage := parser.Flag("i", "verify-image", &argparse.Options{Help: "require the payload to be a PE dll"})
	skipLoader := parser.Flag("s", "skip-loader-check", &argparse.Options{Help: "don't compare kernel32.dll bases before injecting"})
	quiet := parser.Flag("q", "quiet", &argparse.Options{Help: "don't show message boxes"})
	level := parser.Selector("l", "log-level", []string{"debug", "info", "warn", "error"}, &argparse.Options{Default: "info", Help: "log level"})

	if err := parser.Parse(args); err != nil {
		return config{}, errors.New(parser.Usage(err))
	}

	cfg := config{
		Process:         *process,
		DllPath:         *dll,
		Enumerator:      *enumerator,
		VerifyImage:     *verifyImage,
		SkipLoaderCheck: *skipLoader,
		Quiet:           *quiet,
	}
	if cfg.Process == "" {
		return config{}, errors.New(parser.Usage(errors.New("process name must not be empty")))
	}
	d, err := time.ParseDuration(*timeout)
	if err != nil || d < 0 {
		return config{}, errors.New(parser.Usage(errors.Errorf("invalid timeout %q", *timeout)))
	}
	cfg.Timeout = d
	lvl, err := log.ParseLevel(*level)
	if err != nil {
		return config{}, errors.New(parser.Usage(err))
	}
	cfg.LogLevel = lvl
	return cfg, nil
}

type app struct {
	cfg      config
	log      *log.Logger
	sys      winsys.System
	enum     locator.Enumerator
	notifier notify.Notifier
}

// run executes payload check, process lookup and injection in that order,
// stopping at the first failure.
func (a *app) run() pinjector.Result {
	path, err := payload.Resolve(a.cfg.DllPath)
	if err == nil {
		err = payload.Validate(path, a.cfg.VerifyImage)
	}
	if err != nil {
		a.log.Error("payload unavailable", "path", path, "err", err)
		a.notifier.Notify("DLL not found", "could not find bakkesmod.dll: "+err.Error())
		return pinjector.DllNotFound
	}
	a.log.Info("payload found", "path", path)

	pid, err := locator.Find(a.enum, a.cfg.Process)
	if pid == locator.NotFound {
		a.log.Error("target not running", "process", a.cfg.Process, "err", err)
		a.notifier.Notify("error", fmt.Sprintf("%s process not found.", displayName(a.cfg.Process)))
		return pinjector.ProcessNotFound
	}
	a.log.Info("target found", "process", a.cfg.Process, "pid", pid)

	inj := pinjector.New(a.sys, a.log, pinjector.Options{
		WaitTimeout:      a.cfg.Timeout,
		VerifyLoaderBase: !a.cfg.SkipLoaderCheck,
	})
	res, err := inj.Inject(pid, path)
	switch res {
	case pinjector.ProcessNotFound:
		a.notifier.Notify("error", fmt.Sprintf("failed to open %s process.", displayName(a.cfg.Process)))
	case pinjector.InjectFailed:
		a.notifier.Notify("error", fmt.Sprintf("failed to inject into %s: %v", displayName(a.cfg.Process), err))
	}
	return res
}

func displayName(exe string) string {
	return strings.TrimSuffix(exe, ".exe")
}

func main() {
	cfg, err := parseConfig(os.Args)
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		os.Exit(pinjector.InjectFailed.ExitCode())
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "rlinject",
		ReportTimestamp: true,
		Level:           cfg.LogLevel,
	})

	enum, err := locator.ByName(cfg.Enumerator)
	if err != nil {
		logger.Error("bad enumerator", "err", err)
		os.Exit(pinjector.InjectFailed.ExitCode())
	}

	var notifier notify.Notifier = notify.Default(logger)
	if cfg.Quiet {
		notifier = notify.Nop{}
	}

	a := &app{
		cfg:      cfg,
		log:      logger,
		sys:      winsys.New(),
		enum:     enum,
		notifier: notifier,
	}
	res := a.run()
	logger.Debug("done", "result", res)
	os.Exit(res.ExitCode())
}
