package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pget-dev/pget/config"
	"github.com/pget-dev/pget/download"
	"github.com/pget-dev/pget/ledger"
	"github.com/pget-dev/pget/model"
	"github.com/pget-dev/pget/poll"
	"github.com/urfave/cli/v2"
)

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitDataError    = 3
)

func main() {
	app := &cli.App{
		Name:    "pget",
		Usage:   "Poll podcast feeds and download new media",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "podcasts",
				Aliases: []string{"p"},
				Value:   defaultConfigPath("podcasts.ini"),
				Usage:   "Podcasts file path",
				EnvVars: []string{"PGET_PODCASTS"},
			},
			&cli.StringFlag{
				Name:    "ledger",
				Aliases: []string{"l"},
				Value:   defaultConfigPath("downloads.ini"),
				Usage:   "Ledger file path",
				EnvVars: []string{"PGET_LEDGER"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Print progress and status messages",
			},
			&cli.BoolFlag{
				Name:    "tell",
				Aliases: []string{"t"},
				Usage:   "Announce each completed download and removal",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "update",
				Usage:  "Poll all configured feeds and download new items",
				Action: updateFeeds,
			},
			{
				Name:   "stall",
				Usage:  "Remove interrupted partial downloads",
				Action: cleanStalled,
			},
			{
				Name:  "rmolder",
				Usage: "Remove downloaded files older than the given number of days",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     "days",
						Aliases:  []string{"d"},
						Usage:    "Retention window in days (0 is a no-op)",
						Required: true,
					},
				},
				Action: removeOlder,
			},
			{
				Name:   "clean",
				Usage:  "Stall cleanup plus age cleanups at 7 and 30 days",
				Action: cleanAll,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneralError)
	}
}

func defaultConfigPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".config", "pget", name)
}

func loadFeeds(c *cli.Context) ([]*model.Feed, error) {
	feeds, err := config.Load(c.String("podcasts"))
	if err != nil {
		return nil, cli.Exit(err.Error(), ExitDataError)
	}
	return feeds, nil
}

func openLedger(c *cli.Context) (*ledger.Ledger, error) {
	path := c.String("ledger")

	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, cli.Exit(fmt.Sprintf("failed to create ledger directory: %v", err), ExitDataError)
	}

	l, err := ledger.Open(path)
	if err != nil {
		return nil, cli.Exit(err.Error(), ExitDataError)
	}
	return l, nil
}

func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func updateFeeds(c *cli.Context) error {
	feeds, err := loadFeeds(c)
	if err != nil {
		return err
	}

	l, err := openLedger(c)
	if err != nil {
		return err
	}

	p := poll.New(l)
	p.Verbose = c.Bool("verbose")
	p.Engine.Verbose = c.Bool("verbose")
	p.Engine.Tell = c.Bool("tell")

	sum := p.Run(feeds)
	return outputJSON(sum)
}

func cleanStalled(c *cli.Context) error {
	feeds, err := loadFeeds(c)
	if err != nil {
		return err
	}

	removed, err := stallSweep(feeds, c.Bool("tell"))
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"removed": removed,
	})
}

func removeOlder(c *cli.Context) error {
	l, err := openLedger(c)
	if err != nil {
		return err
	}

	removed, err := l.RemoveOlder(c.Int("days"), time.Now(), removalNotifier(c.Bool("tell")))
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"days":    c.Int("days"),
		"removed": removed,
	})
}

func cleanAll(c *cli.Context) error {
	feeds, err := loadFeeds(c)
	if err != nil {
		return err
	}

	l, err := openLedger(c)
	if err != nil {
		return err
	}

	tell := c.Bool("tell")
	stalled, err := stallSweep(feeds, tell)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	notify := removalNotifier(tell)
	week, err := l.RemoveOlder(7, time.Now(), notify)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	month, err := l.RemoveOlder(30, time.Now(), notify)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"stalled_removed":  stalled,
		"older_7_removed":  week,
		"older_30_removed": month,
	})
}

// stallSweep removes partial downloads across every configured feed
// directory.
func stallSweep(feeds []*model.Feed, tell bool) (int, error) {
	notify := removalNotifier(tell)
	total := 0
	for _, f := range feeds {
		removed, err := download.CleanStalled(f.DownloadDir(), notify)
		total += removed
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func removalNotifier(tell bool) func(string) {
	if !tell {
		return nil
	}
	return func(path string) {
		fmt.Printf("%s removed\n", path)
	}
}
