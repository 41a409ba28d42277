package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/goodmorning-rss/goodmorning/backend"
	"github.com/urfave/cli"
	log "gopkg.in/inconshreveable/log15.v2"
)

const version = "0.3.0"

func main() {
	app := cli.NewApp()
	app.Name = "goodmorning"
	app.Usage = "Watch RSS and Atom feeds and report what changed"
	app.Version = version

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: "goodmorning.conf",
			Usage: "path to config file",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:      "import-sub",
			Usage:     "import subscriptions from a url,kind CSV file",
			ArgsUsage: "PATH",
			Action:    ImportSub,
		},
		{
			Name:   "list-sub",
			Usage:  "list monitored feeds and their last check",
			Action: ListSub,
		},
		{
			Name:      "add-sub",
			Usage:     "add a subscription",
			ArgsUsage: "URL",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "kind, k", Usage: "rss or atom (detected when omitted)"},
			},
			Action: AddSub,
		},
		{
			Name:  "run",
			Usage: "check every feed once and report updates",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "dry-run", Usage: "report to stdout without recording checks"},
			},
			Action: Run,
		},
		{
			Name:  "serve",
			Usage: "run the HTTP API",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "address, a", Value: "127.0.0.1", Usage: "address to listen on"},
				cli.StringFlag{Name: "port, p", Value: "8080", Usage: "port to listen on"},
			},
			Action: Serve,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type environment struct {
	conf    config
	logger  log.Logger
	repo    backend.Repository
	release func()
}

func setup(ctx context.Context, c *cli.Context) (*environment, error) {
	conf, err := loadConfig(c.GlobalString("config"))
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(conf)
	if err != nil {
		return nil, err
	}

	repo, release, err := newRepository(ctx, conf, logger)
	if err != nil {
		return nil, err
	}

	if err := repo.Init(ctx); err != nil {
		release()
		return nil, err
	}

	return &environment{conf: conf, logger: logger, repo: repo, release: release}, nil
}

func ImportSub(c *cli.Context) error {
	if c.NArg() != 1 {
		cli.ShowCommandHelp(c, c.Command.Name)
		return errors.New("import-sub requires a PATH")
	}

	ctx := context.Background()
	env, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer env.release()

	file, err := os.Open(c.Args().First())
	if err != nil {
		return err
	}
	defer file.Close()

	logger := env.logger.New("module", "import")
	subs, err := backend.ReadSubscriptionsCSV(file, logger)
	if err != nil {
		return err
	}

	added, err := backend.ImportSubscriptions(ctx, env.repo, subs, logger)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d of %d subscriptions\n", added, len(subs))
	return nil
}

func ListSub(c *cli.Context) error {
	ctx := context.Background()
	env, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer env.release()

	feeds, err := env.repo.GetMonitoredFeeds(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tURL\tLAST CHECK\tTITLE")
	for _, f := range feeds {
		lastCheck, title := "never", ""
		if f.LastCheck != nil {
			lastCheck = f.LastCheck.CheckDate.Format("2006-01-02 15:04:05")
			title = f.LastCheck.Title
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", f.ID, f.Kind, f.URL, lastCheck, title)
	}
	return w.Flush()
}

func AddSub(c *cli.Context) error {
	if c.NArg() != 1 {
		cli.ShowCommandHelp(c, c.Command.Name)
		return errors.New("add-sub requires a URL")
	}
	url := c.Args().First()

	ctx := context.Background()
	env, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer env.release()

	var kind backend.FeedKind
	if s := c.String("kind"); s != "" {
		kind, err = backend.ParseFeedKind(s)
		if err != nil {
			return err
		}
	} else {
		fetcher, err := newFetcher(env.conf)
		if err != nil {
			return err
		}
		kind, err = backend.DetectKind(ctx, fetcher, url)
		if err != nil {
			return fmt.Errorf("Unable to detect feed kind: %w", err)
		}
	}

	id, err := env.repo.AddSub(ctx, url, kind)
	if err != nil {
		return err
	}

	fmt.Printf("Added %s feed %d: %s\n", kind, id, url)
	return nil
}

func Run(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	env, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer env.release()

	dryRun := c.Bool("dry-run")

	fetcher, err := newFetcher(env.conf)
	if err != nil {
		return err
	}

	notifier, err := newNotifier(env.conf, env.logger, dryRun)
	if err != nil {
		return err
	}

	runner, err := newRunner(env.conf, env.repo, fetcher, notifier, env.logger)
	if err != nil {
		return err
	}

	_, err = runner.Run(ctx, backend.RunOptions{DryRun: dryRun})
	return err
}

func Serve(c *cli.Context) error {
	ctx := context.Background()
	env, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer env.release()

	address := c.String("address")
	if !c.IsSet("address") {
		if s, ok := env.conf.Get("server", "address"); ok {
			address = s
		}
	}
	port := c.String("port")
	if !c.IsSet("port") {
		if s, ok := env.conf.Get("server", "port"); ok {
			port = s
		}
	}

	fetcher, err := newFetcher(env.conf)
	if err != nil {
		return err
	}

	notifier, err := newNotifier(env.conf, env.logger, false)
	if err != nil {
		return err
	}

	runner, err := newRunner(env.conf, env.repo, fetcher, notifier, env.logger)
	if err != nil {
		return err
	}

	apiHandler := backend.NewAPIHandler(env.repo, runner, fetcher, env.logger.New("module", "http"))
	http.Handle("/api/", http.StripPrefix("/api", apiHandler))

	listenAt := fmt.Sprintf("%s:%s", address, port)
	fmt.Printf("Starting to listen on: %s\n", listenAt)

	if err := http.ListenAndServe(listenAt, nil); err != nil {
		return fmt.Errorf("Could not start web server: %w", err)
	}
	return nil
}
