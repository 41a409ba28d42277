package main

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goodmorning-rss/goodmorning/backend"
	log15adapter "github.com/jackc/pgx-log15"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/vaughan0/go-ini"
	log "gopkg.in/inconshreveable/log15.v2"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

// config is satisfied by ini.File. YAML files are adapted to the same lookup.
type config interface {
	Get(section, key string) (string, bool)
}

type yamlConfig map[string]map[string]interface{}

func (c yamlConfig) Get(section, key string) (string, bool) {
	s, ok := c[section]
	if !ok {
		return "", false
	}
	v, ok := s[key]
	if !ok || v == nil {
		return "", false
	}
	return fmt.Sprint(v), true
}

func loadConfig(path string) (config, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("Invalid config path: %v", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("Failed to load config file: %v", err)
		}
		var conf yamlConfig
		if err := yaml.Unmarshal(buf, &conf); err != nil {
			return nil, fmt.Errorf("Failed to parse config file: %v", err)
		}
		if conf == nil {
			conf = yamlConfig{}
		}
		return conf, nil
	default:
		file, err := ini.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("Failed to load config file: %v", err)
		}
		return file, nil
	}
}

func getInt(conf config, section, key string, fallback int) (int, error) {
	s, ok := conf.Get(section, key)
	if !ok || s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("Bad %s.%s: %v", section, key, err)
	}
	return n, nil
}

func getBool(conf config, section, key string) (bool, error) {
	s, ok := conf.Get(section, key)
	if !ok || s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("Bad %s.%s: %v", section, key, err)
	}
	return b, nil
}

func newLogger(conf config) (log.Logger, error) {
	level, _ := conf.Get("log", "level")
	if level == "" {
		level = "warn"
	}

	handler := log.StdoutHandler
	if path, ok := conf.Get("log", "file"); ok && path != "" {
		maxSize, err := getInt(conf, "log", "max_size_mb", 64)
		if err != nil {
			return nil, err
		}
		maxBackups, err := getInt(conf, "log", "max_backups", 3)
		if err != nil {
			return nil, err
		}
		maxAge, err := getInt(conf, "log", "max_age_days", 28)
		if err != nil {
			return nil, err
		}

		handler = log.StreamHandler(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			MaxAge:     maxAge,
		}, log.LogfmtFormat())
	}

	logger := log.New()
	if err := setFilterHandler(level, logger, handler); err != nil {
		return nil, err
	}

	return logger, nil
}

func setFilterHandler(level string, logger log.Logger, handler log.Handler) error {
	if level == "none" {
		logger.SetHandler(log.DiscardHandler())
		return nil
	}

	lvl, err := log.LvlFromString(level)
	if err != nil {
		return fmt.Errorf("Bad log level: %v", err)
	}
	logger.SetHandler(log.LvlFilterHandler(lvl, handler))

	return nil
}

func newPool(ctx context.Context, conf config, logger log.Logger) (*pgxpool.Pool, error) {
	var parts []string
	for _, key := range []string{"host", "port", "database", "user", "password"} {
		value, ok := conf.Get("database", key)
		if !ok || value == "" {
			continue
		}
		if key == "database" {
			key = "dbname"
		}
		parts = append(parts, fmt.Sprintf("%s='%s'", key, strings.ReplaceAll(value, "'", `\'`)))
	}

	if _, ok := conf.Get("database", "database"); !ok {
		return nil, errors.New("Config must contain database.database but it does not")
	}

	poolConfig, err := pgxpool.ParseConfig(strings.Join(parts, " "))
	if err != nil {
		return nil, err
	}

	pgxLevel := tracelog.LogLevelWarn
	if s, ok := conf.Get("log", "pgx_level"); ok && s != "" {
		pgxLevel, err = tracelog.LogLevelFromString(s)
		if err != nil {
			return nil, fmt.Errorf("Bad log.pgx_level: %v", err)
		}
	}

	poolConfig.ConnConfig.Tracer = &tracelog.TraceLog{
		Logger:   log15adapter.NewLogger(logger.New("module", "pgx")),
		LogLevel: pgxLevel,
	}

	return pgxpool.NewWithConfig(ctx, poolConfig)
}

// newRepository opens the configured store. The returned func releases it.
func newRepository(ctx context.Context, conf config, logger log.Logger) (backend.Repository, func(), error) {
	driver, _ := conf.Get("database", "driver")
	logger = logger.New("module", "repository")

	switch driver {
	case "", "sqlite":
		path, _ := conf.Get("database", "path")
		if path == "" {
			path = "goodmorning.db"
		}
		repo, err := backend.NewSQLiteRepository(path, logger)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { repo.Close() }, nil
	case "postgres", "pgx":
		pool, err := newPool(ctx, conf, logger)
		if err != nil {
			return nil, nil, err
		}
		return backend.NewPgxRepository(pool, logger), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("Unknown database.driver: %s", driver)
	}
}

func newFetcher(conf config) (*backend.HTTPFetcher, error) {
	timeout := 60 * time.Second
	if s, ok := conf.Get("fetch", "timeout"); ok && s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("Bad fetch.timeout: %v", err)
		}
		timeout = d
	}

	userAgent, _ := conf.Get("fetch", "user_agent")
	if userAgent == "" {
		userAgent = "goodmorning/" + version
	}

	return backend.NewHTTPFetcher(timeout, userAgent), nil
}

func newMailer(conf config, logger log.Logger) (*backend.SMTPMailer, error) {
	smtpAddr, ok := conf.Get("mail", "smtp_server")
	if !ok {
		return nil, errors.New("Missing mail -- smtp_server")
	}
	smtpPort, _ := conf.Get("mail", "port")
	if smtpPort == "" {
		smtpPort = "587"
	}

	fromAddr, ok := conf.Get("mail", "from_address")
	if !ok {
		return nil, errors.New("Missing mail -- from_address")
	}

	username, _ := conf.Get("mail", "username")
	password, _ := conf.Get("mail", "password")

	mailer := &backend.SMTPMailer{
		ServerAddr: smtpAddr + ":" + smtpPort,
		Auth:       smtp.PlainAuth("", username, password, smtpAddr),
		From:       fromAddr,
		Logger:     logger.New("module", "mail"),
	}

	return mailer, nil
}

// newNotifier builds the notifier named by notify.report. Dry runs always
// report to stdout.
func newNotifier(conf config, logger log.Logger, dryRun bool) (backend.Notifier, error) {
	notifyEmpty, err := getBool(conf, "notify", "notify_empty")
	if err != nil {
		return nil, err
	}

	report, _ := conf.Get("notify", "report")
	if dryRun {
		report = "stdout"
	}

	switch report {
	case "", "stdout":
		return &backend.StdoutNotifier{Out: os.Stdout, NotifyEmpty: notifyEmpty}, nil
	case "email":
		to, ok := conf.Get("notify", "to")
		if !ok || to == "" {
			return nil, errors.New("Missing notify -- to")
		}
		subject, _ := conf.Get("notify", "subject")

		mailer, err := newMailer(conf, logger)
		if err != nil {
			return nil, err
		}

		return &backend.MailNotifier{Mailer: mailer, To: to, Subject: subject, NotifyEmpty: notifyEmpty}, nil
	default:
		return nil, fmt.Errorf("Unknown notify.report: %s", report)
	}
}

func newRunner(conf config, repo backend.Repository, fetcher backend.Fetcher, notifier backend.Notifier, logger log.Logger) (*backend.Runner, error) {
	workers, err := getInt(conf, "run", "workers", backend.DefaultWorkers)
	if err != nil {
		return nil, err
	}

	checker := backend.NewFeedChecker(fetcher, workers, logger.New("module", "checker"))
	return backend.NewRunner(repo, checker, notifier, logger.New("module", "runner")), nil
}
