// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joeycumines/logiface"
)

// Config is the configuration of the demo driver, loaded from a TOML file,
// then overridden by flags.
type Config struct {
	// Demo is one of: threads, echo, all.
	Demo    string        `toml:"demo"`
	Log     LogConfig     `toml:"log"`
	Runtime RuntimeConfig `toml:"runtime"`
	Threads ThreadsConfig `toml:"threads"`
	Echo    EchoConfig    `toml:"echo"`
}

type LogConfig struct {
	// Level is a syslog keyword, e.g. info, or disabled.
	Level string `toml:"level"`
}

type RuntimeConfig struct {
	ReadBuffer int `toml:"read-buffer"`
	Backlog    int `toml:"backlog"`
}

type ThreadsConfig struct {
	Count    int `toml:"count"`
	Messages int `toml:"messages"`
	HWM      int `toml:"hwm"`
}

type EchoConfig struct {
	Addr     string        `toml:"addr"`
	Clients  int           `toml:"clients"`
	Messages int           `toml:"messages"`
	Timeout  time.Duration `toml:"timeout"`
}

var demos = map[string]bool{`threads`: true, `echo`: true, `all`: true}

func defaultConfig() *Config {
	return &Config{
		Demo: `all`,
		Log:  LogConfig{Level: `info`},
		Runtime: RuntimeConfig{
			ReadBuffer: 32 * 1024,
			Backlog:    16,
		},
		Threads: ThreadsConfig{
			Count:    4,
			Messages: 100,
			HWM:      16,
		},
		Echo: EchoConfig{
			Addr:     `127.0.0.1:0`,
			Clients:  4,
			Messages: 10,
			Timeout:  30 * time.Second,
		},
	}
}

// loadConfig reads path over the defaults. An empty path yields the
// defaults.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == `` {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf(`cannot read %s: %w`, path, err)
	}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf(`parse error in %s: %w`, path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf(`unknown keys in %s: %v`, path, undecoded)
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	var errs []error
	if !demos[cfg.Demo] {
		errs = append(errs, fmt.Errorf(`unknown demo %q`, cfg.Demo))
	}
	if _, err := parseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if cfg.Runtime.ReadBuffer <= 0 || cfg.Runtime.Backlog <= 0 {
		errs = append(errs, errors.New(`runtime read-buffer and backlog must be positive`))
	}
	if cfg.Threads.Count <= 0 || cfg.Threads.Messages <= 0 || cfg.Threads.HWM <= 0 {
		errs = append(errs, errors.New(`threads count, messages and hwm must be positive`))
	}
	if cfg.Echo.Clients <= 0 || cfg.Echo.Messages <= 0 {
		errs = append(errs, errors.New(`echo clients and messages must be positive`))
	}
	return errors.Join(errs...)
}

// flags binds the flags that override the configuration file.
type flags struct {
	set        *flag.FlagSet
	config     string
	demo       string
	logLevel   string
	threads    int
	messages   int
	clients    int
	addr       string
	echoTimeout time.Duration
}

func newFlags(name string) *flags {
	f := &flags{set: flag.NewFlagSet(name, flag.ContinueOnError)}
	f.set.StringVar(&f.config, `config`, ``, `path to a TOML configuration file`)
	f.set.StringVar(&f.demo, `demo`, ``, `demo to run: threads, echo, or all`)
	f.set.StringVar(&f.logLevel, `log-level`, ``, `log level, e.g. info, debug, or disabled`)
	f.set.IntVar(&f.threads, `threads`, 0, `number of threads in the threads demo`)
	f.set.IntVar(&f.messages, `messages`, 0, `messages per thread or client`)
	f.set.IntVar(&f.clients, `clients`, 0, `number of clients in the echo demo`)
	f.set.StringVar(&f.addr, `addr`, ``, `listen address of the echo demo`)
	f.set.DurationVar(&f.echoTimeout, `timeout`, 0, `timeout of the echo demo`)
	return f
}

// apply overrides cfg with every flag that was set.
func (f *flags) apply(cfg *Config) {
	f.set.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case `demo`:
			cfg.Demo = f.demo
		case `log-level`:
			cfg.Log.Level = f.logLevel
		case `threads`:
			cfg.Threads.Count = f.threads
		case `messages`:
			cfg.Threads.Messages = f.messages
			cfg.Echo.Messages = f.messages
		case `clients`:
			cfg.Echo.Clients = f.clients
		case `addr`:
			cfg.Echo.Addr = f.addr
		case `timeout`:
			cfg.Echo.Timeout = f.echoTimeout
		}
	})
}

func parseLevel(s string) (logiface.Level, error) {
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		if level.String() == s {
			return level, nil
		}
	}
	return logiface.LevelDisabled, fmt.Errorf(`unknown log level %q`, s)
}
