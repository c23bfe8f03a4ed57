package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"

	"github.com/rangeql/rangeql"
	"github.com/rangeql/rangeql/boltstore"
	"github.com/rangeql/rangeql/memory"
	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/sqlstore"
)

type config struct {
	// DSN is the MySQL connection string.
	DSN string `yaml:"dsn"`
	// Namespace is prefixed onto bare entity names.
	Namespace string `yaml:"namespace"`
	// JSONStore is the path of the BoltDB file serving JSON sources.
	JSONStore string `yaml:"json_store"`
	// NullInclusive enables null-inclusive self-join simplification.
	NullInclusive bool `yaml:"null_inclusive"`
	// Entities declares the mapped entities.
	Entities map[string]entityConfig `yaml:"entities"`
}

type entityConfig struct {
	Table   string            `yaml:"table"`
	Keys    []string          `yaml:"keys"`
	Columns map[string]column `yaml:"columns"`
}

type column struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable"`
}

func main() {
	configPath := flag.String("config", "rangeql.yml", "engine configuration file")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("cannot load configuration")
	}

	backend, err := sqlstore.Open(cfg.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("cannot connect to backend")
	}
	defer backend.Close()

	var source rql.JSONSource
	if cfg.JSONStore != "" {
		store, err := boltstore.Open(cfg.JSONStore, 0600)
		if err != nil {
			logrus.WithError(err).Fatal("cannot open JSON store")
		}
		defer store.Close()
		source = store
	}

	ctx := rql.NewEmptyContext()
	engine := rangeql.New(buildMetadata(cfg), backend, source, &rangeql.Config{
		Namespace:       cfg.Namespace,
		NullInclusive:   cfg.NullInclusive,
		WindowFunctions: backend.SupportsWindowFunctions(ctx),
	})

	if err := repl(engine); err != nil {
		logrus.WithError(err).Fatal("repl terminated")
	}
}

func loadConfig(path string) (*config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func buildMetadata(cfg *config) rql.Metadata {
	md := memory.NewMetadata()
	for name, e := range cfg.Entities {
		entity := md.AddEntity(name)
		if e.Table != "" {
			entity.WithTable(e.Table)
		}
		entity.WithKey(e.Keys...)
		for prop, col := range e.Columns {
			name := col.Name
			if name == "" {
				name = prop
			}
			entity.WithColumn(prop, rql.Column{
				Name:     name,
				Type:     columnType(col.Type),
				Nullable: col.Nullable,
			})
		}
	}
	return md
}

func columnType(s string) rql.ColumnType {
	switch strings.ToLower(s) {
	case "int", "int64", "bigint":
		return rql.Int64
	case "float", "float64", "double":
		return rql.Float64
	case "bool", "boolean":
		return rql.Boolean
	case "timestamp", "datetime":
		return rql.Timestamp
	default:
		return rql.Text
	}
}

func repl(engine *rangeql.Engine) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "rql> ",
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		query := strings.TrimSpace(line)
		if query == "" {
			continue
		}
		if query == "exit" || query == "quit" {
			return nil
		}

		ctx := rql.NewContext(context.Background(), rql.WithQuery(query))
		rows, err := engine.Query(ctx, query, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		printRows(os.Stdout, rows)
	}
}

func printRows(w io.Writer, rows []rql.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "empty result set")
		return
	}

	var headers []string
	for col := range rows[0] {
		headers = append(headers, col)
	}
	sort.Strings(headers)

	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	for _, row := range rows {
		cells := make([]string, len(headers))
		for i, col := range headers {
			if row[col] == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprintf("%v", row[col])
		}
		table.Append(cells)
	}
	table.Render()
	fmt.Fprintf(w, "%d rows\n", len(rows))
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.rangeql_history"
}
