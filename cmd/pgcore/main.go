package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	_ "github.com/anacrolix/envpprof"
	"github.com/sirupsen/logrus"

	"github.com/vibesql/pgcore/internal/query"
	"github.com/vibesql/pgcore/internal/transport"
	"github.com/vibesql/pgcore/internal/version"
)

const (
	usageText = `pgcore - PostgreSQL query execution core

Usage:
  pgcore <command> [options]

Commands:
  query      Execute one parameterized query and print the result
  version    Print version information
  help       Display this help message

Examples:
  pgcore query -user postgres -dbname appdb "SELECT now()"
  pgcore query -array "SELECT name FROM users WHERE id = $1" 42
  pgcore version

Set PGCORE_DEBUG=1 for exchange-level logging.
`
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "query":
		if err := runQuery(os.Args[2:]); err != nil {
			logrus.WithError(err).Fatal("query failed")
		}
	case "version":
		printVersion()
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runQuery(args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	host := fs.String("host", "127.0.0.1", "server host")
	port := fs.Int("port", 5432, "server port")
	user := fs.String("user", "postgres", "user name")
	password := fs.String("password", os.Getenv("PGCORE_PASSWORD"), "password (cleartext auth only)")
	dbname := fs.String("dbname", "", "database name")
	name := fs.String("name", "", "prepared statement name")
	arrayMode := fs.Bool("array", false, "materialize rows as positional arrays")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		return fmt.Errorf("query text is required")
	}
	text := fs.Arg(0)
	values := make([]any, fs.NArg()-1)
	for i, v := range fs.Args()[1:] {
		values[i] = v
	}

	log := logrus.New()
	if os.Getenv("PGCORE_DEBUG") != "" {
		log.SetLevel(logrus.DebugLevel)
	}

	ctx := context.Background()

	log.WithFields(logrus.Fields{
		"host": *host,
		"port": *port,
		"user": *user,
	}).Info("connecting")

	tr, err := transport.Dial(ctx, transport.Options{
		Host:     *host,
		Port:     *port,
		User:     *user,
		Password: *password,
		Database: *dbname,
	})
	if err != nil {
		return err
	}

	conn := query.NewConn(tr, query.Config{Logger: log})
	defer conn.Close()

	mode := query.RowModeObject
	if *arrayMode {
		mode = query.RowModeArray
	}

	res, err := conn.Query(ctx, query.Request{
		Text:   text,
		Values: values,
		Name:   *name,
		Mode:   mode,
	})
	if err != nil {
		return err
	}

	printResult(res, mode)
	log.WithFields(logrus.Fields{
		"rows": res.RowCount,
		"tag":  res.CommandTag,
	}).Info("done")
	return nil
}

func printResult(res *query.ResultSet, mode query.RowMode) {
	for i, f := range res.Fields {
		if i > 0 {
			fmt.Print("\t")
		}
		fmt.Print(f.Name)
	}
	if len(res.Fields) > 0 {
		fmt.Println()
	}

	if mode == query.RowModeArray {
		for _, row := range res.Values {
			for i, v := range row {
				if i > 0 {
					fmt.Print("\t")
				}
				fmt.Print(formatValue(v))
			}
			fmt.Println()
		}
		return
	}

	for _, row := range res.Rows {
		for i, f := range res.Fields {
			if i > 0 {
				fmt.Print("\t")
			}
			fmt.Print(formatValue(row[f.Name]))
		}
		fmt.Println()
	}
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func printVersion() {
	fmt.Println(version.Get().Full())
}

func printUsage() {
	fmt.Print(usageText)
}
