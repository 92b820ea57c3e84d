package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/radpress/radpress"
	"github.com/radpress/radpress/rst"
	"github.com/radpress/radpress/views"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		path := radpress.EnvOr("RADPRESS_CONFIG", "")
		if len(os.Args) > 2 {
			path = os.Args[2]
		}
		err = runServe(path)
	case "render":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: radpress render <file.rst | ->")
			os.Exit(1)
		}
		err = runRender(os.Args[2], os.Stdout)
	case "version":
		fmt.Printf("radpress %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(configPath string) error {
	cfg, err := radpress.LoadConfig(configPath)
	if err != nil {
		return err
	}
	app := radpress.New(cfg, views.Default(cfg))
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- app.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.Echo.Shutdown(shutdownCtx)
}

// runRender prints the HTML of a reStructuredText file, or of stdin for "-".
func runRender(path string, w io.Writer) error {
	var src []byte
	var err error
	if path == "-" {
		src, err = io.ReadAll(os.Stdin)
	} else {
		src, err = os.ReadFile(path)
	}
	if err != nil {
		return err
	}
	out, err := rst.Render(string(src))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func printUsage() {
	fmt.Println(`radpress - A reStructuredText blog built with Go, Echo, and templ

Usage:
  radpress <command> [arguments]

Commands:
  serve [config]   Serve the site; config is any file viper reads (yaml, toml, json)
  render <file>    Render a reStructuredText file to HTML on stdout ("-" reads stdin)
  version          Print the radpress version
  help             Show this help message

Settings can also come from RADPRESS_* environment variables, e.g.
RADPRESS_ADMIN_PASSWORD and RADPRESS_SESSION_SECRET.`)
}
