// Command ftpreq sends a single LIST, NLST, RETR or STOR request to an FTP
// server through net/http and prints the result.
//
// Usage:
//
//	ftpreq [flags] METHOD URL
//
// Examples:
//
//	ftpreq LIST ftp://ftp.example.com/pub
//	ftpreq --output readme.txt RETR ftp://ftp.example.com/pub/README
//	ftpreq --user alice --password s3cret --upload report.csv STOR ftp://host/uploads/report.csv
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/gonzalop/ftptransport"
)

const defaultTimeout = 30 * time.Second

// errStatus is returned when the server answers with a 4xx or 5xx reply.
var errStatus = errors.New("request failed")

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "ftpreq",
		Usage:     "send one request to an FTP server",
		ArgsUsage: "METHOD URL",
		Description: "METHOD is one of LIST, NLST, RETR or STOR. Credentials come from\n" +
			"--user/--password, the URL, or a [[host]] entry of the config file.",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "login `NAME`"},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "login `PASSWORD`", EnvVars: []string{"FTPREQ_PASSWORD"}},
			&cli.DurationFlag{Name: "timeout", Aliases: []string{"t"}, Value: defaultTimeout, Usage: "connect timeout"},
			&cli.StringFlag{Name: "upload", Usage: "local `FILE` sent by STOR"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write the body to `FILE` instead of stdout"},
			&cli.BoolFlag{Name: "verbose", Usage: "log the FTP conversation"},
		},
		Action: func(c *cli.Context) error {
			return run(c, stdout, stderr)
		},
	}
}

func run(c *cli.Context, stdout, stderr io.Writer) error {
	if c.NArg() != 2 {
		return fmt.Errorf("expected METHOD and URL, got %d arguments", c.NArg())
	}
	method, rawURL := c.Args().Get(0), c.Args().Get(1)

	cfg := &Config{}
	if path := c.String("config"); path != "" {
		loaded, err := loadConfig(path)
		if err != nil {
			return fmt.Errorf("error opening config file: %w", err)
		}
		cfg = loaded
	}

	timeout := c.Duration("timeout")
	if !c.IsSet("timeout") && cfg.Timeout > 0 {
		timeout = cfg.Timeout.Duration()
	}

	level := slog.LevelWarn
	if c.Bool("verbose") || cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	adapter, err := ftptransport.New(
		ftptransport.WithLogger(logger),
		ftptransport.WithConnectTimeout(timeout),
	)
	if err != nil {
		return err
	}
	defer adapter.Close()

	transport := &http.Transport{}
	transport.RegisterProtocol("ftp", adapter)
	client := &http.Client{Transport: transport}

	req, err := buildRequest(c.Context, method, rawURL, c.String("upload"))
	if err != nil {
		return err
	}
	applyCredentials(req, cfg, c.String("user"), c.String("password"))

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	out := stdout
	if path := c.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return fmt.Errorf("writing body: %w", err)
	}

	status := color.New(color.FgGreen)
	if resp.StatusCode >= 400 {
		status = color.New(color.FgRed)
	}
	status.Fprintf(stderr, "%s", resp.Status)
	fmt.Fprintf(stderr, " (%s in %s)\n", humanize.Bytes(uint64(n)), time.Since(start).Round(time.Millisecond))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: %s", errStatus, resp.Status)
	}
	return nil
}

// buildRequest creates the http.Request for method. STOR wraps the upload
// file in a one-part multipart/form-data body.
func buildRequest(ctx context.Context, method, rawURL, upload string) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if method != ftptransport.MethodStore {
		if upload != "" {
			return nil, fmt.Errorf("--upload is only valid with %s", ftptransport.MethodStore)
		}
		return http.NewRequestWithContext(ctx, method, rawURL, nil)
	}

	if upload == "" {
		return nil, fmt.Errorf("%s needs --upload", ftptransport.MethodStore)
	}
	data, err := os.ReadFile(upload)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(upload))
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}

// applyCredentials sets Basic auth from the flags, or from the config
// entry for the URL host. URL user info is left for http.Client to apply.
func applyCredentials(req *http.Request, cfg *Config, user, password string) {
	if user != "" {
		req.SetBasicAuth(user, password)
		return
	}
	if req.URL.User != nil {
		return
	}
	if h, ok := cfg.credentials(req.URL.Hostname()); ok {
		req.SetBasicAuth(h.User, h.Password)
	}
}

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		if !errors.Is(err, errStatus) {
			fmt.Fprintln(os.Stderr, color.RedString("ftpreq: %s", err))
		}
		os.Exit(1)
	}
}
