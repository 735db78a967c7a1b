package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

const defaultBase = "http://localhost:8080"

var errUsage = errors.New("usage")

func main() {
	if len(os.Args) < 2 {
		usage(os.Stdout)
		return
	}

	base := os.Getenv("PAYTOX_API")
	if base == "" {
		base = defaultBase
	}

	c := &client{
		base: base,
		http: http.DefaultClient,
		out:  os.Stdout,
	}
	if err := c.run(os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			usage(os.Stderr)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `Usage: paytox-cli <command> [options]

Platforms:
  platforms                                   GET  /v1/platforms
  ens        <platform> <handle>              GET  /v1/platforms/:id/ens
  resolve    <address-or-name>                GET  /v1/names/resolve

Claims:
  claim-create                                POST /v1/claims
  claim-get     <id>                          GET  /v1/claims/:id
  claim-run     <id> <file.eml> [-platform x] [-command c | -withdraw-to t]
                [-blueprint b -mode local|remote -endpoint url -entrypoint 0x..]
                                              POST /v1/claims/:id/run
  claim-submit  <id>                          POST /v1/claims/:id/submit
  claim-reset   <id>                          POST /v1/claims/:id/reset
  claim-history <id>                          GET  /v1/claims/:id/history

Auth handshake:
  handshake-begin  -platform x [-handle h] [-command c | -withdraw-to t]
                                              POST /v1/auth/handshakes
  handshake-get    <id> [-wait 30s]           GET  /v1/auth/handshakes/:id
  handshake-close  <id>                       POST /v1/auth/handshakes/:id/close
  handshake-delete <id>                       DELETE /v1/auth/handshakes/:id

Logs:
  logs [-service s] [-level l] [-limit n]     GET  /v1/logs

Environment:
  PAYTOX_API   override default http://localhost:8080`)
}

type client struct {
	base string
	http *http.Client
	out  io.Writer
}

func (c *client) run(cmd string, args []string) error {
	switch cmd {
	case "platforms":
		return c.do(http.MethodGet, "/v1/platforms", nil, "")
	case "ens":
		p, err := arg(args, 0)
		if err != nil {
			return err
		}
		h, err := arg(args, 1)
		if err != nil {
			return err
		}
		return c.do(http.MethodGet, "/v1/platforms/"+url.PathEscape(p)+"/ens?handle="+url.QueryEscape(h), nil, "")
	case "resolve":
		in, err := arg(args, 0)
		if err != nil {
			return err
		}
		return c.do(http.MethodGet, "/v1/names/resolve?input="+url.QueryEscape(in), nil, "")

	case "claim-create":
		return c.do(http.MethodPost, "/v1/claims", nil, "")
	case "claim-get", "claim-submit", "claim-reset", "claim-history":
		id, err := arg(args, 0)
		if err != nil {
			return err
		}
		method, suffix := http.MethodPost, map[string]string{
			"claim-get":     "",
			"claim-submit":  "/submit",
			"claim-reset":   "/reset",
			"claim-history": "/history",
		}[cmd]
		if cmd == "claim-get" || cmd == "claim-history" {
			method = http.MethodGet
		}
		return c.do(method, "/v1/claims/"+url.PathEscape(id)+suffix, nil, "")
	case "claim-run":
		return c.claimRun(args)

	case "handshake-begin":
		return c.handshakeBegin(args)
	case "handshake-get":
		id, err := arg(args, 0)
		if err != nil {
			return err
		}
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		wait := fs.String("wait", "", "block until settled, e.g. 30s")
		if err := fs.Parse(args[1:]); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		path := "/v1/auth/handshakes/" + url.PathEscape(id)
		if *wait != "" {
			path += "?wait=" + url.QueryEscape(*wait)
		}
		return c.do(http.MethodGet, path, nil, "")
	case "handshake-close":
		id, err := arg(args, 0)
		if err != nil {
			return err
		}
		return c.do(http.MethodPost, "/v1/auth/handshakes/"+url.PathEscape(id)+"/close", nil, "")
	case "handshake-delete":
		id, err := arg(args, 0)
		if err != nil {
			return err
		}
		return c.do(http.MethodDelete, "/v1/auth/handshakes/"+url.PathEscape(id), nil, "")

	case "logs":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		service := fs.String("service", "", "")
		level := fs.String("level", "", "")
		limit := fs.String("limit", "50", "")
		if err := fs.Parse(args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		q := url.Values{"limit": {*limit}}
		if *service != "" {
			q.Set("service", *service)
		}
		if *level != "" {
			q.Set("level", *level)
		}
		return c.do(http.MethodGet, "/v1/logs?"+q.Encode(), nil, "")

	default:
		return fmt.Errorf("%w: unknown command %s", errUsage, cmd)
	}
}

func (c *client) claimRun(args []string) error {
	id, err := arg(args, 0)
	if err != nil {
		return err
	}
	path, err := arg(args, 1)
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("claim-run", flag.ContinueOnError)
	fields := map[string]*string{
		"platform":    fs.String("platform", "", "platform id"),
		"command":     fs.String("command", "", "command bound into the proof"),
		"withdraw_to": fs.String("withdraw-to", "", "address or ENS name to withdraw to"),
		"blueprint":   fs.String("blueprint", "", "blueprint id"),
		"mode":        fs.String("mode", "", "local or remote"),
		"endpoint":    fs.String("endpoint", "", "remote prover endpoint"),
		"entrypoint":  fs.String("entrypoint", "", "entrypoint contract"),
	}
	if err := fs.Parse(args[2:]); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, v := range fields {
		if *v != "" {
			if err := w.WriteField(name, *v); err != nil {
				return err
			}
		}
	}
	fw, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := fw.Write(raw); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return c.do(http.MethodPost, "/v1/claims/"+url.PathEscape(id)+"/run", &buf, w.FormDataContentType())
}

func (c *client) handshakeBegin(args []string) error {
	fs := flag.NewFlagSet("handshake-begin", flag.ContinueOnError)
	platform := fs.String("platform", "", "platform id")
	handle := fs.String("handle", "", "account handle")
	command := fs.String("command", "", "command bound into the proof")
	withdrawTo := fs.String("withdraw-to", "", "address or ENS name to withdraw to")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *platform == "" {
		return fmt.Errorf("%w: -platform is required", errUsage)
	}

	body, err := json.Marshal(map[string]string{
		"platform":    *platform,
		"handle":      *handle,
		"command":     *command,
		"withdraw_to": *withdrawTo,
	})
	if err != nil {
		return err
	}
	return c.do(http.MethodPost, "/v1/auth/handshakes", bytes.NewReader(body), "application/json")
}

func arg(args []string, idx int) (string, error) {
	if len(args) <= idx {
		return "", fmt.Errorf("%w: missing argument %d", errUsage, idx+1)
	}
	return args[idx], nil
}

func (c *client) do(method, path string, body io.Reader, contentType string) error {
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	fmt.Fprintf(c.out, "→ %s %s\n", method, req.URL)
	fmt.Fprintf(c.out, "← %d %s\n\n", res.StatusCode, http.StatusText(res.StatusCode))
	if _, err := io.Copy(c.out, res.Body); err != nil {
		return err
	}
	fmt.Fprintln(c.out)
	return nil
}
