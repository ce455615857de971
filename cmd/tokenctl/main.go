// tokenctl is a small operator CLI for the gateway's token administration
// endpoints.
//
//	tokenctl create -id reporting -user svc_reporting -roles data_analyst -perms read_data
//	tokenctl sign -user svc_batch -roles data_analyst -perms read_data -ttl 30
//	tokenctl revoke -id reporting
//	tokenctl list
//	tokenctl stats
//	tokenctl cleanup
//
// The gateway address comes from -addr or DORISGATE_ADDR; the admin
// credential from DORISGATE_ADMIN_TOKEN.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
	}

	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	addr := fs.String("addr", envOr("DORISGATE_ADDR", "http://localhost:8080"), "gateway base URL")

	var (
		id          = fs.String("id", "", "token id")
		user        = fs.String("user", "", "user id the token authenticates as")
		roles       = fs.String("roles", "", "comma-separated roles")
		perms       = fs.String("perms", "", "comma-separated permissions")
		level       = fs.String("level", "internal", "security level (public|internal|confidential|secret)")
		expires     = fs.Int("expires", -1, "expiry in hours; 0 never expires; negative uses the server default")
		description = fs.String("desc", "", "token description")
		custom      = fs.String("token", "", "custom token value instead of a generated one")
		ttl         = fs.Int("ttl", 60, "signed token lifetime in minutes")
	)
	_ = fs.Parse(os.Args[2:])

	client := &client{
		base:  strings.TrimRight(*addr, "/"),
		token: os.Getenv("DORISGATE_ADMIN_TOKEN"),
		http:  &http.Client{Timeout: 15 * time.Second},
	}

	switch cmd {
	case "create":
		if *id == "" || *user == "" {
			log.Fatal("create: -id and -user are required")
		}
		body := map[string]any{
			"token_id":       *id,
			"user_id":        *user,
			"roles":          splitCSV(*roles),
			"permissions":    splitCSV(*perms),
			"security_level": *level,
			"description":    *description,
		}
		if *expires >= 0 {
			body["expires_hours"] = *expires
		}
		if *custom != "" {
			body["custom_token"] = *custom
		}
		client.do(http.MethodPost, "/token/create", body)
	case "sign":
		if *user == "" {
			log.Fatal("sign: -user is required")
		}
		client.do(http.MethodPost, "/token/sign", map[string]any{
			"user_id":        *user,
			"roles":          splitCSV(*roles),
			"permissions":    splitCSV(*perms),
			"security_level": *level,
			"ttl_minutes":    *ttl,
		})
	case "revoke":
		if *id == "" {
			log.Fatal("revoke: -id is required")
		}
		client.do(http.MethodDelete, "/token/revoke?token_id="+*id, nil)
	case "list":
		client.do(http.MethodGet, "/token/list", nil)
	case "stats":
		client.do(http.MethodGet, "/token/stats", nil)
	case "cleanup":
		client.do(http.MethodPost, "/token/cleanup", nil)
	default:
		usage()
	}
}

type client struct {
	base  string
	token string
	http  *http.Client
}

func (c *client) do(method, path string, body any) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			log.Fatalf("encode request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("read response: %v", err)
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(data))
	}
	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: tokenctl <create|sign|revoke|list|stats|cleanup> [flags]")
	os.Exit(2)
}
