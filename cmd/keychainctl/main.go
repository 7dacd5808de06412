package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// keychainctl pokes a running keychaind: fetches a token for an origin and
// issues one RPC call.
//
//	keychainctl -origin https://example.com set_password '{"website":"a.com","username":"u","password":"p"}'
//	keychainctl sync
func main() {
	base := flag.String("addr", "http://localhost:8080", "keychaind base URL")
	origin := flag.String("origin", "https://cli.local", "calling origin")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: keychainctl [flags] <method> [params-json]")
		os.Exit(2)
	}
	method := flag.Arg(0)
	params := "{}"
	if flag.NArg() > 1 {
		params = flag.Arg(1)
	}

	client := &http.Client{Timeout: 60 * time.Second}

	token, err := fetchToken(client, *base, *origin)
	if err != nil {
		fatal("token: %v", err)
	}

	body, err := json.Marshal(map[string]any{
		"method": method,
		"params": json.RawMessage(params),
	})
	if err != nil {
		fatal("params: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, *base+"/api/rpc", bytes.NewReader(body))
	if err != nil {
		fatal("request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		fatal("rpc: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fatal("rpc %s: %s", resp.Status, bytes.TrimSpace(out))
	}
	fmt.Println(string(bytes.TrimSpace(out)))
}

func fetchToken(client *http.Client, base, origin string) (string, error) {
	body, _ := json.Marshal(map[string]string{"origin": origin})
	resp, err := client.Post(base+"/api/token", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
