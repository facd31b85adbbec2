// ABOUTME: Admin CLI for the mosaicd decision engine
// ABOUTME: Talks JSON over HTTP with JWT authentication to inspect and operate the engine

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
)

const banner = `
                              _                     _           _
 _ __ ___   ___  ___  __ _(_) ___        __ _  __| |_ __ ___ (_)_ __
| '_ ' _ \ / _ \/ __|/ _' | |/ __|_____ / _' |/ _' | '_ ' _ \| | '_ \
| | | | | | (_) \__ \ (_| | | (__|_____| (_| | (_| | | | | | | | | | |
|_| |_| |_|\___/|___/\__,_|_|\___|      \__,_|\__,_|_| |_| |_|_|_| |_|
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	baseURL := os.Getenv("MOSAICD_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	token := getToken()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "status":
		err = cmdStatus(baseURL)
	case "config":
		err = cmdConfig(baseURL, token, args)
	case "fees":
		err = cmdFees(baseURL)
	case "withdraw":
		err = cmdWithdraw(baseURL, token, args)
	case "stats":
		err = cmdStats(baseURL, args)
	case "balance":
		err = cmdBalance(baseURL, args)
	case "permissions":
		err = cmdPermissions(baseURL, args)
	case "history":
		err = cmdHistory(baseURL, args)
	case "mintable":
		err = cmdMintable(baseURL, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: mosaic-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  status                  Show engine health and config summary")
	fmt.Println("  config                  Show the engine config")
	fmt.Println("  config set KEY VALUE    Update one config field (admin token required)")
	fmt.Println("  fees                    Show the collected platform fee balance")
	fmt.Println("  withdraw [amount]       Withdraw fees, full balance when omitted")
	fmt.Println("  stats <identity>        Show an editor's statistics")
	fmt.Println("  balance <identity>      Show an owner's accrued fee share")
	fmt.Println("  permissions <x> <y>     Show the permission record for a position")
	fmt.Println("  history <x> <y>         Show the color history for a position")
	fmt.Println("  mintable [limit]        List the next mintable positions")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  MOSAICD_URL             Engine base URL (default: http://localhost:8080)")
	fmt.Println("  MOSAICD_TOKEN           JWT token for admin operations")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  export MOSAICD_TOKEN=\"eyJhbG...\"")
	fmt.Println("  mosaic-admin status")
	fmt.Println("  mosaic-admin config set color_change_fee 200000")
	fmt.Println("  mosaic-admin withdraw 500000")
	fmt.Println()
}

// getToken reads the JWT from MOSAICD_TOKEN, falling back to the token file
// written by mosaicd bootstrap.
func getToken() string {
	if token := os.Getenv("MOSAICD_TOKEN"); token != "" {
		return token
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	data, err := os.ReadFile(filepath.Join(configDir, "mosaicd", "token"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func doRequest(method, url, token string, body any) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode >= 400 {
		if errObj, ok := decoded["error"].(map[string]any); ok {
			return nil, fmt.Errorf("%v: %v", errObj["code"], errObj["message"])
		}
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return decoded, nil
}

func cmdStatus(baseURL string) error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	cyan.Print(banner)
	fmt.Println()

	if _, err := doRequest(http.MethodGet, baseURL+"/health", "", nil); err != nil {
		color.Red("  Engine:  UNREACHABLE (%v)\n", err)
		return nil
	}

	green.Printf("  Engine:  ")
	fmt.Printf("healthy at %s\n", baseURL)

	cfg, err := doRequest(http.MethodGet, baseURL+"/v1/config", "", nil)
	if err != nil {
		return err
	}
	fmt.Println()
	printConfig(cfg)
	return nil
}

func cmdConfig(baseURL, token string, args []string) error {
	if len(args) == 0 {
		cfg, err := doRequest(http.MethodGet, baseURL+"/v1/config", "", nil)
		if err != nil {
			return err
		}
		printConfig(cfg)
		return nil
	}

	if args[0] != "set" || len(args) != 3 {
		return fmt.Errorf("usage: mosaic-admin config set KEY VALUE")
	}
	if token == "" {
		return fmt.Errorf("MOSAICD_TOKEN environment variable is required")
	}

	key, raw := args[1], args[2]
	update := map[string]any{}
	switch key {
	case "admin", "registry":
		update[key] = raw
	case "requires_payment", "rate_limiting_enabled":
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s expects true or false", key)
		}
		update[key] = v
	case "color_change_fee", "rate_limit", "rate_limit_window", "royalty_percent", "mint_price":
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("%s expects an unsigned integer", key)
		}
		update[key] = v
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}

	cfg, err := doRequest(http.MethodPost, baseURL+"/v1/admin/config", token, update)
	if err != nil {
		return err
	}

	color.Green("Config updated.")
	fmt.Println()
	printConfig(cfg)
	return nil
}

func printConfig(cfg map[string]any) {
	cyan := color.New(color.FgCyan)
	cyan.Println("  Engine Config")
	cyan.Println("  -------------")

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "  admin\t%v\n", cfg["admin"])
	fmt.Fprintf(w, "  registry\t%v\n", cfg["registry"])
	fmt.Fprintf(w, "  color_change_fee\t%v\n", cfg["color_change_fee"])
	fmt.Fprintf(w, "  rate_limit\t%v\n", cfg["rate_limit"])
	fmt.Fprintf(w, "  rate_limit_window\t%v\n", cfg["rate_limit_window"])
	fmt.Fprintf(w, "  requires_payment\t%v\n", cfg["requires_payment"])
	fmt.Fprintf(w, "  rate_limiting_enabled\t%v\n", cfg["rate_limiting_enabled"])
	fmt.Fprintf(w, "  royalty_percent\t%v\n", cfg["royalty_percent"])
	fmt.Fprintf(w, "  mint_price\t%v\n", cfg["mint_price"])
	w.Flush()
}

func cmdFees(baseURL string) error {
	resp, err := doRequest(http.MethodGet, baseURL+"/v1/fees/total", "", nil)
	if err != nil {
		return err
	}
	fmt.Printf("Collected platform fees: %v\n", resp["balance"])
	return nil
}

func cmdWithdraw(baseURL, token string, args []string) error {
	if token == "" {
		return fmt.Errorf("MOSAICD_TOKEN environment variable is required")
	}

	body := map[string]any{}
	if len(args) > 0 {
		amount, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("amount must be an unsigned integer")
		}
		body["amount"] = amount
	}

	resp, err := doRequest(http.MethodPost, baseURL+"/v1/admin/withdraw", token, body)
	if err != nil {
		return err
	}
	color.Green("Withdrawn: %v", resp["withdrawn"])
	return nil
}

func cmdStats(baseURL string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: mosaic-admin stats <identity>")
	}

	resp, err := doRequest(http.MethodGet, baseURL+"/v1/users/"+args[0]+"/statistics", "", nil)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "identity\t%v\n", resp["identity"])
	fmt.Fprintf(w, "total_color_changes\t%v\n", resp["total_color_changes"])
	fmt.Fprintf(w, "total_fees_paid\t%v\n", resp["total_fees_paid"])
	fmt.Fprintf(w, "changes_in_window\t%v\n", resp["changes_in_window"])
	if last, ok := resp["last_color_change"]; ok {
		fmt.Fprintf(w, "last_color_change\t%v\n", last)
	}
	if start, ok := resp["window_start"]; ok {
		fmt.Fprintf(w, "window_start\t%v\n", start)
	}
	w.Flush()
	return nil
}

func cmdBalance(baseURL string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: mosaic-admin balance <identity>")
	}

	resp, err := doRequest(http.MethodGet, baseURL+"/v1/users/"+args[0]+"/balance", "", nil)
	if err != nil {
		return err
	}
	fmt.Printf("Balance for %v: %v\n", resp["identity"], resp["balance"])
	return nil
}

func cmdPermissions(baseURL string, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: mosaic-admin permissions <x> <y>")
	}

	resp, err := doRequest(http.MethodGet,
		fmt.Sprintf("%s/v1/permissions?x=%s&y=%s", baseURL, args[0], args[1]), "", nil)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "owner\t%v\n", resp["owner"])
	fmt.Fprintf(w, "public_editing\t%v\n", resp["public_editing"])
	if fee, ok := resp["public_change_fee"]; ok {
		fmt.Fprintf(w, "public_change_fee\t%v\n", fee)
	}
	w.Flush()

	grants, _ := resp["grants"].([]any)
	if len(grants) == 0 {
		fmt.Println("grants: (none)")
		return nil
	}
	fmt.Println("grants:")
	gw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(gw, "  EDITOR\tEXPIRES")
	for _, g := range grants {
		grant, ok := g.(map[string]any)
		if !ok {
			continue
		}
		expires := "never"
		if e, ok := grant["expires_at"]; ok {
			expires = fmt.Sprintf("%v", e)
		}
		fmt.Fprintf(gw, "  %v\t%s\n", grant["editor"], expires)
	}
	gw.Flush()
	return nil
}

func cmdHistory(baseURL string, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: mosaic-admin history <x> <y>")
	}

	resp, err := doRequest(http.MethodGet,
		fmt.Sprintf("%s/v1/history?x=%s&y=%s", baseURL, args[0], args[1]), "", nil)
	if err != nil {
		return err
	}

	eventsRaw, _ := resp["events"].([]any)
	if len(eventsRaw) == 0 {
		fmt.Println("No history.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tEDITOR\tFROM\tTO\tFEE")
	for _, e := range eventsRaw {
		ev, ok := e.(map[string]any)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%v\t%v\t%s\t%s\t%v\n",
			ev["timestamp"], ev["editor"],
			colorHex(ev["from_color"]), colorHex(ev["to_color"]), ev["fee_paid"])
	}
	w.Flush()
	return nil
}

func colorHex(v any) string {
	c, ok := v.(map[string]any)
	if !ok {
		return "?"
	}
	r, _ := c["r"].(float64)
	g, _ := c["g"].(float64)
	b, _ := c["b"].(float64)
	return fmt.Sprintf("#%02x%02x%02x", int(r), int(g), int(b))
}

func cmdMintable(baseURL string, args []string) error {
	url := baseURL + "/v1/positions/mintable"
	if len(args) > 0 {
		if _, err := strconv.Atoi(args[0]); err != nil {
			return fmt.Errorf("limit must be an integer")
		}
		url += "?limit=" + args[0]
	}

	resp, err := doRequest(http.MethodGet, url, "", nil)
	if err != nil {
		return err
	}

	positions, _ := resp["positions"].([]any)
	if len(positions) == 0 {
		fmt.Println("No mintable positions.")
		return nil
	}

	for _, p := range positions {
		pos, ok := p.(map[string]any)
		if !ok {
			continue
		}
		x, _ := pos["x"].(float64)
		y, _ := pos["y"].(float64)
		fmt.Printf("%d,%d\n", int(x), int(y))
	}
	return nil
}
