// cbtest drives a running pipegate instance through circuit breaker
// trip, cool-down and recovery phases by simulating upstream failures.
//
// Usage:
//
//	go run cbtest.go -gateway http://localhost:8080 -route /api/ -upstream-port 8081
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

type routeStatus struct {
	Upstream    string `json:"upstream"`
	State       string `json:"state"`
	Failures    int    `json:"failures"`
	Healthy     bool   `json:"healthy"`
	AvgResponse int64  `json:"avg_response"`
}

type snapshot struct {
	Uptime int64                  `json:"uptime"`
	Routes map[string]routeStatus `json:"routes"`
}

func main() {
	var (
		gatewayURL   = flag.String("gateway", "http://localhost:8080", "Gateway URL")
		routePrefix  = flag.String("route", "/api/", "Route prefix to exercise")
		upstreamPort = flag.Int("upstream-port", 8081, "Upstream port to kill for testing")
		requests     = flag.Int("requests", 20, "Requests per phase")
		cooldown     = flag.Duration("cooldown", 30*time.Second, "Configured breaker half_open_after")
		skipKill     = flag.Bool("skip-kill", false, "Skip the kill upstream phase")
	)
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}
	target := strings.TrimSuffix(*gatewayURL, "/") + *routePrefix

	fmt.Println(colorCyan + "━━━ PHASE 1: Normal Operation ━━━" + colorReset)
	ok := 0
	for i := 0; i < *requests; i++ {
		status, err := sendRequest(client, target)
		if err != nil {
			fmt.Printf(colorRed+"  Request %d: ERROR - %v\n"+colorReset, i+1, err)
			continue
		}
		if status < 500 {
			ok++
		}
	}
	if ok == 0 {
		fmt.Println(colorRed + "  ✗ No requests succeeded! Is the gateway running?" + colorReset)
		os.Exit(1)
	}
	fmt.Printf(colorGreen+"  ✓ %d/%d requests succeeded\n"+colorReset, ok, *requests)
	printStatus(client, *gatewayURL)

	if *skipKill {
		return
	}

	fmt.Println(colorBlue + "\n━━━ PHASE 2: Trip the Circuit ━━━" + colorReset)
	fmt.Printf("Killing upstream on port %d...\n", *upstreamPort)
	if err := killUpstream(*upstreamPort); err != nil {
		fmt.Printf(colorYellow+"  Warning: could not kill upstream: %v\n"+colorReset, err)
	}
	time.Sleep(500 * time.Millisecond)

	rejected := 0
	for i := 0; i < *requests; i++ {
		status, err := sendRequest(client, target)
		if err == nil && status == http.StatusServiceUnavailable {
			rejected++
		}
	}
	if rejected > 0 {
		fmt.Printf(colorGreen+"  ✓ Breaker rejecting: %d/%d requests got 503\n"+colorReset, rejected, *requests)
	} else {
		fmt.Println(colorYellow + "  ⚠ Breaker did not open; check threshold and failure kinds" + colorReset)
	}
	printStatus(client, *gatewayURL)

	fmt.Println(colorBlue + "\n━━━ PHASE 3: Cool-down & Recovery ━━━" + colorReset)
	fmt.Printf("Restart the upstream on port %d now; waiting %s for cool-down...\n", *upstreamPort, *cooldown)
	time.Sleep(*cooldown + time.Second)

	status, err := sendRequest(client, target)
	if err != nil {
		fmt.Printf(colorRed+"  Probe request failed: %v\n"+colorReset, err)
	} else {
		fmt.Printf("  Probe request status: %d\n", status)
	}
	printStatus(client, *gatewayURL)
}

func sendRequest(client *http.Client, target string) (int, error) {
	resp, err := client.Get(target)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func printStatus(client *http.Client, gatewayURL string) {
	resp, err := client.Get(strings.TrimSuffix(gatewayURL, "/") + "/status")
	if err != nil {
		fmt.Printf(colorYellow+"  Could not fetch status: %v\n"+colorReset, err)
		return
	}
	defer resp.Body.Close()

	var snap snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		fmt.Printf(colorYellow+"  Could not decode status: %v\n"+colorReset, err)
		return
	}

	fmt.Println("\n  Route status:")
	for name, rs := range snap.Routes {
		fmt.Printf("    %s → state=%s failures=%d healthy=%t upstream=%s\n",
			name, rs.State, rs.Failures, rs.Healthy, rs.Upstream)
	}
}

func killUpstream(port int) error {
	out, err := exec.Command("lsof", "-ti", ":"+strconv.Itoa(port)).Output()
	if err != nil {
		return fmt.Errorf("no process found on port %d", port)
	}

	for _, pid := range strings.Fields(string(out)) {
		if err := exec.Command("kill", pid).Run(); err != nil {
			return err
		}
	}
	return nil
}
