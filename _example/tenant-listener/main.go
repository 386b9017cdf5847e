package main

import (
	"bufio"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	serverURL   string
	bearerToken string
	hookSecret  string
)

func init() {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	serverURL = getEnv("SERVER_URL", "http://localhost:8080")
	bearerToken = getEnv("SERVICE_BEARER_TOKEN", "")
	hookSecret = getEnv("SERVICE_HOOK_SECRET", "")

	if bearerToken == "" || hookSecret == "" {
		fmt.Println("Error: SERVICE_BEARER_TOKEN and SERVICE_HOOK_SECRET must be set.")
		fmt.Println("Both are printed in the gateway logs when demo services are seeded.")
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envelope is the data of a user.login event on the live channel
type envelope struct {
	Token     string          `json:"token"`
	Signature string          `json:"signature"`
	Payload   json.RawMessage `json:"payload"`
}

func main() {
	fmt.Printf("=== Identity Gateway Live Channel Demo ===\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for {
		err := listen(ctx)
		if ctx.Err() != nil {
			fmt.Println("\nBye")
			return
		}
		fmt.Printf("Connection lost: %v, reconnecting in 3s\n", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(3 * time.Second):
		}
	}
}

func listen(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/live", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+bearerToken)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var event string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			handle(event, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case line == "":
			event = ""
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

func handle(event, data string) {
	switch event {
	case "ready":
		fmt.Printf("Connected: %s\n", data)
	case "user.login":
		var env envelope
		if err := json.Unmarshal([]byte(data), &env); err != nil {
			fmt.Printf("Malformed event: %v\n", err)
			return
		}
		if !verifySignature(env.Payload, env.Signature) {
			fmt.Println("Rejected event with bad signature")
			return
		}
		fmt.Printf("Login: %s\n", string(env.Payload))
	default:
		fmt.Printf("Ignoring %q event\n", event)
	}
}

func verifySignature(payload []byte, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(hookSecret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}
