package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

// WireEvent is a realtime event as pushed over the websocket.
type WireEvent struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// WatchCmd creates the watch command.
func WatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream realtime events (requests and responses) until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runWatch(cmd, outputJSON)
		},
	}
}

// eventsURL converts the API base URL into the websocket endpoint. The
// API key travels as a query parameter because websocket clients cannot
// set request headers.
func (c *APIClient) eventsURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid api url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported api url scheme: %s", u.Scheme)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + apiBasePath + "/events"
	q := u.Query()
	q.Set("api_key", c.apiKey)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func runWatch(cmd *cobra.Command, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	endpoint, err := api.eventsURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	if !outputJSON {
		fmt.Println("Connected. Waiting for events (Ctrl+C to stop)...")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	events := make(chan WireEvent)
	errCh := make(chan error, 1)

	go func() {
		for {
			var event WireEvent
			if err := conn.ReadJSON(&event); err != nil {
				errCh <- err
				return
			}
			events <- event
		}
	}()

	for {
		select {
		case <-sigCh:
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		case err := <-errCh:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		case event := <-events:
			printEvent(event, outputJSON)
		}
	}
}

func printEvent(event WireEvent, outputJSON bool) {
	if outputJSON {
		encoded, _ := json.Marshal(event)
		fmt.Println(string(encoded))
		return
	}

	switch event.Type {
	case "knowledge-request":
		fmt.Printf("[request] %v asks: %v (request %v)\n",
			event.Payload["requesterName"], event.Payload["question"], event.Payload["requestId"])
	case "knowledge-response":
		fmt.Printf("[response] request %v %v\n",
			event.Payload["requestId"], event.Payload["status"])
		if content, ok := event.Payload["responseContent"].(string); ok && content != "" {
			fmt.Printf("   %s\n", content)
		}
	default:
		fmt.Printf("[%s] %v\n", event.Type, event.Payload)
	}
}
