// Interactive command-line client for a running relay. Sends each line
// as a chat message and prints the streamed reply, keeping the
// conversation ID between turns.
//
// Usage:
//
//	API_KEY=sk-... go run ./scripts/chatcli [server-url]
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// ANSI color codes
const (
	colorReset = "\033[0m"
	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
	colorCyan  = "\033[36m"
)

type chatRequest struct {
	Content        string `json:"content"`
	ConversationID *int64 `json:"conversation_id,omitempty"`
}

type chatResponse struct {
	Success bool `json:"success"`
	Data    struct {
		ConversationID   int64 `json:"conversation_id"`
		AssistantMessage struct {
			Content string `json:"content"`
		} `json:"assistant_message"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiKey := os.Getenv("API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "API_KEY environment variable is required")
		os.Exit(1)
	}

	baseURL := "http://localhost:8080"
	if len(os.Args) > 1 {
		baseURL = strings.TrimRight(os.Args[1], "/")
	}

	fmt.Printf("%srelay cli%s — %s (empty line or /quit to exit)\n", colorCyan, colorReset, baseURL)

	var conversationID *int64
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Printf("%syou>%s ", colorGreen, colorReset)
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "/quit" {
			break
		}
		if line == "/new" {
			conversationID = nil
			fmt.Println("started a new conversation")
			continue
		}

		resp, err := send(baseURL, apiKey, chatRequest{Content: line, ConversationID: conversationID})
		if err != nil {
			fmt.Printf("%serror:%s %v\n", colorRed, colorReset, err)
			continue
		}

		conversationID = &resp.Data.ConversationID
		fmt.Printf("%sassistant>%s %s\n", colorCyan, colorReset, resp.Data.AssistantMessage.Content)
	}
}

func send(baseURL, apiKey string, req chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/api/chat", strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", apiKey)

	httpResp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if !parsed.Success {
		if parsed.Error != nil {
			return nil, fmt.Errorf("%s: %s", parsed.Error.Code, parsed.Error.Message)
		}
		return nil, fmt.Errorf("request failed with status %d", httpResp.StatusCode)
	}

	return &parsed, nil
}
