package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().String("session-key", "cli:local", "session key to send under")
}

// sendCmd talks to the running daemon's HTTP surface so CLI prompts share
// the same queue and session state as every other channel.
var sendCmd = &cobra.Command{
	Use:   "send <prompt>",
	Short: "Send a prompt to the running daemon and print the response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		sessionKey, _ := cmd.Flags().GetString("session-key")

		body, err := json.Marshal(map[string]string{
			"prompt":      args[0],
			"session_key": sessionKey,
		})
		if err != nil {
			return err
		}

		client := &http.Client{Timeout: 5 * time.Minute}
		resp, err := client.Post("http://"+cfg.Server.Addr+"/webhook", "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("is the daemon running? %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, data)
		}

		var parsed struct {
			Response string `json:"response"`
		}
		if err := json.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
		fmt.Fprintln(os.Stdout, parsed.Response)
		return nil
	},
}
