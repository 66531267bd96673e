package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/agentd/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("agentd Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.LLM.BaseURL = promptInput(scanner, "LLM base URL", cfg.LLM.BaseURL)
		cfg.LLM.APIKey = promptInput(scanner, "LLM API key", cfg.LLM.APIKey)
		cfg.LLM.Model = promptInput(scanner, "LLM model name", cfg.LLM.Model)
		cfg.LLM.Mode = promptInput(scanner, "Protocol mode (auto/chat/responses)", cfg.LLM.Mode)

		maxTokensStr := promptInput(scanner, "Max output tokens", strconv.Itoa(cfg.LLM.MaxTokens))
		if n, err := strconv.Atoi(maxTokensStr); err == nil {
			cfg.LLM.MaxTokens = n
		}

		cfg.Telegram.Token = promptInput(scanner, "Telegram bot token (optional)", cfg.Telegram.Token)
		cfg.Tools.BraveAPIKey = promptInput(scanner, "Brave API key (optional)", cfg.Tools.BraveAPIKey)

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// promptInput displays a labeled prompt with a default value and reads user
// input. If the user enters nothing, the default is returned.
func promptInput(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
