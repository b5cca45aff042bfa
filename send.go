package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"go-perform/config"
	"go-perform/protocol"
)

var sendAddr string

var sendCmd = &cobra.Command{
	Use:   "send <batch.json | ->",
	Short: "Send an instruction batch to a running player",
	Args:  cobra.ExactArgs(1),
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendAddr, "addr", "a", "", "Address of the running player (default from config)")
}

// sendURL turns a listen address like ":27713" into the instructions URL
func sendURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimSuffix(addr, "/") + "/api/v1/instructions"
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/api/v1/instructions"
}

func runSend(cmd *cobra.Command, args []string) error {
	var raw []byte
	var err error
	if args[0] == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(args[0])
	}
	if err != nil {
		return err
	}

	// catch mistakes before they reach the player
	if _, err := (protocol.Parser{}).Parse(raw); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	addr := sendAddr
	if addr == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		addr = cfg.API.Addr
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(sendURL(addr), "application/json", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("player answered %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	fmt.Println("queued")
	return nil
}
