package cmd

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/conversa/cli/internal/domain"
	"github.com/conversa/cli/internal/infra/storage"
	"github.com/conversa/cli/internal/logger"
	"github.com/conversa/cli/internal/services"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	toolStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session against the configured backend.
Responses stream in as they are generated. Use /new to start a fresh
conversation and /quit to exit. With --message a single message is sent
non-interactively.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		message, _ := cmd.Flags().GetString("message")
		audioFile, _ := cmd.Flags().GetString("audio-file")
		resume, _ := cmd.Flags().GetString("resume")
		audioOutPath, _ = cmd.Flags().GetString("save-audio")

		client, store, err := buildChatClient()
		if err != nil {
			return err
		}
		if store != nil {
			defer func() {
				_ = store.Close()
			}()
		}

		ctx := context.Background()

		if resume != "" {
			if err := client.ResumeSession(ctx, resume); err != nil {
				return fmt.Errorf("failed to resume session %s: %w", resume, err)
			}
			printTranscript(client.Turns().Entries())
		}

		if audioFile != "" {
			return sendAudioFile(ctx, client, audioFile)
		}
		if message != "" {
			return client.Send(ctx, message)
		}
		return runInteractiveChat(ctx, client)
	},
}

func init() {
	chatCmd.Flags().StringP("message", "m", "", "send a single message and exit")
	chatCmd.Flags().String("audio-file", "", "send the audio file as a voice message and exit")
	chatCmd.Flags().String("resume", "", "resume a cached session by key (see 'conversa sessions')")
	chatCmd.Flags().String("save-audio", "", "append synthesized audio from responses to this file")
	rootCmd.AddCommand(chatCmd)
}

// buildChatClient wires the transport, authenticator, session store
// and reconciler from the loaded configuration.
func buildChatClient() (*services.ChatClient, storage.SessionStorage, error) {
	timeout := time.Duration(cfg.Gateway.Timeout) * time.Second

	auth := services.NewHTTPAuthenticator(cfg.Gateway.URL, cfg.Gateway.APIKey, 30*time.Second)
	chat := services.NewStreamingChatService(cfg.Gateway.URL, auth, timeout, services.RetryConfig{
		Enabled:           cfg.Retry.Enabled,
		MaxAttempts:       cfg.Retry.MaxAttempts,
		InitialBackoffSec: cfg.Retry.InitialBackoffSec,
		MaxBackoffSec:     cfg.Retry.MaxBackoffSec,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
	})

	store, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		logger.Warn("session storage unavailable, continuing without local mirror", "error", err)
		store = nil
	}

	client := services.NewChatClient(chat, auth, services.ChatClientOptions{
		EnableTools: cfg.Chat.EnableTools,
		ExpectAudio: cfg.Chat.ExpectAudio,
		Store:       store,
		Sink:        renderEvent,
	})
	return client, store, nil
}

// renderEvent prints live stream activity as it arrives.
func renderEvent(ev domain.ChatEvent) {
	se, ok := ev.(domain.ChatStreamEvent)
	if !ok {
		return
	}

	switch e := se.Event.(type) {
	case domain.TokenEvent:
		fmt.Print(e.Text)
	case domain.ToolEvent:
		status := domain.NormalizeToolStatus(e.Status)
		line := fmt.Sprintf("[tool] %s: %s", e.Tool, status)
		if e.LatencyMs != nil {
			line += fmt.Sprintf(" (%dms)", *e.LatencyMs)
		}
		fmt.Println(toolStyle.Render(line))
	case domain.LogEvent:
		fmt.Println(statusStyle.Render(e.Message))
	case domain.TranscriptEvent:
		if e.Text != "" {
			fmt.Println(statusStyle.Render("you said: " + e.Text))
		}
	case domain.AudioEvent:
		saveAudio(e.PayloadB64)
	case domain.DoneEvent:
		saveAudio(e.AudioB64)
		fmt.Println()
	}
}

var audioOutPath string

// saveAudio appends one decoded audio payload to the --save-audio
// target. Playback is out of scope; the raw bytes are kept as-is.
func saveAudio(payloadB64 string) {
	if audioOutPath == "" || payloadB64 == "" {
		return
	}
	if err := appendAudio(audioOutPath, payloadB64); err != nil {
		logger.Warn("failed to save audio payload", "path", audioOutPath, "error", err)
	}
}

func appendAudio(path, payloadB64 string) error {
	data, err := base64.StdEncoding.DecodeString(payloadB64)
	if err != nil {
		return fmt.Errorf("failed to decode audio payload: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audio file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	_, err = f.Write(data)
	return err
}

func runInteractiveChat(ctx context.Context, client *services.ChatClient) error {
	fmt.Println("Connected. Type a message, /new for a fresh conversation, /quit to exit.")

	// Ctrl+C cancels the in-flight turn instead of killing the process
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			client.Cancel()
			fmt.Println()
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("you> "))
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit", line == "/exit":
			return nil
		case line == "/new":
			client.NewSession()
			fmt.Println("Started a new conversation.")
			continue
		}

		if err := client.Send(ctx, line); err != nil {
			fmt.Println(errorStyle.Render("error: " + err.Error()))
		}
	}
}

func sendAudioFile(ctx context.Context, client *services.ChatClient, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read audio file: %w", err)
	}
	return client.SendVoice(ctx, base64.StdEncoding.EncodeToString(data))
}

func printTranscript(entries []domain.ConversationEntry) {
	for _, e := range entries {
		if e.Hidden {
			continue
		}
		switch e.Message.Role {
		case domain.RoleUser:
			fmt.Println(promptStyle.Render("you> ") + e.Message.Content)
		case domain.RoleAssistant:
			fmt.Println(e.Message.Content)
		}
	}
}
