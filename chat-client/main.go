package main

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/wifi-chat/chatclient"
	"github.com/gosuda/wifi-chat/chatwire"
)

var rootCmd = &cobra.Command{
	Use:   "chat-client",
	Short: "WiFi chat terminal client",
	RunE:  runClient,
}

var (
	flagServerURL string
	flagConfigDir string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagServerURL, "server-url", "ws://127.0.0.1:5000/ws", "chat server websocket URL")
	flags.StringVar(&flagConfigDir, "config-dir", "", "directory the device identity is stored in (defaults to the user config dir)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute client command")
	}
}

// uploadURL derives the upload endpoint from the websocket URL.
func uploadURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = "/upload"
	return u.String(), nil
}

func runClient(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir := flagConfigDir
	if dir == "" {
		d, err := chatclient.DefaultIdentityDir()
		if err != nil {
			return err
		}
		dir = d
	}
	deviceID, err := chatclient.LoadOrCreateDeviceID(dir)
	if err != nil {
		return err
	}

	upURL, err := uploadURL(flagServerURL)
	if err != nil {
		return err
	}

	ui := &terminalUI{}
	engine := chatclient.New(chatclient.Config{
		ServerURL: flagServerURL,
		UploadURL: upURL,
		DeviceID:  deviceID,
	}, ui, ui)

	engineDone := make(chan error, 1)
	go func() { engineDone <- engine.Run(ctx) }()

	fmt.Println("commands: /upload <path>, /menu <message-id>, /copy, /delete, /quit")
	input := bufio.NewScanner(os.Stdin)
	go func() {
		for input.Scan() {
			line := strings.TrimSpace(input.Text())
			switch {
			case line == "":
			case line == "/quit":
				stop()
				return
			case strings.HasPrefix(line, "/upload "):
				path := strings.TrimSpace(strings.TrimPrefix(line, "/upload "))
				go func() {
					if err := <-engine.Upload(path); err != nil {
						log.Debug().Err(err).Msg("[chat] upload")
					}
				}()
			case strings.HasPrefix(line, "/menu "):
				id := strings.TrimSpace(strings.TrimPrefix(line, "/menu "))
				engine.Gesture(chatclient.Gesture{Kind: chatclient.GesturePointerSecondary, MessageID: id})
			case line == "/copy":
				if err := engine.MenuSelect(chatclient.ActionCopy); err != nil {
					fmt.Printf("copy failed: %v\n", err)
				}
			case line == "/delete":
				if err := engine.MenuSelect(chatclient.ActionDelete); err != nil {
					fmt.Printf("delete failed: %v\n", err)
				}
			default:
				if err := engine.SendText(line); err != nil {
					fmt.Printf("send failed: %v\n", err)
				}
			}
		}
		stop()
	}()

	<-ctx.Done()
	return <-engineDone
}

// terminalUI is the smallest possible host surface: one line of output per
// engine signal. Real rendering lives outside this repo.
type terminalUI struct {
	lastCopied string
}

func formatMessage(m chatwire.Message) string {
	ts := m.Timestamp
	if t, err := time.Parse(time.RFC3339, m.Timestamp); err == nil {
		ts = t.Local().Format("15:04")
	}
	switch {
	case m.Deleted:
		return fmt.Sprintf("[%s] %s: (deleted) <%s>", ts, m.User, m.ID)
	case m.FileInfo != nil:
		return fmt.Sprintf("[%s] %s: [file] %s (%d bytes) %s <%s>", ts, m.User, m.FileInfo.OriginalName, m.FileInfo.FileSize, m.FileInfo.URL, m.ID)
	case m.IsCode:
		lang := m.Language
		if lang == "" {
			lang = "code"
		}
		return fmt.Sprintf("[%s] %s: [%s]\n%s\n<%s>", ts, m.User, lang, m.Body, m.ID)
	default:
		return fmt.Sprintf("[%s] %s: %s <%s>", ts, m.User, m.Body, m.ID)
	}
}

func (t *terminalUI) RenderAll(msgs []chatwire.Message) {
	fmt.Println("--- history ---")
	for _, m := range msgs {
		fmt.Println(formatMessage(m))
	}
}

func (t *terminalUI) RenderAppend(m chatwire.Message) { fmt.Println(formatMessage(m)) }

func (t *terminalUI) RenderUpdate(m chatwire.Message) {
	fmt.Printf("message %s was deleted\n", m.ID)
}

func (t *terminalUI) SetConnected(connected bool) {
	if connected {
		fmt.Println("* connected")
	} else {
		fmt.Println("* disconnected")
	}
}

func (t *terminalUI) SetTypingIndicator(visible bool, user string) {
	if visible {
		fmt.Printf("* %s is typing...\n", user)
	}
}

func (t *terminalUI) ShowUploadProgress(name string, fraction float64) {
	fmt.Printf("\ruploading %s: %3.0f%%", name, fraction*100)
}

func (t *terminalUI) HideUploadProgress() { fmt.Print("\r\n") }

func (t *terminalUI) ShowContextMenu(m chatclient.Menu) {
	actions := make([]string, len(m.Actions))
	for i, a := range m.Actions {
		actions[i] = string(a)
	}
	fmt.Printf("menu for %s: %s\n", m.MessageID, strings.Join(actions, ", "))
}

func (t *terminalUI) HideContextMenu() {}

func (t *terminalUI) SetUsername(name string) { fmt.Printf("* you are %s\n", name) }

func (t *terminalUI) SetOnlineCount(n int) { fmt.Printf("* %d online\n", n) }

func (t *terminalUI) ShowError(text string) { fmt.Printf("! %s\n", text) }

// WriteText implements the clipboard by remembering and echoing the copied
// text; a terminal has no system clipboard to speak of.
func (t *terminalUI) WriteText(text string) error {
	t.lastCopied = text
	fmt.Printf("copied: %s\n", text)
	return nil
}
