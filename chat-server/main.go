package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chat-server",
	Short: "WiFi chat room server (websocket hub + upload endpoint)",
	RunE:  runServer,
}

var (
	flagAddr      string
	flagDataPath  string
	flagUploadDir string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagAddr, "addr", ":5000", "listen address")
	flags.StringVar(&flagDataPath, "data-path", "", "optional directory to persist chat history via PebbleDB")
	flags.StringVar(&flagUploadDir, "upload-dir", "uploads", "directory uploaded files are stored in")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute server command")
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(flagUploadDir, 0o755); err != nil {
		return err
	}

	h := newHub()

	var store *historyStore
	if flagDataPath != "" {
		s, err := openHistoryStore(flagDataPath)
		if err != nil {
			log.Warn().Err(err).Msg("[chat] open store failed; running in memory only")
		} else {
			store = s
			if msgs, err := store.LoadRecent(memoryCap); err != nil {
				log.Warn().Err(err).Msg("[chat] load history failed")
			} else if len(msgs) > 0 {
				h.bootstrap(msgs)
				log.Info().Msgf("[chat] loaded %d messages from store", len(msgs))
			}
			h.attachStore(store)
		}
	}

	// Hourly retention: messages and device sessions both age out after a
	// day.
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.sweep()
			}
		}
	}()

	handler := NewHandler(h, flagUploadDir)
	srv := &http.Server{
		Addr:              flagAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().Msgf("[chat] serving at http://%s%s", localIP(), flagAddr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("[chat] http server error")
		}
	}()

	<-ctx.Done()
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("[chat] http server shutdown error")
	}
	h.closeAll()
	h.wait()
	if err := store.Close(); err != nil {
		log.Warn().Err(err).Msg("[chat] store close error")
	}
	log.Info().Msg("[chat] shutdown complete")
	return nil
}

// localIP guesses the LAN address so the startup log prints something other
// devices can actually reach.
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer func() { _ = conn.Close() }()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}
