package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/dhcgn/kakaotalk-to-doc/state"
	"github.com/dhcgn/kakaotalk-to-doc/transcript"
)

// NewUploadCommand stores a transcript in the session slots so later
// conversions can run with --use-session.
func NewUploadCommand(setup Setup) *cobra.Command {
	var clearSession bool

	c := &cobra.Command{
		Use:   "upload [transcript.txt]",
		Short: "Store a KakaoTalk transcript for later conversion",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, cleanup, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			store, err := state.Open(cfg.StateBackend, cfg.StateDir)
			if err != nil {
				return fmt.Errorf("open state: %w", err)
			}
			defer store.Close()

			if clearSession {
				if err := state.ClearUpload(store); err != nil {
					return fmt.Errorf("clear session: %w", err)
				}
				pterm.Success.Println("Session cleared")
				return nil
			}

			path := cfg.InputPath
			if len(args) == 1 {
				path = args[0]
			}
			text, err := transcript.ReadText(path, transcript.Options{MaxSize: cfg.MaxInputSize})
			if err != nil {
				return err
			}

			upload := state.Upload{Text: text, Filename: filepath.Base(path)}
			if err := state.SaveUpload(store, upload); err != nil {
				return err
			}

			logger.Info("transcript stored", "file", upload.Filename, "bytes", len(text), "backend", cfg.StateBackend)
			pterm.Success.Printf("Stored %s (%d bytes)\n", upload.Filename, len(text))
			return nil
		},
	}

	c.Flags().BoolVar(&clearSession, "clear", false, "Remove the stored transcript instead of uploading")
	return c
}
