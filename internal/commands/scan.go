package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"welth/internal/cli"
)

func newScanCommand(opts *rootOptions) *cobra.Command {
	var mimeType, baseURL, model string

	cmd := &cobra.Command{
		Use:   "scan <image>",
		Short: "Extract transaction fields from a receipt image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading receipt: %w", err)
			}
			if mimeType == "" {
				mimeType = http.DetectContentType(image)
			}

			cfg, logger := opts.load()
			if baseURL != "" {
				cfg.ReceiptBaseURL = baseURL
			}
			if model != "" {
				cfg.ReceiptModel = model
			}
			scanner := cli.InitScanner(logger, cfg)
			if scanner == nil {
				return errors.New("receipt scanning requires GEMINI_API_KEY")
			}

			scanned, err := scanner.Scan(cmd.Context(), image, mimeType)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(scanned)
		},
	}

	cmd.Flags().StringVar(&mimeType, "mime", "", "image MIME type (default: detected from content)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "OpenAI-compatible endpoint (default $RECEIPT_BASE_URL)")
	cmd.Flags().StringVar(&model, "model", "", "model name (default $RECEIPT_MODEL)")
	return cmd
}
