package cli

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mizunoki/ragna/pkg/engine"
	"github.com/mizunoki/ragna/pkg/llm"
)

var (
	askExtended bool
	askImage    string
)

var askCmd = &cobra.Command{
	Use:   "ask <prompt>...",
	Short: "Ask a question against the knowledge base",
	Long: `Ask a question. The engine retrieves matching memory entries and
knowledge chunks, gates the answer on retrieval confidence, and cites
sources as [S#] markers.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().BoolVar(&askExtended, "extended", false, "allow a longer, multi-round answer")
	askCmd.Flags().StringVar(&askImage, "image", "", "attach an image file (png or jpeg)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	req := engine.AskRequest{
		Prompt:   strings.Join(args, " "),
		Extended: askExtended,
	}
	if askImage != "" {
		image, err := loadImage(askImage)
		if err != nil {
			return err
		}
		req.Image = image
	}

	resp, err := rt.engine.Ask(cmd.Context(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, resp.Response)

	if len(resp.Citations) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Sources:")
		for _, c := range resp.Citations {
			fmt.Fprintf(out, "  [S%d] %s (chunk %d, score %.3f)\n", c.S, c.Source, c.Index, c.Score)
		}
	}
	if resp.KnowledgeConfidence != "" {
		fmt.Fprintf(out, "\nConfidence: %s", resp.KnowledgeConfidence)
		if resp.Usage.TotalTokens > 0 {
			approx := ""
			if resp.Usage.Approximate {
				approx = " (approximate)"
			}
			fmt.Fprintf(out, " | Tokens: %d%s", resp.Usage.TotalTokens, approx)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func loadImage(path string) (*llm.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	var mime string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		mime = "image/png"
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	default:
		return nil, fmt.Errorf("unsupported image type %q (use png or jpeg)", filepath.Ext(path))
	}

	return &llm.Image{
		MimeType: mime,
		Base64:   base64.StdEncoding.EncodeToString(data),
	}, nil
}
