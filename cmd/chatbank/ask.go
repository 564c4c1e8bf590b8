package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"chatbank/internal/config"
	"chatbank/internal/logger"
	"chatbank/pkg/banktypes"
)

var (
	askMode      string
	askSearch    bool
	askImagePath string
	askNew       bool
)

// askCmd sends a single prompt and prints the rendered reply.
var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Send one prompt and print the reply",
	Long: `Send a single prompt to the configured engine and print the rendered reply.
The exchange is appended to the current session unless --new is given.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askMode, "mode", "flash", "Engine mode (flash|ultra|local)")
	askCmd.Flags().BoolVar(&askSearch, "search", false, "Ground the reply with web search")
	askCmd.Flags().StringVar(&askImagePath, "image", "", "Attach an image file to the prompt")
	askCmd.Flags().BoolVar(&askNew, "new", false, "Start a fresh session for this prompt")
}

func runAsk(cmd *cobra.Command, args []string) {
	mode, err := parseMode(askMode)
	if err != nil {
		logger.Fatal("invalid mode", "error", err)
	}

	cfg := config.Load()
	st, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Fatal("failed to open session store", "error", err)
	}
	defer closeStore()

	sess, ok := st.Current()
	if askNew || !ok {
		sess = st.CreateSession("")
	}

	req := banktypes.GenerateRequest{
		Prompt: strings.Join(args, " "),
		Mode:   mode,
		Search: askSearch,
	}
	if askImagePath != "" {
		data, mimeType, err := readImageFile(askImagePath)
		if err != nil {
			logger.Fatal("failed to read image", "path", askImagePath, "error", err)
		}
		req.ImageData = data
		req.ImageMIMEType = mimeType
	}

	coord := newCoordinator(cfg)
	reply, err := coord.Send(cmd.Context(), st, sess.ID, req)
	if err != nil {
		logger.Fatal("request failed", "error", err)
	}

	printReply(reply)
}

// printReply renders the model text as markdown and appends grounding
// sources and timing when present.
func printReply(msg *banktypes.Message) {
	rendered, err := glamour.Render(msg.Text(), "dark")
	if err != nil {
		rendered = msg.Text() + "\n"
	}
	fmt.Print(rendered)

	for _, part := range msg.Content {
		if part.Image != "" {
			fmt.Printf("[image] %d bytes of image data attached\n", len(part.Image))
		}
	}
	if len(msg.Sources) > 0 {
		fmt.Println("Sources:")
		for _, src := range msg.Sources {
			fmt.Printf("  - %s (%s)\n", src.Title, src.URI)
		}
	}
	if msg.ModelName != "" || msg.LatencyMs > 0 {
		fmt.Printf("[%s · %dms]\n", msg.ModelName, msg.LatencyMs)
	}
}

func readImageFile(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	mimeType := "image/jpeg"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		mimeType = "image/png"
	case ".webp":
		mimeType = "image/webp"
	case ".gif":
		mimeType = "image/gif"
	}
	return data, mimeType, nil
}
