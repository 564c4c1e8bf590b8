package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"chatbank/internal/config"
	"chatbank/internal/engine"
	"chatbank/internal/logger"
	"chatbank/pkg/banktypes"
)

var (
	chatMode   string
	chatSearch bool
)

// chatCmd runs the interactive loop against the current session.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat loop",
	Long: `Start an interactive loop against the current session. Each line is sent as
a prompt; replies stream into the session and print when complete.

In-loop commands:
  /new          start a fresh session
  /mode <name>  switch engine mode (flash|ultra|local)
  /search       toggle web search grounding
  /exit         quit`,
	Run: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatMode, "mode", "flash", "Engine mode (flash|ultra|local)")
	chatCmd.Flags().BoolVar(&chatSearch, "search", false, "Ground replies with web search")
}

func runChat(cmd *cobra.Command, _ []string) {
	mode, err := parseMode(chatMode)
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
	if !ok {
		sess = st.CreateSession("")
	}
	coord := newCoordinator(cfg)
	search := chatSearch

	fmt.Printf("ChatBank v%s - sovereign AI chat\n", version)
	fmt.Printf("Session: %s (%s mode)\n", sess.Title, mode)
	fmt.Println("Type /exit to quit, /new for a fresh session.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			var quit bool
			sess, mode, search, quit = handleChatCommand(st, sess, mode, search, line)
			if quit {
				return
			}
			continue
		}

		reply, err := coord.Send(cmd.Context(), st, sess.ID, banktypes.GenerateRequest{
			Prompt: line,
			Mode:   mode,
			Search: search,
		})
		if err != nil {
			if errors.Is(err, engine.ErrSessionBusy) {
				fmt.Println("A reply is still being generated for this session.")
				continue
			}
			logger.Error("request failed", "error", err)
			continue
		}
		printReply(reply)
	}
}

func handleChatCommand(st storeAccess, sess *banktypes.Session, mode banktypes.EngineMode, search bool, line string) (*banktypes.Session, banktypes.EngineMode, bool, bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/exit", "/quit":
		return sess, mode, search, true
	case "/new":
		sess = st.CreateSession("")
		fmt.Println("Started a fresh session.")
	case "/mode":
		if len(fields) < 2 {
			fmt.Printf("Current mode: %s\n", mode)
			break
		}
		parsed, err := parseMode(fields[1])
		if err != nil {
			fmt.Println(err)
			break
		}
		mode = parsed
		fmt.Printf("Switched to %s.\n", mode)
	case "/search":
		search = !search
		fmt.Printf("Web search grounding: %v\n", search)
	default:
		fmt.Printf("Unknown command %s\n", fields[0])
	}
	return sess, mode, search, false
}

// storeAccess is the slice of the store the chat command loop needs.
type storeAccess interface {
	CreateSession(seedTitle string) *banktypes.Session
}
