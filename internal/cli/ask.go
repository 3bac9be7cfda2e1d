package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	askPlain bool
	askTopK  int
	askJSON  bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the indexed documents",
	Long: `Retrieves the chunks most similar to the question and asks the completion
model to answer from them. With --plain the question goes to the model as is.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askPlain, "plain", false, "ask the model directly without retrieval")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks to retrieve (0 uses the stored setting)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer and its context as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()

	if askPlain {
		reply, err := s.retriever.Ask(cmd.Context(), question)
		if err != nil {
			return fmt.Errorf("ask failed: %w", err)
		}
		cmd.Println(reply)
		return nil
	}

	ans, err := s.retriever.AskWithContext(cmd.Context(), question, askTopK)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		data, err := json.MarshalIndent(ans, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(ans.Answer)
	if len(ans.Context) > 0 {
		cmd.Println()
		cmd.Printf("Sources (%d chunks):\n", len(ans.Context))
		for _, r := range ans.Context {
			cmd.Printf("  [%d] %s #%d (%.2f)\n", r.Rank+1, r.DocumentID, r.Ordinal, r.Score)
		}
	}
	return nil
}
