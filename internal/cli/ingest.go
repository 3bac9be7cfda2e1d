package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"ragline/internal/rag"
)

var (
	ingestSource string
	ingestJSON   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file|-]",
	Short: "Chunk, embed and index a document",
	Long: `Reads a document from a file, or from stdin when the argument is "-" or
missing, and stores, chunks, embeds and indexes it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "source kind recorded with the document (file or paste)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := "-"
	if len(args) == 1 {
		path = args[0]
	}

	text, err := readInput(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}

	source := ingestSource
	if source == "" {
		source = string(rag.SourcePaste)
		if path != "-" {
			source = string(rag.SourceFile)
		}
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()

	res, err := s.ingestor.Ingest(cmd.Context(), text, source)
	if err != nil {
		if res.DocumentID != "" {
			cmd.PrintErrf("document %s stored, %d chunks indexed before failure\n", res.DocumentID, res.NumberOfEmbeddings)
		}
		return fmt.Errorf("ingest failed: %w", err)
	}

	if ingestJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	cmd.Printf("Ingested document %s (%d embeddings)\n", res.DocumentID, res.NumberOfEmbeddings)
	return nil
}

func readInput(stdin io.Reader, path string) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path) // #nosec G304 -- path is the operator's own argument
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(b), nil
}
