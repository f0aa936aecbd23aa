package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/neurobridge-tutor/internal/app"
	"github.com/yungbote/neurobridge-tutor/internal/services"
)

type ingestReport struct {
	Ingested int         `json:"ingested"`
	ChunkIDs []uuid.UUID `json:"chunk_ids"`
}

func (r *root) ingestCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed, store and index content chunks from a YAML file",
		Long:  "Reads a YAML list of chunks (content, topic, subject_area, difficulty_level, format_type, ...). Use --file - for stdin.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := openInput(cmd, file)
			if err != nil {
				return err
			}
			defer in.Close()
			chunks, err := readChunks(in)
			if err != nil {
				return err
			}
			return r.withApp(cmd, r.config(), func(a *app.App) error {
				report := ingestReport{ChunkIDs: []uuid.UUID{}}
				for i, c := range chunks {
					chunk, err := a.Services.Ingest.Ingest(cmd.Context(), c)
					if err != nil {
						return fmt.Errorf("chunk %d (%s): %w", i, c.Topic, err)
					}
					report.Ingested++
					report.ChunkIDs = append(report.ChunkIDs, chunk.ID)
				}
				return writeJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML file with the chunks to ingest")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chunk file: %w", err)
	}
	return f, nil
}

// readChunks accepts either a bare list or a document with a chunks key.
func readChunks(r io.Reader) ([]services.IngestInput, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read chunk file: %w", err)
	}
	var list []services.IngestInput
	if err := yaml.Unmarshal(raw, &list); err != nil {
		var doc struct {
			Chunks []services.IngestInput `yaml:"chunks"`
		}
		if derr := yaml.Unmarshal(raw, &doc); derr != nil {
			return nil, fmt.Errorf("parse chunk file: %w", err)
		}
		list = doc.Chunks
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("chunk file has no chunks")
	}
	return list, nil
}
