package commands

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matrixor/tsg-officer/state"
	"github.com/matrixor/tsg-officer/workflow"
)

func newAnswerCmd(configPath, logLevel *string) *cobra.Command {
	var (
		attachPath string
		docPaths   []string
	)

	cmd := &cobra.Command{
		Use:   "answer <case-id> [text...]",
		Short: "Answer the pending question of a case",
		Long: `Answer the question a case is suspended on and run it forward.
Text arguments are joined into one answer; use --attach to provide a
diagram file instead (only its metadata is stored). --doc attaches a
text document whose contents join the checklist evidence.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), *configPath, *logLevel)
			if err != nil {
				return err
			}
			defer app.Close()

			ans := workflow.Answer{Value: strings.Join(args[1:], " ")}
			if attachPath != "" {
				upload, err := describeUpload(attachPath)
				if err != nil {
					return err
				}
				ans.Upload = upload
			}
			for _, p := range docPaths {
				doc, err := readDocument(p)
				if err != nil {
					return err
				}
				ans.Documents = append(ans.Documents, doc)
			}
			if ans.Value == "" && ans.Upload == nil && len(ans.Documents) == 0 {
				return fmt.Errorf("provide answer text, --attach, or --doc")
			}

			result, err := app.Engine.Resume(cmd.Context(), args[0], ans)
			if err != nil {
				return err
			}
			printResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&attachPath, "attach", "", "Diagram file to attach as upload metadata")
	cmd.Flags().StringArrayVar(&docPaths, "doc", nil, "Evidence document to attach (text content is stored; repeatable)")
	return cmd
}

// readDocument loads a text file as an evidence document.
func readDocument(path string) (state.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return state.Document{}, fmt.Errorf("read document: %w", err)
	}
	return state.Document{
		Name:   filepath.Base(path),
		Source: path,
		Text:   string(data),
	}, nil
}

// describeUpload stats and hashes the file; the bytes themselves never
// enter the case record.
func describeUpload(path string) (*state.DiagramFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat attachment: %w", err)
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("hash attachment: %w", err)
	}

	return &state.DiagramFile{
		Name:      filepath.Base(path),
		MimeType:  mime.TypeByExtension(filepath.Ext(path)),
		Path:      path,
		SizeBytes: info.Size(),
		SHA256:    hex.EncodeToString(h.Sum(nil)),
	}, nil
}
