package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"imnci-mentorship/internal/checklist"
	"imnci-mentorship/internal/domain"
)

// scoreReport is what the score command prints.
type scoreReport struct {
	Session             string           `yaml:"session"`
	Status              domain.Status    `yaml:"status"`
	HighestCompleteStep int              `yaml:"highestCompleteStep"`
	FinalStep           int              `yaml:"finalStep"`
	Scores              domain.ScoreTree `yaml:"scores"`
	Percent             map[string]int   `yaml:"percent"`
}

// NewScoreCmd recomputes the scores of a persisted session offline.
func NewScoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score <session.json>",
		Short: "Rehydrate a persisted session file and print its score tree as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return scoreFile(args[0], cmd.OutOrStdout())
		},
	}
}

func scoreFile(path string, out io.Writer) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	engine := checklist.NewEngine(checklist.IMNCI())
	v := engine.View(engine.Rehydrate(session))

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(scoreReport{
		Session:             session.ID,
		Status:              session.Status,
		HighestCompleteStep: v.HighestCompleteStep,
		FinalStep:           v.FinalStep,
		Scores:              v.Scores,
		Percent:             v.Percent,
	})
}
