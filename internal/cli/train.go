package cli

import (
	"fmt"

	"face-attendance-go/internal/core/models"
	"face-attendance-go/internal/db/repository"

	"github.com/spf13/cobra"
)

var trainCmd = &cobra.Command{
	Use:   "train <class>",
	Short: "Train the recognizer on the roster of a class",
	Long: `Train the LBPH recognizer on every enrolled student of a class and store
the model at the configured model file. Use "all" to train on every student.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(_ *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	className := args[0]
	roster, err := loadRoster(a.repo, className)
	if err != nil {
		return err
	}

	if err := a.withVision(); err != nil {
		return fmt.Errorf("failed to initialize vision service: %w", err)
	}
	n, err := a.vision.Train(className, roster)
	if err != nil {
		return err
	}

	fmt.Printf("Trained on %d of %d students of %s\n", n, len(roster), className)
	if a.cfg.Recognition.ModelFile != "" {
		fmt.Printf("Model stored at %s\n", a.cfg.Recognition.ModelFile)
	}
	return nil
}

// loadRoster liefert die Studenten einer Klasse oder bei "all" alle Studenten
func loadRoster(repo *repository.SQLiteRepository, className string) ([]models.Student, error) {
	if className == "all" || className == repository.AllClasses {
		return repo.ListStudents()
	}
	class, err := repo.GetClassByName(className)
	if err != nil {
		return nil, err
	}
	if class == nil {
		return nil, fmt.Errorf("class %q not found", className)
	}
	roster, err := repo.GetRoster(className)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	return roster, nil
}
