package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"face-attendance-go/internal/core/attendance"
	"face-attendance-go/internal/core/models"

	"github.com/spf13/cobra"
)

var markCmd = &cobra.Command{
	Use:   "mark <class> <image>",
	Short: "Record attendance for a class from one photo",
	Long: `Train the recognizer on the roster of the class, recognize the faces in
the photo and run one attendance pass. Recognized students are marked
present or late, everyone else on the roster is marked absent.`,
	Args: cobra.ExactArgs(2),
	RunE: runMark,
}

func init() {
	rootCmd.AddCommand(markCmd)
	markCmd.Flags().Bool("single", false, "Reject photos that show more than one face")
}

func runMark(cmd *cobra.Command, args []string) error {
	className, imagePath := args[0], args[1]

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.withVision(); err != nil {
		return fmt.Errorf("failed to initialize vision service: %w", err)
	}

	manager := attendance.NewManager(a.repo, a.cfg.Attendance)
	live := attendance.NewLiveSession(manager, a.vision)
	if _, err := live.SelectClass(className); err != nil {
		return fmt.Errorf("selecting class %s: %w", className, err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	capture, err := live.Capture(ctx, data, mustGetBool(cmd, "single"))
	if err != nil {
		return err
	}

	printCapture(capture)
	return nil
}

func printCapture(capture *attendance.Capture) {
	switch capture.Outcome.Kind {
	case models.OutcomeNoFace:
		fmt.Println("No face detected")
		return
	case models.OutcomeMultiplePeople:
		fmt.Printf("Multiple people detected (%d faces), nothing recorded\n", capture.Outcome.FaceCount)
		return
	}
	if capture.Pass == nil {
		fmt.Println("No enrolled student recognized, nothing recorded")
		return
	}

	pass := capture.Pass
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STUDENT\tSTATUS\tIN\tMARKED BY\tCONFIDENCE")
	for _, rec := range pass.Records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\n", rec.StudentID, rec.Status, rec.InTime, rec.MarkedBy, rec.Confidence)
	}
	_ = w.Flush()

	if len(pass.AlreadyMarked) > 0 {
		fmt.Printf("Already marked: %d\n", len(pass.AlreadyMarked))
	}
	fmt.Printf("%s %s: %d/%d present (%.1f%%)\n",
		pass.Class, pass.Date, pass.Summary.Present, pass.Summary.Total, pass.Summary.Percentage)
}
