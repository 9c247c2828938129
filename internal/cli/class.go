package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"face-attendance-go/internal/api/handlers"
	"face-attendance-go/internal/core/models"

	"github.com/spf13/cobra"
)

var classCmd = &cobra.Command{
	Use:   "class",
	Short: "Manage classes and their weekly schedule",
}

var classAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a class",
	Long: `Add a class with its weekly schedule. Without --days, --start and --end
the class runs Monday to Friday from 09:00 to 10:00.`,
	Args: cobra.ExactArgs(1),
	RunE: runClassAdd,
}

var classListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all classes",
	Args:  cobra.NoArgs,
	RunE:  runClassList,
}

var classDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a class",
	Args:  cobra.ExactArgs(1),
	RunE:  runClassDelete,
}

func init() {
	rootCmd.AddCommand(classCmd)
	classCmd.AddCommand(classAddCmd, classListCmd, classDeleteCmd)

	classAddCmd.Flags().String("description", "", "Class description")
	classAddCmd.Flags().StringSlice("days", nil, "Weekdays, e.g. Monday,Wednesday")
	classAddCmd.Flags().String("start", "", "Start time (HH:MM)")
	classAddCmd.Flags().String("end", "", "End time (HH:MM)")
}

func runClassAdd(cmd *cobra.Command, args []string) error {
	req := handlers.ClassRequest{
		Name:        args[0],
		Description: mustGetString(cmd, "description"),
		Days:        mustGetStringSlice(cmd, "days"),
		StartTime:   mustGetString(cmd, "start"),
		EndTime:     mustGetString(cmd, "end"),
	}
	if !req.Validate() {
		return errors.New("invalid class: name is required and start must be before end (HH:MM)")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	class := &models.Class{
		Name:        req.Name,
		Description: req.Description,
		Days:        req.Days,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	}
	id, err := a.repo.AddClass(class)
	if err != nil {
		return err
	}
	fmt.Printf("Added class %s (%s): %s %s-%s\n", class.Name, id, strings.Join(class.Days, ","), class.StartTime, class.EndTime)
	return nil
}

func runClassList(_ *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	classes, err := a.repo.ListClasses()
	if err != nil {
		return err
	}
	if len(classes) == 0 {
		fmt.Println("No classes")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDAYS\tSTART\tEND\tID")
	for _, c := range classes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.Name, strings.Join(c.Days, ","), c.StartTime, c.EndTime, c.ID)
	}
	return w.Flush()
}

func runClassDelete(_ *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	class, err := a.repo.GetClassByName(args[0])
	if err != nil {
		return err
	}
	if class == nil {
		return fmt.Errorf("class %q not found", args[0])
	}
	if err := a.repo.DeleteClass(class.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted class %s\n", class.Name)
	return nil
}
