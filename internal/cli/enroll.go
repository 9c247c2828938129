package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"face-attendance-go/internal/core/enrollment"

	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <image|directory>",
	Short: "Register students from photos",
	Long: `Register a single student from one photo (requires --name and --roll), or
every photo in a directory. Files in a directory must be named
<roll>_<name>.<ext>, underscores in the name become spaces, e.g.
R17_Ada_Lovelace.jpg.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	enrollCmd.Flags().String("name", "", "Student name (single image)")
	enrollCmd.Flags().String("roll", "", "Roll number (single image)")
	enrollCmd.Flags().StringSlice("classes", nil, "Classes the student attends")
}

// imageExtensions sind die Dateiendungen, die im Verzeichnismodus gelesen werden
var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".bmp": true}

// parseEnrollFile zerlegt <roll>_<name>.<ext> in Rollennummer und Namen
func parseEnrollFile(file string) (roll, name string, ok bool) {
	ext := strings.ToLower(filepath.Ext(file))
	if !imageExtensions[ext] {
		return "", "", false
	}
	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	roll, rest, found := strings.Cut(base, "_")
	if !found || roll == "" {
		return "", "", false
	}
	name = strings.TrimSpace(strings.ReplaceAll(rest, "_", " "))
	if name == "" {
		return "", "", false
	}
	return roll, name, true
}

func runEnroll(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.withVision(); err != nil {
		return fmt.Errorf("failed to initialize vision service: %w", err)
	}
	enroller := enrollment.NewEnroller(a.vision, a.repo, a.cfg.Enrollment)
	classes := mustGetStringSlice(cmd, "classes")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	info, err := os.Stat(args[0])
	if err != nil {
		return err
	}
	if !info.IsDir() {
		name, roll := mustGetString(cmd, "name"), mustGetString(cmd, "roll")
		if name == "" || roll == "" {
			return errors.New("--name and --roll are required for a single image")
		}
		return enrollOne(ctx, enroller, args[0], name, roll, classes)
	}

	return enrollDir(ctx, enroller, args[0], classes)
}

func enrollOne(ctx context.Context, enroller *enrollment.Enroller, path, name, roll string, classes []string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	res, err := enroller.Enroll(ctx, enrollment.Request{Name: name, RollNumber: roll, Classes: classes, Image: data})
	if err != nil {
		return fmt.Errorf("enrolling %s: %w", name, err)
	}
	fmt.Printf("Enrolled %s (%s) with %d images in %s\n", res.Student.Name, res.Student.ID, len(res.Student.ImagePaths), res.Dir)
	return nil
}

func enrollDir(ctx context.Context, enroller *enrollment.Enroller, dir string, classes []string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, _, ok := parseEnrollFile(e.Name()); ok {
			files = append(files, e.Name())
		} else {
			log.Warnf("Skipping %s: expected <roll>_<name>.<ext>", e.Name())
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return fmt.Errorf("no enrollable images in %s", dir)
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Enrolling students"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("students"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var enrolled int
	var failures []string
	for _, file := range files {
		if ctx.Err() != nil {
			break
		}
		roll, name, _ := parseEnrollFile(file)
		data, err := os.ReadFile(filepath.Join(dir, file))
		if err == nil {
			_, err = enroller.Enroll(ctx, enrollment.Request{Name: name, RollNumber: roll, Classes: classes, Image: data})
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", file, err))
		} else {
			enrolled++
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	fmt.Printf("\nEnrolled %d of %d students\n", enrolled, len(files))
	for _, f := range failures {
		fmt.Printf("  failed %s\n", f)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d enrollments failed", len(failures))
	}
	return nil
}
