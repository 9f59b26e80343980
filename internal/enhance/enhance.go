// Package enhance runs the external speech-enhancement model and
// locates the artifact it produces. The model is an opaque transform:
// it reports no progress and does not contract its output path, so the
// produced file has to be discovered after the fact.
package enhance

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Runner executes the enhancement transform for one input file, writing
// its artifacts somewhere under workDir.
type Runner interface {
	Run(ctx context.Context, inputPath, workDir string) error
}

// CommandRunner invokes the model as an external command. The command
// is non-interruptible and non-progress-reporting; the caller bounds it
// with a hard deadline on ctx, and SoftTimeout only triggers a warning.
type CommandRunner struct {
	Command     string
	ModelName   string
	SoftTimeout time.Duration
}

func (r *CommandRunner) Run(ctx context.Context, inputPath, workDir string) error {
	if r.SoftTimeout > 0 {
		timer := time.AfterFunc(r.SoftTimeout, func() {
			log.Printf("enhance: %s still running after %s (soft limit), input=%s",
				r.Command, r.SoftTimeout, inputPath)
		})
		defer timer.Stop()
	}

	cmd := exec.CommandContext(ctx, r.Command,
		"--task", "speech_enhancement",
		"--model", r.ModelName,
		"--input", inputPath,
		"--output", workDir,
	)
	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("enhancement exceeded hard time limit: %w", ctx.Err())
	}
	if err != nil {
		return fmt.Errorf("enhancement command failed: %w\n%s", err, out)
	}
	return nil
}

var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".ogg":  true,
}

// Snapshot lists the file names currently in dir. A missing directory
// yields an empty snapshot.
func Snapshot(dir string) map[string]bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return map[string]bool{}
	}
	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name()] = true
	}
	return names
}

// DiscoverOutput locates the artifact the model produced under workDir.
// The model normally writes into a subdirectory named after itself; in
// that case the most recently modified audio file there wins. Otherwise
// the workDir listing is diffed against the pre-run snapshot and exactly
// one new file is expected. Anything else is an error: the output is
// ambiguous or missing and the job must fail.
func DiscoverOutput(workDir, modelName string, before map[string]bool) (string, error) {
	modelDir := filepath.Join(workDir, modelName)
	if fi, err := os.Stat(modelDir); err == nil && fi.IsDir() {
		return newestAudioFile(modelDir)
	}

	after := Snapshot(workDir)
	var created []string
	for name := range after {
		if !before[name] {
			created = append(created, name)
		}
	}
	switch len(created) {
	case 0:
		return "", fmt.Errorf("no output file created in %s", workDir)
	case 1:
		return filepath.Join(workDir, created[0]), nil
	default:
		return "", fmt.Errorf("ambiguous output: %d new files in %s", len(created), workDir)
	}
}

func newestAudioFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !audioExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = e.Name()
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no audio files found in %s", dir)
	}
	return filepath.Join(dir, newest), nil
}
