package main

import (
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"classpeek/cmd/classpeek/ui"
)

var tuiWatch bool

// tuiCmd opens the interactive viewer
var tuiCmd = &cobra.Command{
	Use:   "tui [file.class]",
	Short: "Open the interactive classfile viewer",
	Long: `Opens a tabbed terminal viewer over the classfile. Navigate tabs with
tab/shift-tab or h/l, pick methods with j/k on the Methods tab, quit with q.

With --watch the viewer reparses and refreshes whenever the file changes
on disk.`,
	Args: cobra.ExactArgs(1),
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().BoolVarP(&tuiWatch, "watch", "w", false, "Reload the viewer when the file changes")
}

func runTUI(cmd *cobra.Command, args []string) error {
	path := args[0]
	cf, err := loadClassFile(path)
	if err != nil {
		return err
	}

	p := tea.NewProgram(ui.New(path, cf, cfg.UI.Theme), tea.WithAltScreen())

	var watcher *fsnotify.Watcher
	if tuiWatch {
		watcher, err = fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer watcher.Close()
		// Watch the directory; editors often replace the file instead of
		// writing it in place.
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		go watchLoop(watcher, path, p)
	}

	_, err = p.Run()
	return err
}

// watchLoop reparses path on every write or create event that touches it and
// feeds the result to the running program. It exits when the watcher closes.
func watchLoop(watcher *fsnotify.Watcher, path string, p *tea.Program) {
	abs, _ := filepath.Abs(path)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			evAbs, _ := filepath.Abs(event.Name)
			if evAbs != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger.Debug("classfile changed, reloading", zap.String("path", path))
			cf, err := loadClassFile(path)
			if err != nil {
				p.Send(ui.ReloadErrMsg{Err: err})
				continue
			}
			p.Send(ui.ReloadMsg{Class: cf})
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}
