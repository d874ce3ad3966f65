package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"vaultingest/internal/pipeline"
	"vaultingest/internal/upload"
)

// progressRenderer turns pipeline and chunk-level updates into terminal
// output. On a TTY it drives a single bar across the whole run; piped
// output gets one line per stage change instead.
type progressRenderer struct {
	out io.Writer
	tty bool

	bar       *progressbar.ProgressBar
	lastStage pipeline.Stage
}

func newProgressRenderer(out io.Writer) *progressRenderer {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &progressRenderer{out: out, tty: tty}
}

// begin resets the renderer for the next file in a batch.
func (p *progressRenderer) begin(filename string) {
	p.lastStage = ""
	if p.tty {
		p.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription(filename),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionClearOnFinish(),
		)
		return
	}
	fmt.Fprintf(p.out, "%s:\n", filename)
}

func (p *progressRenderer) observe(update pipeline.Update) {
	if p.tty {
		if p.bar != nil {
			p.bar.Describe(update.Stage.String())
			_ = p.bar.Set(update.Percent)
			if update.Stage == pipeline.StageComplete || update.Stage == pipeline.StageError {
				_ = p.bar.Finish()
			}
		}
		return
	}
	if update.Stage == p.lastStage {
		return
	}
	p.lastStage = update.Stage
	line := fmt.Sprintf("  %-11s %3d%%", update.Stage, update.Percent)
	if update.Message != "" {
		line += " " + update.Message
	}
	fmt.Fprintln(p.out, line)
}

func (p *progressRenderer) onTransfer(update upload.TransferUpdate) {
	if !p.tty || p.bar == nil {
		return
	}
	description := string(pipeline.StageUploading)
	if update.Message != "" {
		description += " " + update.Message
	}
	p.bar.Describe(description)
	_ = p.bar.Set(update.Percent)
}
