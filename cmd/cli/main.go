package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"literature-agent-be/internal/bootstrap"
	"literature-agent-be/internal/config"
	"literature-agent-be/pkg/agent"
	"literature-agent-be/pkg/ai/router"
	"literature-agent-be/pkg/session"
	"literature-agent-be/pkg/stream"

	"github.com/fatih/color"
)

const help = `Commands:
  :load <file.pdf>        load a paper
  :status                 show session status
  :figures                list figures
  :split [n ...]          segment figures ahead of time
  :gen report|ppt [text]  generate a report or slide deck
  :quit                   exit
Anything else is sent as a question, e.g. "Figure 2a展示了什么？" or "/ppt focus on results".`

func main() {
	cfg := config.Load()
	cfg.App.LogFilePath = "logs/cli.log"

	container, err := bootstrap.NewConsoleContainer(nil, cfg)
	if err != nil {
		color.Red("bootstrap failed: %v", err)
		os.Exit(1)
	}
	defer container.Close()

	ctrl := container.Sessions.Open("")
	color.Cyan("Literature agent, session %s", ctrl.ID())
	fmt.Println(help)

	if len(os.Args) > 1 {
		load(ctrl, os.Args[1])
	}

	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		color.New(color.FgHiBlack).Print("\n> ")
		if !in.Scan() {
			return
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case ":quit", ":q":
			return
		case ":help":
			fmt.Println(help)
		case ":load":
			if len(fields) < 2 {
				color.Red("usage: :load <file.pdf>")
				continue
			}
			load(ctrl, strings.TrimSpace(strings.TrimPrefix(line, ":load")))
		case ":status":
			st := ctrl.Status()
			fmt.Printf("loaded=%v document=%q pages=%d figures=%d segmented=%d turns=%d\n",
				st.Loaded, st.Document, st.Pages, st.Figures, st.Segmented, st.Turns)
		case ":figures":
			listFigures(ctrl)
		case ":split":
			split(ctrl, fields[1:])
		case ":gen":
			if len(fields) < 2 || !router.Intent(fields[1]).IsGeneration() {
				color.Red("usage: :gen report|ppt [instruction]")
				continue
			}
			opts := agent.GenerateOptions{
				Type:           router.Intent(fields[1]),
				IncludeFigures: true,
				Instruction:    strings.Join(fields[2:], " "),
			}
			run(func(ctx context.Context) <-chan stream.Event { return ctrl.Generate(ctx, opts) })
		default:
			run(func(ctx context.Context) <-chan stream.Event { return ctrl.Query(ctx, line) })
		}
	}
}

func load(ctrl *session.Controller, path string) {
	color.Yellow("Loading %s…", path)
	snap, err := ctrl.Load(context.Background(), path)
	if err != nil {
		color.Red("load failed: %v", err)
		return
	}
	color.Green("Loaded %s: %d pages, %d figures", snap.Document.Name, snap.Document.Pages, snap.Figures.Len())
}

func listFigures(ctrl *session.Controller) {
	snap := ctrl.Current()
	if !snap.HasDocument() {
		color.Red("%v", session.ErrNoDocument)
		return
	}
	for _, f := range snap.Figures.Figures() {
		line := fmt.Sprintf("%-10s p.%-3d %s", f.Label, f.Page, f.Caption)
		if subs, ok := snap.Figures.Subfigures(f.Number); ok {
			labels := make([]string, 0, len(subs))
			for _, s := range subs {
				labels = append(labels, s.Label)
			}
			line += color.HiBlackString("  [%s]", strings.Join(labels, ","))
		}
		fmt.Println(line)
	}
}

func split(ctrl *session.Controller, args []string) {
	snap := ctrl.Current()
	if !snap.HasDocument() {
		color.Red("%v", session.ErrNoDocument)
		return
	}
	var numbers []int
	for _, a := range args {
		var n int
		if _, err := fmt.Sscan(a, &n); err == nil && n > 0 {
			numbers = append(numbers, n)
		}
	}
	n, err := ctrl.Prewarm(context.Background(), snap.Document.ID, numbers)
	if err != nil {
		color.Red("split failed: %v", err)
		return
	}
	color.Green("Segmented %d figure(s)", n)
}

// run streams one call; Ctrl-C cancels the call, not the program
func run(start func(ctx context.Context) <-chan stream.Event) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	streaming := false
	for ev := range start(ctx) {
		if streaming && ev.Type != stream.TypeAnswerChunk {
			fmt.Println()
			streaming = false
		}
		switch ev.Type {
		case stream.TypeAnswerChunk:
			fmt.Print(ev.Content)
			streaming = true
		case stream.TypeAnswer:
			fmt.Println(ev.Content)
		case stream.TypeStatus, stream.TypeThinking:
			color.HiBlack("· %s", ev.Content)
		case stream.TypeProgress:
			if p, ok := ev.Data.(stream.ProgressData); ok {
				color.Blue("[%d/%d %s] %s", p.Step, p.Total, p.Stage, ev.Content)
			}
		case stream.TypeFigure:
			color.Magenta("▣ %s  %s", ev.Content, ev.FilePath)
		case stream.TypeDownload:
			color.Green("⤓ %s", ev.FilePath)
		case stream.TypeComplete:
			color.HiBlack("✓ done")
		case stream.TypeError:
			color.Red("✗ %s", ev.Content)
		}
	}
	if streaming {
		fmt.Println()
	}
	if ctx.Err() != nil {
		color.Yellow("cancelled")
	}
}
