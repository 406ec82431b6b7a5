// Package tui provides the terminal pieces of the tierup CLI.
//
// ConfirmModel is a small bubbletea program that asks for cost approval and
// backs Confirmer, which satisfies workflow.Confirmer. RenderSummary and
// RenderStats format run results and stored statistics with lipgloss.
//
// Usage:
//
//	wf, _ := workflow.New(gen, workflow.WithConfirmer(tui.NewConfirmer(os.Stdin, os.Stdout)))
//	res, err := wf.Run(ctx, task)
//	fmt.Println(tui.RenderSummary(res))
package tui
