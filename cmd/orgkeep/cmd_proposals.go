package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dcruver/orgkeep/internal/errs"
)

var approveProposalCmd = &cobra.Command{
	Use:   "approve-proposal <id>",
	Short: "Approve a pending proposal so it can be applied",
	Args:  cobra.ExactArgs(1),
	RunE:  runApproveProposal,
}

var listProposalsCmd = &cobra.Command{
	Use:   "list-proposals",
	Short: "List every proposal in the patch store",
	RunE:  runListProposals,
}

var showProposalCmd = &cobra.Command{
	Use:   "show-proposal <id>",
	Short: "Show one proposal's rationale and unified diff",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowProposal,
}

var applyProposalCmd = &cobra.Command{
	Use:   "apply-proposal <id>",
	Short: "Apply a pending or approved proposal's patch to its note",
	Args:  cobra.ExactArgs(1),
	RunE:  runApplyProposal,
}

var rejectProposalCmd = &cobra.Command{
	Use:   "reject-proposal <id>",
	Short: "Reject a pending proposal without touching its note",
	Args:  cobra.ExactArgs(1),
	RunE:  runRejectProposal,
}

func runListProposals(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	proposals := rt.env.Store.ListProposals()
	if len(proposals) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no proposals")
		return nil
	}
	for _, p := range proposals {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s %-24s %s\n", p.ID, p.Status, p.ActionName, p.NoteID)
	}
	return nil
}

func runShowProposal(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	p, ok := rt.env.Store.GetProposal(args[0])
	if !ok {
		return fmt.Errorf("no such proposal: %s", args[0])
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:        %s\n", p.ID)
	fmt.Fprintf(out, "note:      %s (%s)\n", p.NoteID, p.Path)
	fmt.Fprintf(out, "action:    %s\n", p.ActionName)
	fmt.Fprintf(out, "status:    %s\n", p.Status)
	fmt.Fprintf(out, "rationale: %s\n\n", p.Rationale)
	fmt.Fprintln(out, p.Patch)
	return nil
}

func runApproveProposal(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	if err := rt.env.Store.Approve(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "approved %s\n", args[0])
	return nil
}

// runApplyProposal approves a still-Pending proposal on the caller's
// behalf (running this command is the review decision) and then applies
// its stored patch, backing up the note first.
func runApplyProposal(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	p, ok := rt.env.Store.GetProposal(args[0])
	if !ok {
		return fmt.Errorf("no such proposal: %s", args[0])
	}
	if p.Status == "Pending" {
		if err := rt.env.Store.Approve(p.ID); err != nil {
			return err
		}
	}

	current, err := os.ReadFile(p.Path)
	if err != nil {
		return &errs.IoError{Path: p.Path, Detail: "read note before apply", Err: err}
	}

	applied, err := rt.env.Store.ApplyProposal(p.ID, string(current))
	if err != nil {
		return err
	}

	if err := writeRawFile(p.Path, applied, rt.env.Store); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "applied %s to %s\n", p.ID, p.Path)
	return nil
}

func runRejectProposal(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	if err := rt.env.Store.Reject(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rejected %s\n", args[0])
	return nil
}

// writeRawFile backs up path (when it exists) then replaces its content
// via the scoped temp-write-then-rename pattern internal/notes.WriteFile
// uses, so a crash never leaves a half-written file in place.
func writeRawFile(path, content string, backup interface {
	Backup(path string) (string, error)
}) error {
	if _, statErr := os.Stat(path); statErr == nil {
		if _, err := backup.Backup(path); err != nil {
			return fmt.Errorf("backup before write: %w", err)
		}
	}

	tmp := path + ".orgkeep-tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return &errs.IoError{Path: path, Detail: "write temp file", Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &errs.IoError{Path: path, Detail: "rename into place", Err: err}
	}
	return nil
}
