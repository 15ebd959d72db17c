package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"docflow/internal/domain"
	"docflow/internal/engine"
)

type docTransition func(ctx context.Context, e engine.Engine, actor domain.Actor, id string) (domain.Document, error)

// docTransitionCmd builds a command that runs fn on --id and prints the result.
func docTransitionCmd(use, short string, fn docTransition) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				d, err := fn(ctx, e, actor, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "document id")
	return cmd
}

func inboundCmd() *cobra.Command {
	in := &cobra.Command{
		Use:   "inbound",
		Short: "Incoming documents",
		Long:  "TIEP_NHAN -> DANG_KY -> PHAN_CONG -> DANG_XU_LY -> HOAN_TAT -> LUU_TRU; withdraw to THU_HOI while in progress.",
	}
	in.AddCommand(inboundIntakeCmd())
	in.AddCommand(inboundRegisterCmd())
	in.AddCommand(inboundAssignCmd())

	start := docTransitionCmd("start", "Start processing (assignees only)", func(ctx context.Context, e engine.Engine, a domain.Actor, id string) (domain.Document, error) {
		return e.Inbound().StartProcessing(ctx, a, id)
	})
	in.AddCommand(start)

	var note string
	complete := docTransitionCmd("complete", "Complete processing", func(ctx context.Context, e engine.Engine, a domain.Actor, id string) (domain.Document, error) {
		return e.Inbound().Complete(ctx, a, id, note)
	})
	complete.Flags().StringVar(&note, "note", "", "completion note")
	in.AddCommand(complete)

	var archiveReason string
	archive := docTransitionCmd("archive", "Archive a completed document", func(ctx context.Context, e engine.Engine, a domain.Actor, id string) (domain.Document, error) {
		return e.Inbound().Archive(ctx, a, id, archiveReason)
	})
	archive.Flags().StringVar(&archiveReason, "reason", "", "archive reason")
	in.AddCommand(archive)

	var withdrawReason string
	withdraw := docTransitionCmd("withdraw", "Withdraw a document in progress", func(ctx context.Context, e engine.Engine, a domain.Actor, id string) (domain.Document, error) {
		return e.Inbound().Withdraw(ctx, a, id, withdrawReason)
	})
	withdraw.Flags().StringVar(&withdrawReason, "reason", "", "withdraw reason (required)")
	in.AddCommand(withdraw)
	return in
}

func inboundIntakeCmd() *cobra.Command {
	var in engine.IntakeInput
	var dept int64
	cmd := &cobra.Command{
		Use:   "intake",
		Short: "Record a received document",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.DepartmentID = optionalInt64(dept)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				d, err := e.Inbound().Intake(ctx, actor, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&in.ID, "id", "", "document id (generated when empty)")
	cmd.Flags().StringVar(&in.Title, "title", "", "title")
	cmd.Flags().StringVar(&in.Summary, "summary", "", "summary")
	cmd.Flags().Int64Var(&dept, "department-id", 0, "department id")
	cmd.Flags().StringVar(&in.Note, "note", "", "intake note")
	return cmd
}

func inboundRegisterCmd() *cobra.Command {
	var in engine.RegisterInput
	cmd := docTransitionCmd("register", "Register received number, date and sender", func(ctx context.Context, e engine.Engine, a domain.Actor, id string) (domain.Document, error) {
		return e.Inbound().Register(ctx, a, id, in)
	})
	cmd.Flags().Int64Var(&in.ReceivedNumber, "number", 0, "received number")
	cmd.Flags().StringVar(&in.ReceivedDate, "date", "", "received date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&in.Sender, "sender", "", "sending organisation")
	return cmd
}

func inboundAssignCmd() *cobra.Command {
	var in engine.AssignInput
	cmd := docTransitionCmd("assign", "Assign handlers", func(ctx context.Context, e engine.Engine, a domain.Actor, id string) (domain.Document, error) {
		return e.Inbound().Assign(ctx, a, id, in)
	})
	cmd.Flags().StringSliceVar(&in.Assignees, "assignee", nil, "assignee actor id (repeatable)")
	cmd.Flags().StringVar(&in.Instruction, "instruction", "", "instruction for assignees")
	cmd.Flags().StringVar(&in.DueAt, "due", "", "due date")
	return cmd
}

func outboundCmd() *cobra.Command {
	out := &cobra.Command{
		Use:   "outbound",
		Short: "Outgoing documents",
		Long:  "DU_THAO -> TRINH_DUYET -> PHE_DUYET -> KY_SO -> PHAT_HANH -> LUU_TRU; TRA_LAI returns to the drafter, HUY_PHAT_HANH revokes.",
	}
	out.AddCommand(outboundDraftCmd())

	var submitNote string
	submit := docTransitionCmd("submit", "Submit for approval", func(ctx context.Context, e engine.Engine, a domain.Actor, id string) (domain.Document, error) {
		return e.Outbound().Submit(ctx, a, id, submitNote)
	})
	submit.Flags().StringVar(&submitNote, "note", "", "note")
	out.AddCommand(submit)

	var returnReason string
	ret := docTransitionCmd("return", "Return to the drafter", func(ctx context.Context, e engine.Engine, a domain.Actor, id string) (domain.Document, error) {
		return e.Outbound().Return(ctx, a, id, returnReason)
	})
	ret.Flags().StringVar(&returnReason, "reason", "", "reason (required)")
	out.AddCommand(ret)

	var approveNote string
	approve := docTransitionCmd("approve", "Approve", func(ctx context.Context, e engine.Engine, a domain.Actor, id string) (domain.Document, error) {
		return e.Outbound().Approve(ctx, a, id, approveNote)
	})
	approve.Flags().StringVar(&approveNote, "note", "", "note")
	out.AddCommand(approve)

	var sign engine.SignInput
	signCmd := docTransitionCmd("sign", "Sign", func(ctx context.Context, e engine.Engine, a domain.Actor, id string) (domain.Document, error) {
		return e.Outbound().Sign(ctx, a, id, sign)
	})
	signCmd.Flags().StringVar(&sign.SignatureHash, "hash", "", "signature hash")
	signCmd.Flags().StringVar(&sign.SignerPosition, "position", "", "signer position")
	out.AddCommand(signCmd)

	out.AddCommand(outboundPublishCmd())

	archive := docTransitionCmd("archive", "Archive a published document", func(ctx context.Context, e engine.Engine, a domain.Actor, id string) (domain.Document, error) {
		return e.Outbound().Archive(ctx, a, id)
	})
	out.AddCommand(archive)

	var withdrawReason string
	withdraw := docTransitionCmd("withdraw", "Revoke a published document", func(ctx context.Context, e engine.Engine, a domain.Actor, id string) (domain.Document, error) {
		return e.Outbound().WithdrawPublish(ctx, a, id, withdrawReason)
	})
	withdraw.Flags().StringVar(&withdrawReason, "reason", "", "reason")
	out.AddCommand(withdraw)
	return out
}

func outboundDraftCmd() *cobra.Command {
	var in engine.DraftInput
	var dept int64
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Create a draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.DepartmentID = optionalInt64(dept)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				d, err := e.Outbound().CreateDraft(ctx, actor, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&in.ID, "id", "", "document id (generated when empty)")
	cmd.Flags().StringVar(&in.Title, "title", "", "title")
	cmd.Flags().StringVar(&in.Summary, "summary", "", "summary")
	cmd.Flags().Int64Var(&dept, "department-id", 0, "department id")
	return cmd
}

func outboundPublishCmd() *cobra.Command {
	var id string
	var in engine.PublishInput
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish, allocating an issue number unless --number is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				d, entry, err := e.Outbound().Publish(ctx, actor, id, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"document": d, "numbering": entry})
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "document id")
	cmd.Flags().StringVar(&in.IssueNumber, "number", "", "explicit issue number")
	cmd.Flags().StringVar(&in.IssuedDate, "date", "", "issued date (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&in.Year, "year", 0, "numbering year (default from issued date)")
	cmd.Flags().StringVar(&in.Prefix, "prefix", "", "number prefix")
	cmd.Flags().StringVar(&in.Postfix, "postfix", "", "number postfix")
	cmd.Flags().StringSliceVar(&in.Channels, "channel", nil, "distribution channel (repeatable)")
	return cmd
}

type caseTransition func(ctx context.Context, cs engine.Cases, actor domain.Actor, id string) (domain.Case, error)

func caseTransitionCmd(use, short string, fn caseTransition) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				c, err := fn(ctx, e.Cases(), actor, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "case id")
	return cmd
}

func caseCmd() *cobra.Command {
	cs := &cobra.Command{
		Use:   "case",
		Short: "Case files",
		Long:  "MOI_TAO -> CHO_PHAN_CONG -> DA_PHAN_CONG -> DANG_THUC_HIEN <-> TAM_DUNG -> CHO_DUYET_DONG -> DONG -> LUU_TRU.",
	}
	cs.AddCommand(caseCreateCmd())
	cs.AddCommand(caseTransitionCmd("wait", "Queue for assignment", func(ctx context.Context, c engine.Cases, a domain.Actor, id string) (domain.Case, error) {
		return c.WaitForAssign(ctx, a, id)
	}))

	var assign engine.CaseAssignInput
	assignCmd := caseTransitionCmd("assign", "Assign a team (leadership only)", func(ctx context.Context, c engine.Cases, a domain.Actor, id string) (domain.Case, error) {
		return c.Assign(ctx, a, id, assign)
	})
	bindCaseAssign(assignCmd, &assign)
	cs.AddCommand(assignCmd)

	var reassign engine.CaseAssignInput
	reassignCmd := caseTransitionCmd("reassign", "Replace the assigned team (leadership only)", func(ctx context.Context, c engine.Cases, a domain.Actor, id string) (domain.Case, error) {
		return c.Reassign(ctx, a, id, reassign)
	})
	bindCaseAssign(reassignCmd, &reassign)
	cs.AddCommand(reassignCmd)

	cs.AddCommand(caseTransitionCmd("start", "Start work (assignees only)", func(ctx context.Context, c engine.Cases, a domain.Actor, id string) (domain.Case, error) {
		return c.Start(ctx, a, id)
	}))

	var pauseReason string
	pause := caseTransitionCmd("pause", "Pause work", func(ctx context.Context, c engine.Cases, a domain.Actor, id string) (domain.Case, error) {
		return c.Pause(ctx, a, id, pauseReason)
	})
	pause.Flags().StringVar(&pauseReason, "reason", "", "reason")
	cs.AddCommand(pause)

	cs.AddCommand(caseTransitionCmd("resume", "Resume work", func(ctx context.Context, c engine.Cases, a domain.Actor, id string) (domain.Case, error) {
		return c.Resume(ctx, a, id)
	}))

	var closeNote string
	requestClose := caseTransitionCmd("request-close", "Ask leadership to close", func(ctx context.Context, c engine.Cases, a domain.Actor, id string) (domain.Case, error) {
		return c.RequestClose(ctx, a, id, closeNote)
	})
	requestClose.Flags().StringVar(&closeNote, "note", "", "note")
	cs.AddCommand(requestClose)

	cs.AddCommand(caseTransitionCmd("approve-close", "Close the case (leadership only)", func(ctx context.Context, c engine.Cases, a domain.Actor, id string) (domain.Case, error) {
		return c.ApproveClose(ctx, a, id)
	}))
	cs.AddCommand(caseTransitionCmd("archive", "Archive a closed case", func(ctx context.Context, c engine.Cases, a domain.Actor, id string) (domain.Case, error) {
		return c.Archive(ctx, a, id)
	}))
	return cs
}

func bindCaseAssign(cmd *cobra.Command, in *engine.CaseAssignInput) {
	cmd.Flags().StringSliceVar(&in.Assignees, "assignee", nil, "assignee actor id (repeatable)")
	cmd.Flags().StringVar(&in.LeaderID, "leader", "", "leading actor id")
	cmd.Flags().StringVar(&in.DueDate, "due", "", "due date")
	cmd.Flags().StringVar(&in.Instruction, "instruction", "", "instruction")
}

func caseCreateCmd() *cobra.Command {
	var in engine.CaseInput
	var dept int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a case",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.DepartmentID = optionalInt64(dept)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				c, err := e.Cases().Create(ctx, actor, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&in.ID, "id", "", "case id (generated when empty)")
	cmd.Flags().StringVar(&in.Title, "title", "", "title")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().Int64Var(&dept, "department-id", 0, "department id")
	cmd.Flags().StringVar(&in.OwnerID, "owner", "", "owner actor id (default: acting actor)")
	cmd.Flags().StringVar(&in.DueDate, "due", "", "due date")
	return cmd
}
