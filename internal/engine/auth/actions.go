package auth

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Action is a guarded operation.
type Action string

const (
	ActView         Action = "VIEW"
	ActReportExport Action = "REPORT_EXPORT"

	ActInReceive      Action = "IN_RECEIVE"
	ActInRegister     Action = "IN_REGISTER"
	ActInAssign       Action = "IN_ASSIGN"
	ActInStart        Action = "IN_START"
	ActInComplete     Action = "IN_COMPLETE"
	ActInArchive      Action = "IN_ARCHIVE"
	ActInWithdraw     Action = "IN_WITHDRAW"
	ActInLink         Action = "IN_LINK"
	ActInEditNote     Action = "IN_EDIT_NOTE"
	ActInImportExport Action = "IN_IMPORT_EXPORT"

	ActOutDraftCreate Action = "OUT_DRAFT_CREATE"
	ActOutDraftEdit   Action = "OUT_DRAFT_EDIT"
	ActOutSubmit      Action = "OUT_SUBMIT"
	ActOutReturn      Action = "OUT_RETURN"
	ActOutApprove     Action = "OUT_APPROVE"
	ActOutSign        Action = "OUT_SIGN"
	ActOutIssueNo     Action = "OUT_ISSUE_NO"
	ActOutPublish     Action = "OUT_PUBLISH"
	ActOutWithdraw    Action = "OUT_WITHDRAW"
	ActOutArchive     Action = "OUT_ARCHIVE"

	ActCaseCreate       Action = "CASE_CREATE"
	ActCaseWaitAssign   Action = "CASE_WAIT_ASSIGN"
	ActCaseAssign       Action = "CASE_ASSIGN"
	ActCaseReassign     Action = "CASE_REASSIGN"
	ActCaseStart        Action = "CASE_START"
	ActCasePause        Action = "CASE_PAUSE"
	ActCaseResume       Action = "CASE_RESUME"
	ActCaseRequestClose Action = "CASE_REQUEST_CLOSE"
	ActCaseApproveClose Action = "CASE_APPROVE_CLOSE"
	ActCaseArchive      Action = "CASE_ARCHIVE"
	ActCaseDelete       Action = "CASE_DELETE"

	ActConfigRegisterBook  Action = "CONFIG_REGISTER_BOOK"
	ActConfigNumberingRule Action = "CONFIG_NUMBERING_RULE"
	ActConfigTemplate      Action = "CONFIG_TEMPLATE"
	ActConfigWorkflow      Action = "CONFIG_WORKFLOW"
)

var permissionCodes = map[Action]string{
	ActView:         "COMMON.VIEW",
	ActReportExport: "COMMON.REPORT_EXPORT",

	ActInReceive:      "DOC.IN.RECEIVE",
	ActInRegister:     "DOC.IN.REGISTER",
	ActInAssign:       "DOC.IN.ASSIGN",
	ActInStart:        "DOC.IN.START",
	ActInComplete:     "DOC.IN.COMPLETE",
	ActInArchive:      "DOC.IN.ARCHIVE",
	ActInWithdraw:     "DOC.IN.WITHDRAW",
	ActInLink:         "DOC.LINK",
	ActInEditNote:     "DOC.IN.EDIT_NOTE",
	ActInImportExport: "DOC.IN.IMPORT_EXPORT",

	ActOutDraftCreate: "DOC.OUT.DRAFT_CREATE",
	ActOutDraftEdit:   "DOC.OUT.DRAFT_EDIT",
	ActOutSubmit:      "DOC.OUT.SUBMIT",
	ActOutReturn:      "DOC.OUT.RETURN",
	ActOutApprove:     "DOC.OUT.APPROVE",
	ActOutSign:        "DOC.OUT.SIGN",
	ActOutIssueNo:     "DOC.OUT.ISSUE_NO",
	ActOutPublish:     "DOC.OUT.PUBLISH",
	ActOutWithdraw:    "DOC.OUT.WITHDRAW",
	ActOutArchive:     "DOC.OUT.ARCHIVE",

	ActCaseCreate:       "CASE.CREATE",
	ActCaseWaitAssign:   "CASE.WAIT_ASSIGN",
	ActCaseAssign:       "CASE.ASSIGN",
	ActCaseReassign:     "CASE.REASSIGN",
	ActCaseStart:        "CASE.START",
	ActCasePause:        "CASE.PAUSE",
	ActCaseResume:       "CASE.RESUME",
	ActCaseRequestClose: "CASE.REQUEST_CLOSE",
	ActCaseApproveClose: "CASE.APPROVE_CLOSE",
	ActCaseArchive:      "CASE.ARCHIVE",
	ActCaseDelete:       "CASE.DELETE",

	ActConfigRegisterBook:  "CONFIG.REGISTER_BOOK",
	ActConfigNumberingRule: "CONFIG.NUMBERING_RULE",
	ActConfigTemplate:      "CONFIG.TEMPLATE",
	ActConfigWorkflow:      "CONFIG.WORKFLOW",
}

// PermissionCode returns the stable code stored in the permissions table.
func PermissionCode(a Action) (string, bool) {
	code, ok := permissionCodes[a]
	return code, ok
}

// Actions lists the catalogue in a stable order.
func Actions() []Action {
	return []Action{
		ActView, ActReportExport,
		ActInReceive, ActInRegister, ActInAssign, ActInStart, ActInComplete, ActInArchive, ActInWithdraw, ActInLink, ActInEditNote, ActInImportExport,
		ActOutDraftCreate, ActOutDraftEdit, ActOutSubmit, ActOutReturn, ActOutApprove, ActOutSign, ActOutIssueNo, ActOutPublish, ActOutWithdraw, ActOutArchive,
		ActCaseCreate, ActCaseWaitAssign, ActCaseAssign, ActCaseReassign, ActCaseStart, ActCasePause, ActCaseResume, ActCaseRequestClose, ActCaseApproveClose, ActCaseArchive, ActCaseDelete,
		ActConfigRegisterBook, ActConfigNumberingRule, ActConfigTemplate, ActConfigWorkflow,
	}
}

// Role is a canonical role code.
type Role string

const (
	RoleAdmin      Role = "QT"
	RoleClerk      Role = "VT"
	RoleSpecialist Role = "CV"
	RoleLeader     Role = "LD"
)

// rolePriority orders roles when an actor holds several.
var rolePriority = []Role{RoleAdmin, RoleLeader, RoleClerk, RoleSpecialist}

var roleAliases = map[string]Role{
	"QT":          RoleAdmin,
	"QUAN_TRI":    RoleAdmin,
	"QUẢN_TRỊ":    RoleAdmin,
	"VT":          RoleClerk,
	"VAN_THU":     RoleClerk,
	"VĂN_THƯ":     RoleClerk,
	"CV":          RoleSpecialist,
	"CHUYEN_VIEN": RoleSpecialist,
	"CHUYÊN_VIÊN": RoleSpecialist,
	"LD":          RoleLeader,
	"LANH_DAO":    RoleLeader,
	"LÃNH_ĐẠO":    RoleLeader,
}

var separators = strings.NewReplacer(" ", "_", "-", "_")

// NormalizeRoleName upper-cases a stored role name with Vietnamese rules.
func NormalizeRoleName(name string) string {
	n := norm.NFC.String(strings.TrimSpace(name))
	n = cases.Upper(language.Vietnamese).String(n)
	return separators.Replace(n)
}

// CanonicalRole maps a stored role name onto a role code.
func CanonicalRole(name string) (Role, bool) {
	r, ok := roleAliases[NormalizeRoleName(name)]
	return r, ok
}

func actionSet(actions ...Action) map[Action]struct{} {
	m := make(map[Action]struct{}, len(actions))
	for _, a := range actions {
		m[a] = struct{}{}
	}
	return m
}

var matrix = map[Role]map[Action]struct{}{
	RoleAdmin: actionSet(
		ActView, ActReportExport, ActOutPublish,
		ActConfigRegisterBook, ActConfigNumberingRule, ActConfigTemplate, ActConfigWorkflow,
	),
	RoleClerk: actionSet(
		ActView, ActReportExport,
		ActInReceive, ActInRegister, ActInAssign, ActInImportExport, ActInEditNote, ActInLink, ActInArchive, ActInWithdraw,
		ActOutIssueNo, ActOutPublish, ActOutWithdraw, ActOutArchive,
		ActCaseCreate, ActCaseWaitAssign, ActCaseArchive,
		ActConfigRegisterBook, ActConfigNumberingRule, ActConfigTemplate,
	),
	RoleSpecialist: actionSet(
		ActView, ActReportExport,
		ActInStart, ActInComplete, ActInEditNote, ActInLink,
		ActOutDraftCreate, ActOutDraftEdit, ActOutSubmit,
		ActCaseCreate, ActCaseWaitAssign, ActCaseStart, ActCasePause, ActCaseResume, ActCaseRequestClose,
	),
	RoleLeader: actionSet(
		ActView, ActReportExport,
		ActInAssign, ActInComplete,
		ActOutReturn, ActOutApprove, ActOutSign,
		ActCaseCreate, ActCaseWaitAssign, ActCaseAssign, ActCaseReassign, ActCaseStart, ActCasePause, ActCaseResume,
		ActCaseRequestClose, ActCaseApproveClose, ActCaseArchive,
	),
}

// leaderOnly actions ignore permission rows and the matrix.
var leaderOnly = actionSet(ActCaseAssign, ActCaseReassign, ActCaseApproveClose)

// MatrixAllows reports the built-in grant for role.
func MatrixAllows(role Role, a Action) bool {
	_, ok := matrix[role][a]
	return ok
}
