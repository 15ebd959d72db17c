package domain

// Document directions.
const (
	DirectionIncoming = "den"
	DirectionOutgoing = "di"
	DirectionDraft    = "du_thao"
)

// Entity types recorded in the workflow and audit trails.
const (
	EntityDocument = "document"
	EntityCase     = "case"
)

// Status catalogs. Inbound and outbound documents share the document catalog.
const (
	CatalogDocument = "document"
	CatalogCase     = "case"
)

// Inbound document statuses.
const (
	StatusTiepNhan = "TIEP_NHAN"
	StatusDangKy   = "DANG_KY"
	StatusPhanCong = "PHAN_CONG"
	StatusDangXuLy = "DANG_XU_LY"
	StatusHoanTat  = "HOAN_TAT"
	StatusLuuTru   = "LUU_TRU"
	StatusThuHoi   = "THU_HOI"
)

// Outbound document statuses. LUU_TRU is shared with the inbound lifecycle.
const (
	StatusDuThao      = "DU_THAO"
	StatusTrinhDuyet  = "TRINH_DUYET"
	StatusTraLai      = "TRA_LAI"
	StatusPheDuyet    = "PHE_DUYET"
	StatusKySo        = "KY_SO"
	StatusPhatHanh    = "PHAT_HANH"
	StatusHuyPhatHanh = "HUY_PHAT_HANH"
)

// Case statuses. LUU_TRU is reused by the case catalog.
const (
	StatusMoiTao       = "MOI_TAO"
	StatusChoPhanCong  = "CHO_PHAN_CONG"
	StatusDaPhanCong   = "DA_PHAN_CONG"
	StatusDangThucHien = "DANG_THUC_HIEN"
	StatusTamDung      = "TAM_DUNG"
	StatusChoDuyetDong = "CHO_DUYET_DONG"
	StatusDong         = "DONG"
)

// DocumentStatuses lists every name the document catalog must carry.
var DocumentStatuses = []string{
	StatusTiepNhan, StatusDangKy, StatusPhanCong, StatusDangXuLy, StatusHoanTat, StatusLuuTru, StatusThuHoi,
	StatusDuThao, StatusTrinhDuyet, StatusTraLai, StatusPheDuyet, StatusKySo, StatusPhatHanh, StatusHuyPhatHanh,
}

// CaseStatuses lists every name the case catalog must carry.
var CaseStatuses = []string{
	StatusMoiTao, StatusChoPhanCong, StatusDaPhanCong, StatusDangThucHien, StatusTamDung,
	StatusChoDuyetDong, StatusDong, StatusLuuTru,
}

// Participant roles on a case or document.
const (
	RoleOwner    = "owner"
	RoleCoOwner  = "co_owner"
	RoleWatcher  = "watcher"
	RoleAssignee = "assignee"
)

type Actor struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	FullName     string `json:"full_name,omitempty"`
	DepartmentID *int64 `json:"department_id,omitempty"`
	RoleID       *int64 `json:"role_id,omitempty"`
	IsAdmin      bool   `json:"is_admin"`
	CreatedAt    string `json:"created_at"`
}

type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Permission struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

type Document struct {
	ID             string  `json:"id"`
	Direction      string  `json:"direction"`
	Title          string  `json:"title"`
	Summary        string  `json:"summary,omitempty"`
	StatusID       *int64  `json:"status_id,omitempty"`
	DepartmentID   *int64  `json:"department_id,omitempty"`
	CreatedBy      string  `json:"created_by"`
	ReceivedNumber *int64  `json:"received_number,omitempty"`
	ReceivedDate   *string `json:"received_date,omitempty"`
	Sender         *string `json:"sender,omitempty"`
	ReceivedBy     *string `json:"received_by,omitempty"`
	IssueNumber    *string `json:"issue_number,omitempty"`
	IssueYear      *int    `json:"issue_year,omitempty"`
	IssuedDate     *string `json:"issued_date,omitempty"`
	SignedBy       *string `json:"signed_by,omitempty"`
	SignerPosition *string `json:"signer_position,omitempty"`
	SigningMethod  *string `json:"signing_method,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

type DocumentAssignment struct {
	DocumentID string  `json:"document_id"`
	ActorID    string  `json:"actor_id"`
	RoleOnDoc  string  `json:"role_on_doc"`
	AssignedBy string  `json:"assigned_by"`
	AssignedAt string  `json:"assigned_at"`
	DueAt      *string `json:"due_at,omitempty"`
}

type Case struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	StatusID     *int64  `json:"status_id,omitempty"`
	DepartmentID *int64  `json:"department_id,omitempty"`
	CreatedBy    string  `json:"created_by"`
	OwnerID      string  `json:"owner_id"`
	LeaderID     *string `json:"leader_id,omitempty"`
	DueDate      *string `json:"due_date,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

type CaseParticipant struct {
	CaseID     string `json:"case_id"`
	ActorID    string `json:"actor_id"`
	RoleOnCase string `json:"role_on_case"`
}

type WorkflowLogEntry struct {
	ID            string         `json:"id"`
	SchemaVersion int            `json:"schema_version"`
	EntityType    string         `json:"entity_type"`
	EntityID      string         `json:"entity_id"`
	Action        string         `json:"action"`
	FromStatusID  *int64         `json:"from_status_id,omitempty"`
	ToStatusID    *int64         `json:"to_status_id,omitempty"`
	ActorID       string         `json:"actor_id"`
	Comment       string         `json:"comment,omitempty"`
	Meta          map[string]any `json:"meta,omitempty"`
	CreatedAt     string         `json:"created_at"`
}

type AuditLogEntry struct {
	ID            string         `json:"id"`
	SchemaVersion int            `json:"schema_version"`
	ActorID       string         `json:"actor_id"`
	Action        string         `json:"action"`
	EntityType    string         `json:"entity_type"`
	EntityID      string         `json:"entity_id"`
	Before        map[string]any `json:"before,omitempty"`
	After         map[string]any `json:"after,omitempty"`
	IP            string         `json:"ip,omitempty"`
	CreatedAt     string         `json:"created_at"`
}

type NumberingEntry struct {
	Year     int    `json:"year"`
	Seq      int64  `json:"seq"`
	Prefix   string `json:"prefix,omitempty"`
	Postfix  string `json:"postfix,omitempty"`
	Number   string `json:"number"`
	IssuedBy string `json:"issued_by,omitempty"`
	IssuedAt string `json:"issued_at"`
}

// Target identifies the entity an action applies to.
type Target struct {
	Kind string
	ID   string
}

func DocumentTarget(id string) Target { return Target{Kind: EntityDocument, ID: id} }

func CaseTarget(id string) Target { return Target{Kind: EntityCase, ID: id} }
