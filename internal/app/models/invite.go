package models

// Invite code statuses. A code is created "new", consumed to "used" exactly
// once, and may be revoked at any point; "revoked" is terminal.
const (
	InviteNew     = "new"
	InviteUsed    = "used"
	InviteRevoked = "revoked"
)

// InviteRecord is one entry of the shared invite table, keyed by code.
type InviteRecord struct {
	Status      string `json:"status"`
	IssuedTo    string `json:"issued_to"`
	IssuedAt    string `json:"issued_at"`
	ActivatedAt string `json:"activated_at"`
}

// InviteTable is the shared single-use activation-code table. Every
// read-modify-write against it must hold the registry lock end to end.
type InviteTable map[string]InviteRecord

// InviteStats is the per-status breakdown shown to admins.
type InviteStats struct {
	New     int `json:"new"`
	Used    int `json:"used"`
	Revoked int `json:"revoked"`
}
